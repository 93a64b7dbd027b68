package usecase

import (
	"regexp"
	"strings"

	filterdomain "jobtrail-backend/internal/filter/domain"
	"jobtrail-backend/pkg/fuzzy"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// atsDomains send mail on behalf of many employers; the employer is found
// in a sub-domain or the local part instead.
var atsDomains = []string{
	"myworkdayjobs.com", "workday.com", "greenhouse.io", "greenhouse-mail.io",
	"lever.co", "smartrecruiters.com", "icims.com", "jobvite.com", "ashbyhq.com",
	"bamboohr.com", "workable.com", "teamtailor.com", "recruitee.com",
	"taleo.net", "successfactors.com", "successfactors.eu",
}

var atsNames = map[string]bool{
	"workday": true, "greenhouse": true, "lever": true, "smartrecruiters": true,
	"icims": true, "jobvite": true, "ashby": true, "bamboohr": true, "workable": true,
	"teamtailor": true, "recruitee": true, "taleo": true, "successfactors": true,
}

// sharedDomains never identify the employer.
var sharedDomains = map[string]bool{
	"gmail.com": true, "googlemail.com": true, "outlook.com": true, "hotmail.com": true,
	"live.com": true, "yahoo.com": true, "icloud.com": true, "me.com": true, "aol.com": true,
	"proton.me": true, "protonmail.com": true, "gmx.com": true,
	"linkedin.com": true, "indeed.com": true, "glassdoor.com": true,
	"ziprecruiter.com": true, "monster.com": true,
}

var genericWords = map[string]bool{
	"careers": true, "career": true, "recruiting": true, "recruitment": true,
	"recruiter": true, "recruiters": true, "talent": true, "acquisition": true,
	"team": true, "hr": true, "jobs": true, "job": true, "hiring": true,
	"people": true, "notifications": true, "notification": true,
	"noreply": true, "no-reply": true, "donotreply": true, "do-not-reply": true,
	"mail": true, "email": true, "hire": true, "apply": true, "app": true,
	"-": true, "|": true, "–": true, "—": true, ":": true,
}

var hostLabel = regexp.MustCompile(`^(wd\d+|em\d*|us|eu|apac)$`)

var secondLevel = map[string]bool{"co": true, "com": true, "ac": true, "org": true, "net": true, "gov": true, "edu": true}

// DeriveOrganizations guesses the employer behind a sender, from the
// display name first and then the address. The result holds zero, one or
// two distinct names.
func DeriveOrganizations(senderName, senderEmail string) []string {
	var out []string
	add := func(name string) {
		if name == "" {
			return
		}
		key := fuzzy.NormalizeCompany(name)
		if key == "" {
			return
		}
		for _, existing := range out {
			if fuzzy.NormalizeCompany(existing) == key {
				return
			}
		}
		out = append(out, name)
	}

	add(organizationFromDisplayName(senderName))
	add(organizationFromAddress(senderEmail))
	return out
}

func organizationFromDisplayName(name string) string {
	name = strings.Trim(strings.TrimSpace(name), `"'`)
	if name == "" || strings.Contains(name, "@") {
		return ""
	}

	lower := strings.ToLower(name)
	if i := strings.Index(lower, " via "); i >= 0 {
		name, lower = name[:i], lower[:i]
	}
	for _, sep := range []string{" at ", " from "} {
		if i := strings.LastIndex(lower, sep); i >= 0 {
			name, lower = name[i+len(sep):], lower[i+len(sep):]
		}
	}

	name = stripGenericWords(name)
	if atsNames[strings.ToLower(name)] {
		return ""
	}
	return name
}

func organizationFromAddress(address string) string {
	domain := filterdomain.SenderDomain(address)
	if domain == "" || sharedDomains[domain] {
		return ""
	}

	for _, ats := range atsDomains {
		if domain == ats {
			local := strings.ToLower(address[:strings.LastIndex(address, "@")])
			return titleCase(stripGenericWords(strings.NewReplacer(".", " ", "_", " ").Replace(local)))
		}
		if strings.HasSuffix(domain, "."+ats) {
			labels := strings.Split(strings.TrimSuffix(domain, "."+ats), ".")
			for i := len(labels) - 1; i >= 0; i-- {
				if hostLabel.MatchString(labels[i]) || genericWords[labels[i]] {
					continue
				}
				return titleCase(labels[i])
			}
			return ""
		}
	}

	labels := strings.Split(domain, ".")
	n := len(labels)
	if n < 2 {
		return ""
	}
	label := labels[n-2]
	if n >= 3 && secondLevel[labels[n-2]] && len(labels[n-1]) == 2 {
		label = labels[n-3]
	}
	return titleCase(stripGenericWords(strings.ReplaceAll(label, "-", " ")))
}

func stripGenericWords(s string) string {
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if !genericWords[strings.ToLower(strings.Trim(w, ",.()"))] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}
