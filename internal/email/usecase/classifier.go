package usecase

import (
	"regexp"
	"strings"

	emaildomain "jobtrail-backend/internal/email/domain"
	filterdomain "jobtrail-backend/internal/filter/domain"
	"jobtrail-backend/pkg/config"
)

const (
	ReasonDomainBlocked = "domain_blocked"
	ReasonHeuristic     = "heuristic"
)

type weightedPattern struct {
	re     *regexp.Regexp
	weight int
}

func patterns(weight int, exprs ...string) []weightedPattern {
	out := make([]weightedPattern, len(exprs))
	for i, expr := range exprs {
		out[i] = weightedPattern{re: regexp.MustCompile(expr), weight: weight}
	}
	return out
}

// Phrases are matched against the lower-cased subject and sender name.
// Each pattern contributes its weight at most once.
var lifecyclePhrases = concat(
	patterns(4, `thank(s| you) for (applying|your application|your interest)`),
	patterns(3, `\byour application\b`, `\binterview(s|ing)?\b`),
	patterns(2,
		`\bapplications?\b`,
		`\boffer\b`,
		`\bposition\b`,
		`\bcandida(te|tes|cy)\b`,
		`\brecruit\w*`,
		`\bnext steps?\b`,
		`\bassessment\b`,
	),
	patterns(1, `\bhiring\b`, `\brole\b`, `\bjobs?\b`, `\bunfortunately\b`),
)

var marketingPhrases = patterns(-3,
	`\bnewsletter\b`,
	`\bunsubscribe\b`,
	`\d+\s*% off\b`,
	`\bsale\b`,
	`\bpromo(tion)?s?\b`,
	`\bdeals?\b`,
	`\bwebinar\b`,
	`\bdigest\b`,
	`new job matches`,
	`jobs you may be interested in`,
	`recommended for you`,
)

// atsSenders are applicant tracking systems that send on behalf of employers.
var atsSenders = []string{
	"greenhouse", "lever.co", "hire.lever", "myworkdayjobs", "workday",
	"smartrecruiters", "icims", "jobvite", "ashbyhq", "bamboohr", "taleo",
	"successfactors", "workable", "teamtailor", "recruitee",
}

var marketingLocalParts = []string{
	"marketing", "news", "newsletter", "promo", "promotions", "alerts", "digest", "deals", "offers",
}

const (
	atsWeight             = 3
	marketingSenderWeight = -3
)

func concat(groups ...[]weightedPattern) []weightedPattern {
	var out []weightedPattern
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Classifier scores a message for job relevance. It holds no mutable state
// and is safe for concurrent use.
type Classifier struct {
	jobThreshold    int
	notJobThreshold int
}

// NewClassifier creates a classifier with the configured score band.
func NewClassifier(cfg config.ClassifierConfig) *Classifier {
	c := &Classifier{jobThreshold: cfg.JobThreshold, notJobThreshold: cfg.NotJobThreshold}
	if c.jobThreshold <= c.notJobThreshold {
		def := config.Default().Classifier
		c.jobThreshold, c.notJobThreshold = def.JobThreshold, def.NotJobThreshold
	}
	return c
}

// Classify is deterministic: the same stub and decision always give the
// same result. A blocked domain wins over any heuristic signal.
func (c *Classifier) Classify(stub emaildomain.EmailStub, decision filterdomain.Decision) emaildomain.Classification {
	if decision == filterdomain.Blocked {
		return emaildomain.Classification{Relevance: emaildomain.NotJobRelated, Reason: ReasonDomainBlocked}
	}

	score := Score(stub)
	relevance := emaildomain.UnknownRelevance
	switch {
	case score >= c.jobThreshold:
		relevance = emaildomain.JobRelated
	case score <= c.notJobThreshold:
		relevance = emaildomain.NotJobRelated
	}
	return emaildomain.Classification{Relevance: relevance, Score: score, Reason: ReasonHeuristic}
}

// Score returns the heuristic weight of a message.
func Score(stub emaildomain.EmailStub) int {
	text := strings.ToLower(stub.Subject + "\n" + stub.SenderName)
	address := strings.ToLower(strings.TrimSpace(stub.SenderEmail))

	score := 0
	for _, p := range lifecyclePhrases {
		if p.re.MatchString(text) {
			score += p.weight
		}
	}
	for _, p := range marketingPhrases {
		if p.re.MatchString(text) {
			score += p.weight
		}
	}

	domain := filterdomain.SenderDomain(address)
	for _, ats := range atsSenders {
		if strings.Contains(domain, ats) {
			score += atsWeight
			break
		}
	}

	local := address
	if at := strings.LastIndex(address, "@"); at >= 0 {
		local = address[:at]
	}
	for _, prefix := range marketingLocalParts {
		if local == prefix || strings.HasPrefix(local, prefix+".") || strings.HasPrefix(local, prefix+"-") {
			score += marketingSenderWeight
			break
		}
	}

	return score
}
