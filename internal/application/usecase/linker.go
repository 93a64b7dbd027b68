package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	appdomain "jobtrail-backend/internal/application/domain"
	emaildomain "jobtrail-backend/internal/email/domain"
	"jobtrail-backend/pkg/apperror"
	"jobtrail-backend/pkg/config"
	"jobtrail-backend/pkg/fuzzy"

	"go.uber.org/zap"
)

// Linker associates job-related emails with applications.
type Linker struct {
	repo       ApplicationRepository
	emails     EmailFinder
	threshold  float64
	window     time.Duration
	excluded   []appdomain.ApplicationStatus
	autoCreate bool
	logger     *zap.Logger
	now        func() time.Time
}

// NewLinker fails when the configured excluded statuses are not valid.
func NewLinker(repo ApplicationRepository, emails EmailFinder, cfg *config.Config, logger *zap.Logger) (*Linker, error) {
	excluded, err := appdomain.ParseStatuses(cfg.Linker.ExcludedStatuses)
	if err != nil {
		return nil, fmt.Errorf("linker.excluded_statuses: %w", err)
	}
	threshold := cfg.Linker.MatchThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = config.Default().Linker.MatchThreshold
	}
	return &Linker{
		repo:       repo,
		emails:     emails,
		threshold:  threshold,
		window:     cfg.Linker.RecencyWindow,
		excluded:   excluded,
		autoCreate: cfg.Linker.AutoCreate,
		logger:     logger.Named("linker"),
		now:        time.Now,
	}, nil
}

// TryLink links a job-related, unlinked email to the single open, recent
// application whose company matches the sender's organization. With no
// match or several matches the email stays unlinked; it is never guessed.
func (l *Linker) TryLink(ctx context.Context, email *emaildomain.Email) (appdomain.LinkResult, error) {
	if email.IsJobRelated != emaildomain.JobRelated {
		return appdomain.Unlinked(appdomain.ReasonNotJobRelated), nil
	}

	existing, err := l.repo.FindLinkByEmail(ctx, email.ID)
	if err != nil {
		return appdomain.LinkResult{}, err
	}
	if existing != nil {
		return appdomain.Linked(existing.ApplicationID), nil
	}

	orgs := DeriveOrganizations(email.Sender, email.SenderEmail)
	if len(orgs) == 0 {
		return appdomain.Unlinked(appdomain.ReasonNoOrganization), nil
	}

	since := time.Time{}
	if l.window > 0 {
		since = l.now().Add(-l.window)
	}
	candidates, err := l.repo.ListLinkCandidates(ctx, email.AccountID, l.excluded, since)
	if err != nil {
		return appdomain.LinkResult{}, err
	}

	matches := l.match(orgs, candidates)
	log := l.logger.With(zap.String("email_id", email.ID), zap.Strings("organizations", orgs))

	switch len(matches) {
	case 1:
		link, _, err := l.repo.CreateLink(ctx, &appdomain.EmailLink{
			AccountID:     email.AccountID,
			EmailID:       email.ID,
			ApplicationID: matches[0].ID,
			Origin:        appdomain.LinkAuto,
		})
		if err != nil {
			return appdomain.LinkResult{}, err
		}
		log.Info("email linked", zap.String("application_id", link.ApplicationID))
		return appdomain.Linked(link.ApplicationID), nil
	case 0:
		if !l.autoCreate {
			return appdomain.Unlinked(appdomain.ReasonNoMatch), nil
		}
		return l.createFor(ctx, email, orgs[0])
	default:
		log.Debug("ambiguous match, leaving email unlinked", zap.Int("candidates", len(matches)))
		return appdomain.Unlinked(appdomain.ReasonAmbiguous), nil
	}
}

func (l *Linker) match(orgs []string, candidates []*appdomain.Application) []*appdomain.Application {
	var matches []*appdomain.Application
	for _, app := range candidates {
		best := 0.0
		for _, org := range orgs {
			best = max(best, fuzzy.CompanySimilarity(org, app.CompanyName))
		}
		if best >= l.threshold {
			matches = append(matches, app)
		}
	}
	return matches
}

func (l *Linker) createFor(ctx context.Context, email *emaildomain.Email, company string) (appdomain.LinkResult, error) {
	app := applicationFromEmail(email, company, email.Subject)
	link, created, err := l.repo.CreateWithLink(ctx, app, &appdomain.EmailLink{
		AccountID: email.AccountID,
		EmailID:   email.ID,
		Origin:    appdomain.LinkAuto,
	})
	if err != nil {
		return appdomain.LinkResult{}, err
	}
	if !created {
		return appdomain.Linked(link.ApplicationID), nil
	}
	l.logger.Info("application created from email",
		zap.String("email_id", email.ID),
		zap.String("application_id", app.ID),
		zap.String("company", company))
	return appdomain.LinkResult{Linked: true, ApplicationID: app.ID, Created: true}, nil
}

// Link attaches an email to an application on user request. Linking the
// same pair again is a no-op.
func (l *Linker) Link(ctx context.Context, accountID, emailID, applicationID string) (*appdomain.EmailLink, error) {
	email, err := l.emails.FindByID(ctx, accountID, emailID)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, apperror.NotFound("email", emailID)
	}
	app, err := l.repo.FindByID(ctx, accountID, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, apperror.NotFound("application", applicationID)
	}

	link, created, err := l.repo.CreateLink(ctx, &appdomain.EmailLink{
		AccountID:     accountID,
		EmailID:       emailID,
		ApplicationID: applicationID,
		Origin:        appdomain.LinkManual,
	})
	if err != nil {
		return nil, err
	}
	if !created && link.ApplicationID != applicationID {
		return nil, fmt.Errorf("%w: email %s is linked to application %s", apperror.ErrAlreadyLinked, emailID, link.ApplicationID)
	}
	return link, nil
}

func (l *Linker) Unlink(ctx context.Context, accountID, emailID string) error {
	deleted, err := l.repo.DeleteLink(ctx, accountID, emailID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NotFound("email link", emailID)
	}
	return nil
}

// CreateFromEmail creates an application for an unlinked email and links
// them in one transaction. Empty fields default to the sender's
// organization and the email subject.
func (l *Linker) CreateFromEmail(ctx context.Context, accountID, emailID, companyName, position string) (*appdomain.Application, error) {
	email, err := l.emails.FindByID(ctx, accountID, emailID)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, apperror.NotFound("email", emailID)
	}

	company := strings.TrimSpace(companyName)
	if company == "" {
		if orgs := DeriveOrganizations(email.Sender, email.SenderEmail); len(orgs) > 0 {
			company = orgs[0]
		} else {
			company = email.Sender
		}
	}
	if strings.TrimSpace(position) == "" {
		position = email.Subject
	}

	app := applicationFromEmail(email, company, strings.TrimSpace(position))
	link, created, err := l.repo.CreateWithLink(ctx, app, &appdomain.EmailLink{
		AccountID: accountID,
		EmailID:   emailID,
		Origin:    appdomain.LinkManual,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, fmt.Errorf("%w: email %s is linked to application %s", apperror.ErrAlreadyLinked, emailID, link.ApplicationID)
	}
	return app, nil
}

func applicationFromEmail(email *emaildomain.Email, company, position string) *appdomain.Application {
	emailID := email.ID
	applied := email.DateReceived
	if applied.IsZero() {
		applied = time.Now()
	}
	return &appdomain.Application{
		AccountID:     email.AccountID,
		CompanyName:   company,
		Position:      position,
		Status:        appdomain.StatusApplied,
		AppliedDate:   applied,
		SourceEmailID: &emailID,
	}
}
