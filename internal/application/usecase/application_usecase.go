package usecase

import (
	"context"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	appdomain "jobtrail-backend/internal/application/domain"
	"jobtrail-backend/pkg/apperror"
	"jobtrail-backend/pkg/fuzzy"

	"go.uber.org/zap"
)

// applicationUsecase implements ApplicationUsecase interface
type applicationUsecase struct {
	repo      ApplicationRepository
	lifecycle *Lifecycle
	logger    *zap.Logger
}

// NewApplicationUsecase creates a new instance of applicationUsecase
func NewApplicationUsecase(repo ApplicationRepository, lifecycle *Lifecycle, logger *zap.Logger) ApplicationUsecase {
	return &applicationUsecase{
		repo:      repo,
		lifecycle: lifecycle,
		logger:    logger.Named("application"),
	}
}

func (u *applicationUsecase) ListApplications(ctx context.Context, accountID, search, status string) ([]*appdomain.Application, error) {
	filter := appdomain.ApplicationFilter{Search: search}
	if strings.TrimSpace(status) != "" {
		s, err := appdomain.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		filter.Status = &s
	}

	apps, err := u.repo.List(ctx, accountID, filter)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 && utf8.RuneCountInString(strings.TrimSpace(filter.Search)) >= minFuzzyQuery {
		apps, err = u.fuzzySearch(ctx, accountID, filter)
		if err != nil {
			return nil, err
		}
	}
	if apps == nil {
		apps = []*appdomain.Application{}
	}
	return apps, nil
}

// fuzzySearch is the fallback when the substring search finds nothing, so
// a misspelled query ("Acmee") still finds "Acme".
func (u *applicationUsecase) fuzzySearch(ctx context.Context, accountID string, filter appdomain.ApplicationFilter) ([]*appdomain.Application, error) {
	query := filter.Search
	filter.Search = ""
	all, err := u.repo.List(ctx, accountID, filter)
	if err != nil {
		return nil, err
	}

	threshold := searchTypoThreshold(query)
	var matched []*appdomain.Application
	for _, app := range all {
		if fuzzy.FuzzyMatch(query, app.CompanyName+" "+app.Position, threshold) {
			matched = append(matched, app)
		}
	}
	return matched, nil
}

// Shorter queries are too ambiguous to match with typos.
const minFuzzyQuery = 4

// searchTypoThreshold allows one edit for short queries and two from eight
// characters on.
func searchTypoThreshold(query string) int {
	if utf8.RuneCountInString(strings.TrimSpace(query)) >= 8 {
		return 2
	}
	return 1
}

func (u *applicationUsecase) GetApplication(ctx context.Context, accountID, id string) (*ApplicationDetail, error) {
	app, err := u.find(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	emailIDs, err := u.repo.LinkedEmailIDs(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if emailIDs == nil {
		emailIDs = []string{}
	}
	return &ApplicationDetail{Application: app, EmailIDs: emailIDs}, nil
}

func (u *applicationUsecase) find(ctx context.Context, accountID, id string) (*appdomain.Application, error) {
	app, err := u.repo.FindByID(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, apperror.NotFound("application", id)
	}
	return app, nil
}

// CreateApplication defaults the status to APPLIED and the applied date
// to today.
func (u *applicationUsecase) CreateApplication(ctx context.Context, accountID string, input ApplicationInput) (*appdomain.Application, error) {
	app := &appdomain.Application{
		AccountID:   accountID,
		Status:      appdomain.StatusApplied,
		AppliedDate: time.Now().UTC().Truncate(24 * time.Hour),
	}
	if input.Status != nil {
		status, err := appdomain.ParseStatus(*input.Status)
		if err != nil {
			return nil, err
		}
		app.Status = status
	}
	if err := applyInput(app, input); err != nil {
		return nil, err
	}
	if app.CompanyName == "" {
		return nil, apperror.Validation("company_name is required")
	}

	if err := u.repo.Create(ctx, app); err != nil {
		return nil, err
	}
	u.logger.Info("application created",
		zap.String("account", accountID),
		zap.String("application_id", app.ID),
		zap.String("company", app.CompanyName))
	return app, nil
}

// UpdateApplication edits the descriptive fields. A status change is
// routed through the lifecycle so it is logged like any other transition.
func (u *applicationUsecase) UpdateApplication(ctx context.Context, accountID, id string, input ApplicationInput) (*appdomain.Application, error) {
	app, err := u.find(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	var newStatus *appdomain.ApplicationStatus
	if input.Status != nil {
		status, err := appdomain.ParseStatus(*input.Status)
		if err != nil {
			return nil, err
		}
		if status != app.Status {
			newStatus = &status
		}
	}

	if err := applyInput(app, input); err != nil {
		return nil, err
	}
	if app.CompanyName == "" {
		return nil, apperror.Validation("company_name cannot be empty")
	}
	if newStatus != nil {
		return u.lifecycle.UpdateAndTransition(ctx, app, *newStatus)
	}
	if err := u.repo.Update(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// DeleteApplication removes the application and its links; linked emails
// are kept.
func (u *applicationUsecase) DeleteApplication(ctx context.Context, accountID, id string) error {
	deleted, err := u.repo.Delete(ctx, accountID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NotFound("application", id)
	}
	u.logger.Info("application deleted", zap.String("account", accountID), zap.String("application_id", id))
	return nil
}

// Kanban groups applications into the board's columns.
func (u *applicationUsecase) Kanban(ctx context.Context, accountID string) ([]KanbanColumn, error) {
	apps, err := u.repo.List(ctx, accountID, appdomain.ApplicationFilter{})
	if err != nil {
		return nil, err
	}

	byStatus := make(map[appdomain.ApplicationStatus][]*appdomain.Application, len(appdomain.KanbanOrder))
	for _, app := range apps {
		byStatus[app.Status] = append(byStatus[app.Status], app)
	}

	columns := make([]KanbanColumn, 0, len(appdomain.KanbanOrder))
	for _, status := range appdomain.KanbanOrder {
		list := byStatus[status]
		if list == nil {
			list = []*appdomain.Application{}
		}
		columns = append(columns, KanbanColumn{Status: status, Applications: list})
	}
	return columns, nil
}

func applyInput(app *appdomain.Application, input ApplicationInput) error {
	if input.CompanyName != nil {
		app.CompanyName = strings.TrimSpace(*input.CompanyName)
	}
	if input.Position != nil {
		app.Position = strings.TrimSpace(*input.Position)
	}
	if input.AppliedDate != nil {
		app.AppliedDate = *input.AppliedDate
	}
	if input.Location != nil {
		app.Location = optional(*input.Location)
	}
	if input.SalaryRange != nil {
		app.SalaryRange = optional(*input.SalaryRange)
	}
	if input.Notes != nil {
		app.Notes = optional(*input.Notes)
	}
	if input.JobPostingURL != nil {
		raw := strings.TrimSpace(*input.JobPostingURL)
		if raw != "" {
			u, err := url.Parse(raw)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return apperror.Validation("job_posting_url must be an http(s) URL")
			}
		}
		app.JobPostingURL = optional(raw)
	}
	return nil
}

// optional maps blank strings to nil.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
