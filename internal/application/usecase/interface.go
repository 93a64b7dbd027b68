package usecase

import (
	"context"
	"time"

	appdomain "jobtrail-backend/internal/application/domain"
	emaildomain "jobtrail-backend/internal/email/domain"
)

// ApplicationRepository is the storage used by every application use case.
type ApplicationRepository interface {
	List(ctx context.Context, accountID string, filter appdomain.ApplicationFilter) ([]*appdomain.Application, error)
	FindByID(ctx context.Context, accountID, id string) (*appdomain.Application, error)
	Create(ctx context.Context, app *appdomain.Application) error
	Update(ctx context.Context, app *appdomain.Application) error
	Delete(ctx context.Context, accountID, id string) (bool, error)
	ListLinkCandidates(ctx context.Context, accountID string, excluded []appdomain.ApplicationStatus, since time.Time) ([]*appdomain.Application, error)
	Transition(ctx context.Context, accountID, id string, to appdomain.ApplicationStatus, at time.Time) (*appdomain.Application, *appdomain.StatusTransitionLog, error)
	UpdateAndTransition(ctx context.Context, app *appdomain.Application, to appdomain.ApplicationStatus, at time.Time) (*appdomain.Application, *appdomain.StatusTransitionLog, error)
	History(ctx context.Context, accountID, id string) ([]*appdomain.StatusTransitionLog, error)
	FindLinkByEmail(ctx context.Context, emailID string) (*appdomain.EmailLink, error)
	CreateLink(ctx context.Context, link *appdomain.EmailLink) (*appdomain.EmailLink, bool, error)
	DeleteLink(ctx context.Context, accountID, emailID string) (bool, error)
	CreateWithLink(ctx context.Context, app *appdomain.Application, link *appdomain.EmailLink) (*appdomain.EmailLink, bool, error)
	LinkedEmailIDs(ctx context.Context, accountID, applicationID string) ([]string, error)
}

// EmailFinder looks up ingested emails.
type EmailFinder interface {
	FindByID(ctx context.Context, accountID, id string) (*emaildomain.Email, error)
}

// ApplicationUsecase defines the interface for application use cases
type ApplicationUsecase interface {
	ListApplications(ctx context.Context, accountID, search, status string) ([]*appdomain.Application, error)
	GetApplication(ctx context.Context, accountID, id string) (*ApplicationDetail, error)
	CreateApplication(ctx context.Context, accountID string, input ApplicationInput) (*appdomain.Application, error)
	UpdateApplication(ctx context.Context, accountID, id string, input ApplicationInput) (*appdomain.Application, error)
	DeleteApplication(ctx context.Context, accountID, id string) error
	Kanban(ctx context.Context, accountID string) ([]KanbanColumn, error)
}

// ApplicationInput carries user-supplied fields. Nil fields are left
// unchanged on update and defaulted on create.
type ApplicationInput struct {
	CompanyName   *string
	Position      *string
	Status        *string
	AppliedDate   *time.Time
	Location      *string
	SalaryRange   *string
	JobPostingURL *string
	Notes         *string
}

// ApplicationDetail is an application with the emails linked to it.
type ApplicationDetail struct {
	*appdomain.Application
	EmailIDs []string `json:"email_ids"`
}

type KanbanColumn struct {
	Status       appdomain.ApplicationStatus `json:"status"`
	Applications []*appdomain.Application    `json:"applications"`
}
