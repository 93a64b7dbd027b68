package usecase

import (
	"context"

	emaildomain "jobtrail-backend/internal/email/domain"
)

// EmailUsecase defines the interface for email use cases
type EmailUsecase interface {
	ListEmails(ctx context.Context, accountID string, filter emaildomain.EmailFilter) ([]*emaildomain.Email, error)
	GetEmail(ctx context.Context, accountID, id string) (*emaildomain.Email, error)
	UpdateStatus(ctx context.Context, accountID, id string, status emaildomain.EmailStatus) (*emaildomain.Email, error)
	// ReclassifyAll re-runs the classifier over stored emails with the
	// current domain policy. Filter edits are otherwise not retroactive.
	ReclassifyAll(ctx context.Context, accountID string) (*ReclassifyReport, error)
}

type ReclassifyReport struct {
	Scanned int `json:"scanned"`
	Changed int `json:"changed"`
}

// SyncService pulls provider mail into local storage, one run per account at a time.
type SyncService interface {
	FetchBatch(ctx context.Context, accountID string, daysBack, maxResults int) (*emaildomain.SyncReport, error)
	Status(ctx context.Context, accountID string) (*emaildomain.SyncStatus, error)
}
