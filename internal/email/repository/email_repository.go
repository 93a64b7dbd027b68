package repository

import (
	"context"
	"errors"
	"time"

	emaildomain "jobtrail-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// hasApplicationColumn derives has_application from the link table so it
// can never drift from the links that exist.
const hasApplicationColumn = "EXISTS (SELECT 1 FROM email_links WHERE email_links.email_id = emails.id) AS has_application"

type EmailRepository struct {
	db *gorm.DB
}

// NewEmailRepository creates a new instance of EmailRepository
func NewEmailRepository(db *gorm.DB) *EmailRepository {
	return &EmailRepository{db: db}
}

func (r *EmailRepository) withLinks(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&emaildomain.Email{}).Select("emails.*, " + hasApplicationColumn)
}

// ExistingProviderIDs returns which of ids are already stored, across all
// accounts.
func (r *EmailRepository) ExistingProviderIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	var found []string
	err := r.db.WithContext(ctx).
		Model(&emaildomain.Email{}).
		Where("provider_message_id IN ?", ids).
		Pluck("provider_message_id", &found).Error
	if err != nil {
		return nil, err
	}
	for _, id := range found {
		existing[id] = true
	}
	return existing, nil
}

// Insert stores email unless its provider_message_id already exists.
// created is false when the unique index rejected the row.
func (r *EmailRepository) Insert(ctx context.Context, email *emaildomain.Email) (created bool, err error) {
	if email.ID == "" {
		email.ID = uuid.New().String()
	}
	if email.Status == "" {
		email.Status = emaildomain.StatusUnread
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(email)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindByID returns nil, nil when the email does not exist.
func (r *EmailRepository) FindByID(ctx context.Context, accountID, id string) (*emaildomain.Email, error) {
	var email emaildomain.Email
	err := r.withLinks(ctx).
		Where("emails.account_id = ? AND emails.id = ?", accountID, id).
		Take(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

// List returns the account's emails, newest first.
func (r *EmailRepository) List(ctx context.Context, accountID string, filter emaildomain.EmailFilter) ([]*emaildomain.Email, error) {
	query := r.withLinks(ctx).Where("emails.account_id = ?", accountID)

	if filter.Status != nil {
		query = query.Where("emails.status = ?", *filter.Status)
	}
	if filter.JobRelated != nil {
		if *filter.JobRelated == emaildomain.UnknownRelevance {
			query = query.Where("emails.is_job_related IS NULL")
		} else {
			query = query.Where("emails.is_job_related = ?", *filter.JobRelated)
		}
	}

	var emails []*emaildomain.Email
	err := query.Order("emails.date_received DESC").Order("emails.id").Find(&emails).Error
	return emails, err
}

// UpdateStatus returns false when the email does not exist.
func (r *EmailRepository) UpdateStatus(ctx context.Context, accountID, id string, status emaildomain.EmailStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&emaildomain.Email{}).
		Where("account_id = ? AND id = ?", accountID, id).
		Updates(map[string]any{"status": status, "updated_at": time.Now()})
	return result.RowsAffected > 0, result.Error
}

func (r *EmailRepository) UpdateClassification(ctx context.Context, id string, relevance emaildomain.JobRelevance, score int) error {
	return r.db.WithContext(ctx).
		Model(&emaildomain.Email{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_job_related":       relevance,
			"classification_score": score,
			"updated_at":           time.Now(),
		}).Error
}

// Count returns how many emails the account has.
func (r *EmailRepository) Count(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&emaildomain.Email{}).Where("account_id = ?", accountID).Count(&n).Error
	return n, err
}
