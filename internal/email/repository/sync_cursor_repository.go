package repository

import (
	"context"
	"errors"

	emaildomain "jobtrail-backend/internal/email/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SyncCursorRepository struct {
	db *gorm.DB
}

// NewSyncCursorRepository creates a new instance of SyncCursorRepository
func NewSyncCursorRepository(db *gorm.DB) *SyncCursorRepository {
	return &SyncCursorRepository{db: db}
}

// Get returns nil, nil before the first sync of the account.
func (r *SyncCursorRepository) Get(ctx context.Context, accountID string) (*emaildomain.SyncCursor, error) {
	var cursor emaildomain.SyncCursor
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&cursor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cursor, nil
}

// Save inserts or replaces the cursor.
func (r *SyncCursorRepository) Save(ctx context.Context, cursor *emaildomain.SyncCursor) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_synced_at", "last_report", "updated_at"}),
		}).
		Create(cursor).Error
}
