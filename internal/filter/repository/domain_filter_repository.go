package repository

import (
	"context"
	"errors"
	"time"

	filterdomain "jobtrail-backend/internal/filter/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DomainFilterRepository stores domain filters with gorm.
type DomainFilterRepository struct {
	db *gorm.DB
}

// NewDomainFilterRepository creates a new instance of DomainFilterRepository
func NewDomainFilterRepository(db *gorm.DB) *DomainFilterRepository {
	return &DomainFilterRepository{db: db}
}

// ListByAccount returns every filter of the account ordered by domain.
func (r *DomainFilterRepository) ListByAccount(ctx context.Context, accountID string) ([]*filterdomain.DomainFilter, error) {
	var filters []*filterdomain.DomainFilter
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("domain ASC").
		Find(&filters).Error
	return filters, err
}

// FindByID returns nil, nil when the filter does not exist.
func (r *DomainFilterRepository) FindByID(ctx context.Context, accountID, id string) (*filterdomain.DomainFilter, error) {
	var filter filterdomain.DomainFilter
	err := r.db.WithContext(ctx).Where("account_id = ? AND id = ?", accountID, id).First(&filter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &filter, nil
}

// Create inserts filter unless the (account, domain) pair already exists.
// created is false when the unique index rejected the row.
func (r *DomainFilterRepository) Create(ctx context.Context, filter *filterdomain.DomainFilter) (created bool, err error) {
	if filter.ID == "" {
		filter.ID = uuid.New().String()
	}
	if filter.CreatedAt.IsZero() {
		filter.CreatedAt = time.Now()
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(filter)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Toggle flips is_allowed in a single statement and returns the new row.
func (r *DomainFilterRepository) Toggle(ctx context.Context, accountID, id string) (*filterdomain.DomainFilter, error) {
	result := r.db.WithContext(ctx).
		Model(&filterdomain.DomainFilter{}).
		Where("account_id = ? AND id = ?", accountID, id).
		Update("is_allowed", gorm.Expr("NOT is_allowed"))
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return r.FindByID(ctx, accountID, id)
}

// Delete removes a filter; deleted is false when it did not exist.
func (r *DomainFilterRepository) Delete(ctx context.Context, accountID, id string) (deleted bool, err error) {
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND id = ?", accountID, id).
		Delete(&filterdomain.DomainFilter{})
	return result.RowsAffected > 0, result.Error
}
