package database

import (
	"fmt"

	appdomain "jobtrail-backend/internal/application/domain"
	emaildomain "jobtrail-backend/internal/email/domain"
	filterdomain "jobtrail-backend/internal/filter/domain"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates every table the backend owns.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&filterdomain.DomainFilter{},
		&emaildomain.Email{},
		&emaildomain.SyncCursor{},
		&appdomain.Application{},
		&appdomain.EmailLink{},
		&appdomain.StatusTransitionLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
