package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	appdomain "jobtrail-backend/internal/application/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ApplicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository creates a new instance of ApplicationRepository
func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// List returns the account's applications, most recently applied first.
func (r *ApplicationRepository) List(ctx context.Context, accountID string, filter appdomain.ApplicationFilter) ([]*appdomain.Application, error) {
	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		query = query.Where("(LOWER(company_name) LIKE ? ESCAPE '!' OR LOWER(position) LIKE ? ESCAPE '!')", pattern, pattern)
	}

	var apps []*appdomain.Application
	err := query.Order("applied_date DESC").Order("created_at DESC").Find(&apps).Error
	return apps, err
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

// FindByID returns nil, nil when the application does not exist.
func (r *ApplicationRepository) FindByID(ctx context.Context, accountID, id string) (*appdomain.Application, error) {
	var app appdomain.Application
	err := r.db.WithContext(ctx).Where("account_id = ? AND id = ?", accountID, id).First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &app, nil
}

func (r *ApplicationRepository) Create(ctx context.Context, app *appdomain.Application) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(app).Error
}

// Update writes every editable field except status, which only changes
// through Transition.
func (r *ApplicationRepository) Update(ctx context.Context, app *appdomain.Application) error {
	return updateFields(r.db.WithContext(ctx), app)
}

func updateFields(db *gorm.DB, app *appdomain.Application) error {
	app.UpdatedAt = time.Now()
	return db.
		Model(app).
		Where("account_id = ?", app.AccountID).
		Select("company_name", "position", "applied_date", "location", "salary_range", "job_posting_url", "notes", "updated_at").
		Updates(app).Error
}

// Delete removes the application and its email links in one transaction.
// Linked emails are kept. deleted is false when the application did not
// exist.
func (r *ApplicationRepository) Delete(ctx context.Context, accountID, id string) (deleted bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ? AND application_id = ?", accountID, id).
			Delete(&appdomain.EmailLink{}).Error; err != nil {
			return err
		}
		result := tx.Where("account_id = ? AND id = ?", accountID, id).Delete(&appdomain.Application{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected > 0
		return nil
	})
	return deleted, err
}

// ListLinkCandidates returns open applications touched since the given
// time.
func (r *ApplicationRepository) ListLinkCandidates(ctx context.Context, accountID string, excluded []appdomain.ApplicationStatus, since time.Time) ([]*appdomain.Application, error) {
	query := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Where("(created_at >= ? OR updated_at >= ?)", since, since)
	if len(excluded) > 0 {
		query = query.Where("status NOT IN ?", excluded)
	}

	var apps []*appdomain.Application
	err := query.Order("created_at").Find(&apps).Error
	return apps, err
}

// Transition appends a log entry and sets the status in one transaction,
// so the last entry and the status column always agree. It returns nil,
// nil when the application does not exist.
func (r *ApplicationRepository) Transition(ctx context.Context, accountID, id string, to appdomain.ApplicationStatus, at time.Time) (*appdomain.Application, *appdomain.StatusTransitionLog, error) {
	var app *appdomain.Application
	var entry *appdomain.StatusTransitionLog

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		app, entry, err = transition(tx, accountID, id, to, at)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return app, entry, nil
}

// UpdateAndTransition writes the editable fields of app and moves it to
// the given status in one transaction. Nothing is saved if either step
// fails. It returns nil, nil when the application does not exist.
func (r *ApplicationRepository) UpdateAndTransition(ctx context.Context, app *appdomain.Application, to appdomain.ApplicationStatus, at time.Time) (*appdomain.Application, *appdomain.StatusTransitionLog, error) {
	var updated *appdomain.Application
	var entry *appdomain.StatusTransitionLog

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateFields(tx, app); err != nil {
			return err
		}
		var err error
		updated, entry, err = transition(tx, app.AccountID, app.ID, to, at)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return updated, entry, nil
}

func transition(tx *gorm.DB, accountID, id string, to appdomain.ApplicationStatus, at time.Time) (*appdomain.Application, *appdomain.StatusTransitionLog, error) {
	var app appdomain.Application
	if err := tx.Where("account_id = ? AND id = ?", accountID, id).First(&app).Error; err != nil {
		return nil, nil, err
	}

	entry := appdomain.StatusTransitionLog{
		ApplicationID: app.ID,
		AccountID:     accountID,
		FromStatus:    app.Status,
		ToStatus:      to,
		At:            at,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, nil, err
	}

	if err := tx.Model(&appdomain.Application{}).
		Where("id = ?", app.ID).
		Updates(map[string]any{"status": to, "updated_at": at}).Error; err != nil {
		return nil, nil, err
	}
	app.Status = to
	app.UpdatedAt = at
	return &app, &entry, nil
}

// History returns the transition log of an application in append order.
func (r *ApplicationRepository) History(ctx context.Context, accountID, id string) ([]*appdomain.StatusTransitionLog, error) {
	var entries []*appdomain.StatusTransitionLog
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND application_id = ?", accountID, id).
		Order("seq ASC").
		Find(&entries).Error
	return entries, err
}

// FindLinkByEmail returns nil, nil when the email is not linked.
func (r *ApplicationRepository) FindLinkByEmail(ctx context.Context, emailID string) (*appdomain.EmailLink, error) {
	var link appdomain.EmailLink
	err := r.db.WithContext(ctx).Where("email_id = ?", emailID).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// CreateLink inserts link unless the email is already linked. On conflict
// it returns the existing link and created=false.
func (r *ApplicationRepository) CreateLink(ctx context.Context, link *appdomain.EmailLink) (existing *appdomain.EmailLink, created bool, err error) {
	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(link)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected > 0 {
		return link, true, nil
	}

	existing, err = r.FindLinkByEmail(ctx, link.EmailID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// DeleteLink returns false when the email had no link.
func (r *ApplicationRepository) DeleteLink(ctx context.Context, accountID, emailID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND email_id = ?", accountID, emailID).
		Delete(&appdomain.EmailLink{})
	return result.RowsAffected > 0, result.Error
}

// CreateWithLink stores a new application and links the email to it
// atomically. It fails with created=false, leaving nothing behind, when
// the email is already linked.
func (r *ApplicationRepository) CreateWithLink(ctx context.Context, app *appdomain.Application, link *appdomain.EmailLink) (existing *appdomain.EmailLink, created bool, err error) {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	if link.ID == "" {
		link.ID = uuid.New().String()
	}
	link.ApplicationID = app.ID

	errLinked := errors.New("email already linked")
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(app).Error; err != nil {
			return err
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(link)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errLinked
		}
		return nil
	})
	if errors.Is(err, errLinked) {
		existing, err = r.FindLinkByEmail(ctx, link.EmailID)
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return link, true, nil
}

// LinkedEmailIDs returns the ids of emails linked to an application.
func (r *ApplicationRepository) LinkedEmailIDs(ctx context.Context, accountID, applicationID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&appdomain.EmailLink{}).
		Where("account_id = ? AND application_id = ?", accountID, applicationID).
		Order("created_at").
		Pluck("email_id", &ids).Error
	return ids, err
}
