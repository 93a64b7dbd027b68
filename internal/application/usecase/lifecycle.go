package usecase

import (
	"context"
	"time"

	appdomain "jobtrail-backend/internal/application/domain"
	"jobtrail-backend/pkg/apperror"
	"jobtrail-backend/pkg/keylock"

	"go.uber.org/zap"
)

// Lifecycle moves applications between statuses. Every transition is
// permitted, including reopening ARCHIVE and REJECTED, and each one is
// appended to the audit log.
type Lifecycle struct {
	repo   ApplicationRepository
	locks  *keylock.Table
	logger *zap.Logger
	now    func() time.Time
}

func NewLifecycle(repo ApplicationRepository, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		repo:   repo,
		locks:  keylock.New(),
		logger: logger.Named("lifecycle"),
		now:    time.Now,
	}
}

// Transition sets the status and appends {from, to, at} atomically.
// Concurrent transitions of one application are serialized in-process, so
// the last log entry always matches the stored status.
func (l *Lifecycle) Transition(ctx context.Context, accountID, applicationID, toStatus string) (*appdomain.Application, error) {
	to, err := appdomain.ParseStatus(toStatus)
	if err != nil {
		return nil, err
	}

	release := l.locks.Lock(applicationID)
	defer release()

	app, entry, err := l.repo.Transition(ctx, accountID, applicationID, to, l.now())
	return l.finish(accountID, applicationID, app, entry, err)
}

// UpdateAndTransition saves the edited fields of app together with a
// status change. Either both are stored or neither is.
func (l *Lifecycle) UpdateAndTransition(ctx context.Context, app *appdomain.Application, to appdomain.ApplicationStatus) (*appdomain.Application, error) {
	release := l.locks.Lock(app.ID)
	defer release()

	updated, entry, err := l.repo.UpdateAndTransition(ctx, app, to, l.now())
	return l.finish(app.AccountID, app.ID, updated, entry, err)
}

func (l *Lifecycle) finish(accountID, applicationID string, app *appdomain.Application, entry *appdomain.StatusTransitionLog, err error) (*appdomain.Application, error) {
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, apperror.NotFound("application", applicationID)
	}

	l.logger.Info("application status changed",
		zap.String("account", accountID),
		zap.String("application_id", applicationID),
		zap.String("from", string(entry.FromStatus)),
		zap.String("to", string(entry.ToStatus)))
	return app, nil
}

// History returns the transition log oldest first.
func (l *Lifecycle) History(ctx context.Context, accountID, applicationID string) ([]*appdomain.StatusTransitionLog, error) {
	app, err := l.repo.FindByID(ctx, accountID, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, apperror.NotFound("application", applicationID)
	}

	entries, err := l.repo.History(ctx, accountID, applicationID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*appdomain.StatusTransitionLog{}
	}
	return entries, nil
}
