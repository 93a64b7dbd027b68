package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	appdomain "jobtrail-backend/internal/application/domain"
	emaildomain "jobtrail-backend/internal/email/domain"
	filterdomain "jobtrail-backend/internal/filter/domain"
	"jobtrail-backend/pkg/apperror"
	"jobtrail-backend/pkg/config"
	"jobtrail-backend/pkg/keylock"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	MaxDaysBack   = 365
	MaxMaxResults = 500
)

// EmailStore is the email storage the sync loop writes to.
type EmailStore interface {
	ExistingProviderIDs(ctx context.Context, ids []string) (map[string]bool, error)
	Insert(ctx context.Context, email *emaildomain.Email) (bool, error)
	Count(ctx context.Context, accountID string) (int64, error)
}

type CursorStore interface {
	Get(ctx context.Context, accountID string) (*emaildomain.SyncCursor, error)
	Save(ctx context.Context, cursor *emaildomain.SyncCursor) error
}

// PolicySource supplies the account's domain policy for a batch.
type PolicySource interface {
	Snapshot(ctx context.Context, accountID string) (*filterdomain.Policy, error)
}

// ApplicationLinker attaches a freshly ingested job-related email to an
// application when exactly one candidate matches.
type ApplicationLinker interface {
	TryLink(ctx context.Context, email *emaildomain.Email) (appdomain.LinkResult, error)
}

// SyncCoordinator ingests a batch of mailbox messages for one account at
// a time.
type SyncCoordinator struct {
	provider   emaildomain.MailProvider
	emails     EmailStore
	cursors    CursorStore
	policies   PolicySource
	classifier *Classifier
	linker     ApplicationLinker
	locks      *keylock.Table
	cfg        config.SyncConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewSyncCoordinator creates a new sync coordinator. linker may be nil.
func NewSyncCoordinator(
	provider emaildomain.MailProvider,
	emails EmailStore,
	cursors CursorStore,
	policies PolicySource,
	classifier *Classifier,
	linker ApplicationLinker,
	cfg *config.Config,
	logger *zap.Logger,
) *SyncCoordinator {
	syncCfg := cfg.Sync
	if syncCfg.MaxAttempts < 1 {
		syncCfg.MaxAttempts = 1
	}
	if syncCfg.PageSize < 1 {
		syncCfg.PageSize = 50
	}
	if syncCfg.ClassifyWorkers < 1 {
		syncCfg.ClassifyWorkers = 1
	}
	if syncCfg.Timeout <= 0 {
		syncCfg.Timeout = 2 * time.Minute
	}
	return &SyncCoordinator{
		provider:   provider,
		emails:     emails,
		cursors:    cursors,
		policies:   policies,
		classifier: classifier,
		linker:     linker,
		locks:      keylock.New(),
		cfg:        syncCfg,
		logger:     logger.Named("sync"),
		now:        time.Now,
	}
}

// FetchBatch ingests up to maxResults messages received in the last
// daysBack days. Only one batch per account runs at a time; a concurrent
// call fails with ErrSyncInProgress.
//
// The batch ignores cancellation of ctx and is bounded by the sync
// timeout instead. When the provider fails after retries the partial
// report is returned together with an ErrProvider error; emails already
// stored are kept.
func (s *SyncCoordinator) FetchBatch(ctx context.Context, accountID string, daysBack, maxResults int) (*emaildomain.SyncReport, error) {
	if accountID == "" {
		return nil, apperror.Validation("account is required")
	}
	if daysBack < 1 || daysBack > MaxDaysBack {
		return nil, apperror.Validation("days_back must be between 1 and %d", MaxDaysBack)
	}
	if maxResults < 1 || maxResults > MaxMaxResults {
		return nil, apperror.Validation("max_results must be between 1 and %d", MaxMaxResults)
	}

	release, ok := s.locks.TryLock(accountID)
	if !ok {
		return nil, fmt.Errorf("%w: account %s", apperror.ErrSyncInProgress, accountID)
	}
	defer release()

	started := s.now()
	report := &emaildomain.SyncReport{StartedAt: started, Failures: []emaildomain.SyncFailure{}}
	log := s.logger.With(zap.String("account", accountID))
	log.Info("sync started", zap.Int("days_back", daysBack), zap.Int("max_results", maxResults))

	batchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
	defer cancel()

	err := s.run(batchCtx, accountID, started.AddDate(0, 0, -daysBack), maxResults, report)
	if err != nil && !errors.Is(err, apperror.ErrProvider) && errors.Is(batchCtx.Err(), context.DeadlineExceeded) {
		err = &apperror.ProviderError{Op: "sync", Err: fmt.Errorf("timed out after %s: %w", s.cfg.Timeout, err)}
	}
	report.FinishedAt = s.now()
	if err != nil {
		report.Aborted = true
		report.Error = err.Error()
	}

	// The cursor is written even when the batch context has expired.
	s.saveCursor(context.WithoutCancel(ctx), accountID, started, report)

	fields := []zap.Field{
		zap.Int("fetched", report.Fetched),
		zap.Int("new", report.New),
		zap.Int("skipped_duplicate", report.SkippedDuplicate),
		zap.Int("job_related", report.ClassifiedJobRelated),
		zap.Int("parse_failed", report.ParseFailed),
		zap.Int("linked", report.Linked),
		zap.Duration("took", report.FinishedAt.Sub(started)),
	}
	if err != nil {
		log.Error("sync aborted", append(fields, zap.Error(err))...)
		return report, err
	}
	log.Info("sync finished", fields...)
	return report, nil
}

func (s *SyncCoordinator) run(ctx context.Context, accountID string, since time.Time, maxResults int, report *emaildomain.SyncReport) error {
	policy, err := s.policies.Snapshot(ctx, accountID)
	if err != nil {
		return err
	}

	pageToken := ""
	seenTokens := make(map[string]bool)
	for report.Fetched < maxResults {
		remaining := maxResults - report.Fetched
		page, err := s.fetchPage(ctx, accountID, emaildomain.ListQuery{
			Since:     since,
			PageSize:  min(s.cfg.PageSize, remaining),
			PageToken: pageToken,
		})
		if err != nil {
			return err
		}

		messages := page.Messages
		if len(messages) > remaining {
			messages = messages[:remaining]
		}
		report.Fetched += len(messages)

		if err := s.ingest(ctx, accountID, policy, messages, report); err != nil {
			return err
		}

		// An empty page can still carry a token when every listed message
		// vanished before it was read.
		if page.NextPageToken == "" {
			break
		}
		if seenTokens[page.NextPageToken] {
			s.logger.Warn("provider repeated a page token, stopping",
				zap.String("account", accountID),
				zap.String("page_token", page.NextPageToken))
			break
		}
		seenTokens[page.NextPageToken] = true
		pageToken = page.NextPageToken
	}
	return nil
}

// fetchPage retries transient provider errors with exponential backoff.
// Permanent errors are returned at once.
func (s *SyncCoordinator) fetchPage(ctx context.Context, accountID string, q emaildomain.ListQuery) (*emaildomain.MessagePage, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := s.cfg.RetryBaseDelay * time.Duration(1<<(attempt-1))
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, providerError(ctx.Err())
			case <-timer.C:
			}
		}

		page, err := s.provider.ListMessages(ctx, accountID, q)
		if err == nil {
			return page, nil
		}
		lastErr = err

		if !apperror.IsTransient(err) {
			return nil, providerError(err)
		}

		s.logger.Warn("transient provider failure, retrying",
			zap.String("account", accountID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, providerError(lastErr)
}

func providerError(err error) error {
	if errors.Is(err, apperror.ErrProvider) {
		return err
	}
	return &apperror.ProviderError{Op: "list messages", Err: err}
}

// ingest parses, deduplicates, classifies and stores one page.
func (s *SyncCoordinator) ingest(ctx context.Context, accountID string, policy *filterdomain.Policy, raws []emaildomain.RawMessage, report *emaildomain.SyncReport) error {
	parsed := make([]*emaildomain.Email, 0, len(raws))
	ids := make([]string, 0, len(raws))
	for _, raw := range raws {
		email, err := ParseRawMessage(raw)
		if err != nil {
			report.ParseFailed++
			report.Failures = append(report.Failures, emaildomain.SyncFailure{MessageID: raw.ID, Reason: err.Error()})
			s.logger.Debug("skipping unparsable message", zap.String("message_id", raw.ID), zap.Error(err))
			continue
		}
		email.AccountID = accountID
		parsed = append(parsed, email)
		ids = append(ids, email.ProviderMessageID)
	}

	existing, err := s.emails.ExistingProviderIDs(ctx, ids)
	if err != nil {
		return err
	}

	fresh := make([]*emaildomain.Email, 0, len(parsed))
	for _, email := range parsed {
		if existing[email.ProviderMessageID] {
			report.SkippedDuplicate++
			continue
		}
		// a page may repeat a message
		existing[email.ProviderMessageID] = true
		fresh = append(fresh, email)
	}

	results := make([]emaildomain.Classification, len(fresh))
	var g errgroup.Group
	g.SetLimit(s.cfg.ClassifyWorkers)
	for i, email := range fresh {
		g.Go(func() error {
			results[i] = s.classifier.Classify(email.Stub(), policy.EvaluateSender(email.SenderEmail))
			return nil
		})
	}
	_ = g.Wait()

	for i, email := range fresh {
		email.IsJobRelated = results[i].Relevance
		email.ClassificationScore = results[i].Score

		created, err := s.emails.Insert(ctx, email)
		if err != nil {
			return fmt.Errorf("store email %s: %w", email.ProviderMessageID, err)
		}
		if !created {
			report.SkippedDuplicate++
			continue
		}
		report.New++

		if email.IsJobRelated != emaildomain.JobRelated {
			continue
		}
		report.ClassifiedJobRelated++

		if s.linker == nil {
			continue
		}
		result, err := s.linker.TryLink(ctx, email)
		if err != nil {
			s.logger.Warn("auto-link failed", zap.String("email_id", email.ID), zap.Error(err))
			continue
		}
		if result.Linked {
			report.Linked++
		}
	}
	return nil
}

func (s *SyncCoordinator) saveCursor(ctx context.Context, accountID string, started time.Time, report *emaildomain.SyncReport) {
	payload, err := json.Marshal(report)
	if err != nil {
		s.logger.Error("failed to encode sync report", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err = s.cursors.Save(ctx, &emaildomain.SyncCursor{
		AccountID:    accountID,
		LastSyncedAt: started,
		LastReport:   string(payload),
		UpdatedAt:    s.now(),
	})
	if err != nil {
		s.logger.Error("failed to save sync cursor", zap.String("account", accountID), zap.Error(err))
	}
}

// Status reports whether a batch is running and the last recorded result.
func (s *SyncCoordinator) Status(ctx context.Context, accountID string) (*emaildomain.SyncStatus, error) {
	status := &emaildomain.SyncStatus{InProgress: s.locks.Held(accountID)}

	stored, err := s.emails.Count(ctx, accountID)
	if err != nil {
		return nil, err
	}
	status.StoredEmails = stored

	cursor, err := s.cursors.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if cursor == nil {
		return status, nil
	}

	last := cursor.LastSyncedAt
	status.LastSyncedAt = &last
	if cursor.LastReport != "" {
		var report emaildomain.SyncReport
		if err := json.Unmarshal([]byte(cursor.LastReport), &report); err != nil {
			s.logger.Warn("stored sync report is unreadable", zap.String("account", accountID), zap.Error(err))
		} else {
			status.LastReport = &report
		}
	}
	return status, nil
}
