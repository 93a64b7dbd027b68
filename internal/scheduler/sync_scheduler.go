package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"jobtrail-backend/internal/email/usecase"
	"jobtrail-backend/pkg/apperror"
	"jobtrail-backend/pkg/config"

	"go.uber.org/zap"
)

// SyncScheduler runs a sync batch for each configured account on a fixed
// interval, alongside manual syncs from the API.
type SyncScheduler struct {
	sync       usecase.SyncService
	accounts   []string
	interval   time.Duration
	daysBack   int
	maxResults int
	logger     *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewSyncScheduler(syncService usecase.SyncService, cfg *config.Config, logger *zap.Logger) *SyncScheduler {
	return &SyncScheduler{
		sync:       syncService,
		accounts:   cfg.Sync.ScheduleAccounts,
		interval:   cfg.Sync.ScheduleInterval,
		daysBack:   cfg.Sync.ScheduleDaysBack,
		maxResults: cfg.Sync.ScheduleMax,
		logger:     logger.Named("scheduler"),
		stopChan:   make(chan struct{}),
	}
}

// Start begins the scheduler loop. It is a no-op without an interval or
// accounts.
func (s *SyncScheduler) Start() {
	if s.interval <= 0 || len(s.accounts) == 0 {
		s.logger.Info("sync scheduler disabled")
		return
	}

	s.logger.Info("starting sync scheduler",
		zap.Duration("interval", s.interval),
		zap.Strings("accounts", s.accounts))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Run immediately on start
		s.runOnce()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.stopChan:
				s.logger.Info("sync scheduler stopped")
				return
			}
		}
	}()
}

// Stop ends the loop and waits for a running pass to finish.
func (s *SyncScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func (s *SyncScheduler) runOnce() {
	for _, account := range s.accounts {
		select {
		case <-s.stopChan:
			return
		default:
		}

		report, err := s.sync.FetchBatch(context.Background(), account, s.daysBack, s.maxResults)
		switch {
		case errors.Is(err, apperror.ErrSyncInProgress):
			s.logger.Debug("sync already running, skipping", zap.String("account", account))
		case err != nil:
			s.logger.Warn("scheduled sync failed", zap.String("account", account), zap.Error(err))
		default:
			s.logger.Info("scheduled sync done",
				zap.String("account", account),
				zap.Int("new", report.New),
				zap.Int("linked", report.Linked))
		}
	}
}
