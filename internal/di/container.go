package di

import (
	"fmt"

	api "jobtrail-backend/cmd/api"
	appDelivery "jobtrail-backend/internal/application/delivery"
	appRepo "jobtrail-backend/internal/application/repository"
	appUsecase "jobtrail-backend/internal/application/usecase"
	authUsecase "jobtrail-backend/internal/auth/usecase"
	emailDelivery "jobtrail-backend/internal/email/delivery"
	emaildomain "jobtrail-backend/internal/email/domain"
	emailRepo "jobtrail-backend/internal/email/repository"
	emailUsecase "jobtrail-backend/internal/email/usecase"
	filterDelivery "jobtrail-backend/internal/filter/delivery"
	filterRepo "jobtrail-backend/internal/filter/repository"
	filterUsecase "jobtrail-backend/internal/filter/usecase"
	"jobtrail-backend/internal/scheduler"
	"jobtrail-backend/pkg/config"
	"jobtrail-backend/pkg/database"
	"jobtrail-backend/pkg/gmail"
	"jobtrail-backend/pkg/imap"
	"jobtrail-backend/pkg/logger"

	"go.uber.org/dig"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BuildContainer creates the production container: config, logger,
// database and mail provider come from cfg, everything else from Register.
func BuildContainer(cfg *config.Config) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logger.New); err != nil {
		return nil, err
	}

	// Register database
	if err := container.Provide(database.Open); err != nil {
		return nil, err
	}

	// Register Gmail service (also used by the authorize command)
	if err := container.Provide(func(cfg *config.Config, log *zap.Logger) *gmail.Service {
		tokens := gmail.NewFileTokenStore(cfg.Mail.GmailTokenDir)
		return gmail.NewService(cfg.Mail.GoogleClientID, cfg.Mail.GoogleClientSecret, tokens, log)
	}); err != nil {
		return nil, err
	}

	// Register mail provider
	if err := container.Provide(newMailProvider); err != nil {
		return nil, err
	}

	if err := Register(container); err != nil {
		return nil, err
	}
	return container, nil
}

func newMailProvider(cfg *config.Config, gmailService *gmail.Service, log *zap.Logger) (emaildomain.MailProvider, error) {
	switch cfg.Mail.Provider {
	case "gmail", "":
		return gmailService, nil
	case "imap":
		if cfg.Mail.IMAPHost == "" {
			return nil, fmt.Errorf("mail.imap_host is required for the imap provider")
		}
		return imap.NewProvider(cfg, log), nil
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", cfg.Mail.Provider)
	}
}

// Register adds repositories, use cases, handlers and the scheduler. The
// container must already provide *config.Config, *zap.Logger, *gorm.DB
// and emaildomain.MailProvider.
func Register(container *dig.Container) error {
	constructors := []any{
		// Repositories
		filterRepo.NewDomainFilterRepository,
		emailRepo.NewEmailRepository,
		emailRepo.NewSyncCursorRepository,
		appRepo.NewApplicationRepository,

		// Domain policy
		func(repo *filterRepo.DomainFilterRepository, log *zap.Logger) *filterUsecase.Engine {
			return filterUsecase.NewEngine(repo, log)
		},

		// Classifier
		func(cfg *config.Config) *emailUsecase.Classifier {
			return emailUsecase.NewClassifier(cfg.Classifier)
		},

		// Applications
		func(repo *appRepo.ApplicationRepository, log *zap.Logger) *appUsecase.Lifecycle {
			return appUsecase.NewLifecycle(repo, log)
		},
		func(repo *appRepo.ApplicationRepository, emails *emailRepo.EmailRepository, cfg *config.Config, log *zap.Logger) (*appUsecase.Linker, error) {
			return appUsecase.NewLinker(repo, emails, cfg, log)
		},
		func(repo *appRepo.ApplicationRepository, lifecycle *appUsecase.Lifecycle, log *zap.Logger) appUsecase.ApplicationUsecase {
			return appUsecase.NewApplicationUsecase(repo, lifecycle, log)
		},

		// Emails
		func(
			provider emaildomain.MailProvider,
			emails *emailRepo.EmailRepository,
			cursors *emailRepo.SyncCursorRepository,
			engine *filterUsecase.Engine,
			classifier *emailUsecase.Classifier,
			linker *appUsecase.Linker,
			cfg *config.Config,
			log *zap.Logger,
		) emailUsecase.SyncService {
			return emailUsecase.NewSyncCoordinator(provider, emails, cursors, engine, classifier, linker, cfg, log)
		},
		func(emails *emailRepo.EmailRepository, engine *filterUsecase.Engine, classifier *emailUsecase.Classifier, log *zap.Logger) emailUsecase.EmailUsecase {
			return emailUsecase.NewEmailUsecase(emails, engine, classifier, log)
		},

		// Auth
		authUsecase.NewAuthUsecase,

		// Handlers
		filterDelivery.NewDomainFilterHandler,
		appDelivery.NewApplicationHandler,
		func(emails emailUsecase.EmailUsecase, syncService emailUsecase.SyncService, linker *appUsecase.Linker) *emailDelivery.EmailHandler {
			return emailDelivery.NewEmailHandler(emails, syncService, linker)
		},
		api.NewHandler,

		// Scheduler
		scheduler.NewSyncScheduler,
	}

	for _, constructor := range constructors {
		if err := container.Provide(constructor); err != nil {
			return err
		}
	}
	return nil
}

// Migrate creates or updates the schema on the container's database.
func Migrate(container *dig.Container) error {
	return container.Invoke(func(db *gorm.DB) error {
		return database.AutoMigrate(db)
	})
}
