package usecase

import (
	"context"
	"testing"
	"time"

	appdomain "jobtrail-backend/internal/application/domain"
	"jobtrail-backend/internal/application/repository"
	emaildomain "jobtrail-backend/internal/email/domain"
	emailrepo "jobtrail-backend/internal/email/repository"
	"jobtrail-backend/internal/testutil"
	"jobtrail-backend/pkg/config"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const account = "acct-1"

type appHarness struct {
	db        *gorm.DB
	repo      *repository.ApplicationRepository
	emails    *emailrepo.EmailRepository
	lifecycle *Lifecycle
	linker    *Linker
	usecase   ApplicationUsecase
}

func newAppHarness(t *testing.T, mutate ...func(*config.Config)) *appHarness {
	t.Helper()
	db := testutil.NewTestDB(t)
	log := testutil.NewLogger(t)

	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}

	h := &appHarness{
		db:     db,
		repo:   repository.NewApplicationRepository(db),
		emails: emailrepo.NewEmailRepository(db),
	}
	h.lifecycle = NewLifecycle(h.repo, log)
	linker, err := NewLinker(h.repo, h.emails, cfg, log)
	require.NoError(t, err)
	h.linker = linker
	h.usecase = NewApplicationUsecase(h.repo, h.lifecycle, log)
	return h
}

func (h *appHarness) seedApp(t *testing.T, company string, status appdomain.ApplicationStatus) *appdomain.Application {
	t.Helper()
	s := string(status)
	app, err := h.usecase.CreateApplication(context.Background(), account, ApplicationInput{
		CompanyName: &company,
		Position:    ptr("Software Engineer"),
		Status:      &s,
	})
	require.NoError(t, err)
	return app
}

func (h *appHarness) seedEmail(t *testing.T, providerID, sender, senderEmail, subject string, relevance emaildomain.JobRelevance) *emaildomain.Email {
	t.Helper()
	email := &emaildomain.Email{
		AccountID:         account,
		ProviderMessageID: providerID,
		Sender:            sender,
		SenderEmail:       senderEmail,
		Subject:           subject,
		DateReceived:      time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		IsJobRelated:      relevance,
	}
	created, err := h.emails.Insert(context.Background(), email)
	require.NoError(t, err)
	require.True(t, created)
	return email
}

func (h *appHarness) reloadEmail(t *testing.T, id string) *emaildomain.Email {
	t.Helper()
	email, err := h.emails.FindByID(context.Background(), account, id)
	require.NoError(t, err)
	require.NotNil(t, email)
	return email
}

func ptr[T any](v T) *T { return &v }
