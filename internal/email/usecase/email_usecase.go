package usecase

import (
	"context"

	emaildomain "jobtrail-backend/internal/email/domain"
	"jobtrail-backend/pkg/apperror"

	"go.uber.org/zap"
)

// EmailRepository is the storage emailUsecase reads and updates.
type EmailRepository interface {
	FindByID(ctx context.Context, accountID, id string) (*emaildomain.Email, error)
	List(ctx context.Context, accountID string, filter emaildomain.EmailFilter) ([]*emaildomain.Email, error)
	UpdateStatus(ctx context.Context, accountID, id string, status emaildomain.EmailStatus) (bool, error)
	UpdateClassification(ctx context.Context, id string, relevance emaildomain.JobRelevance, score int) error
}

// emailUsecase implements EmailUsecase interface
type emailUsecase struct {
	emailRepo  EmailRepository
	policies   PolicySource
	classifier *Classifier
	logger     *zap.Logger
}

// NewEmailUsecase creates a new instance of emailUsecase
func NewEmailUsecase(emailRepo EmailRepository, policies PolicySource, classifier *Classifier, logger *zap.Logger) EmailUsecase {
	return &emailUsecase{
		emailRepo:  emailRepo,
		policies:   policies,
		classifier: classifier,
		logger:     logger.Named("email"),
	}
}

func (u *emailUsecase) ListEmails(ctx context.Context, accountID string, filter emaildomain.EmailFilter) ([]*emaildomain.Email, error) {
	emails, err := u.emailRepo.List(ctx, accountID, filter)
	if err != nil {
		return nil, err
	}
	if emails == nil {
		emails = []*emaildomain.Email{}
	}
	return emails, nil
}

func (u *emailUsecase) GetEmail(ctx context.Context, accountID, id string) (*emaildomain.Email, error) {
	email, err := u.emailRepo.FindByID(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, apperror.NotFound("email", id)
	}
	return email, nil
}

func (u *emailUsecase) UpdateStatus(ctx context.Context, accountID, id string, status emaildomain.EmailStatus) (*emaildomain.Email, error) {
	if !status.Valid() {
		return nil, apperror.Validation("invalid email status %q", status)
	}
	updated, err := u.emailRepo.UpdateStatus(ctx, accountID, id, status)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, apperror.NotFound("email", id)
	}
	return u.GetEmail(ctx, accountID, id)
}

func (u *emailUsecase) ReclassifyAll(ctx context.Context, accountID string) (*ReclassifyReport, error) {
	policy, err := u.policies.Snapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}
	emails, err := u.emailRepo.List(ctx, accountID, emaildomain.EmailFilter{})
	if err != nil {
		return nil, err
	}

	report := &ReclassifyReport{Scanned: len(emails)}
	for _, email := range emails {
		result := u.classifier.Classify(email.Stub(), policy.EvaluateSender(email.SenderEmail))
		if result.Relevance == email.IsJobRelated && result.Score == email.ClassificationScore {
			continue
		}
		if err := u.emailRepo.UpdateClassification(ctx, email.ID, result.Relevance, result.Score); err != nil {
			return nil, err
		}
		report.Changed++
	}

	u.logger.Info("emails reclassified",
		zap.String("account", accountID),
		zap.Int("scanned", report.Scanned),
		zap.Int("changed", report.Changed))
	return report, nil
}
