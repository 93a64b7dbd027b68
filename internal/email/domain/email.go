package domain

import (
	"strings"
	"time"

	"jobtrail-backend/pkg/apperror"
)

// EmailStatus is the user-facing triage state of an ingested email.
type EmailStatus string

const (
	StatusUnread    EmailStatus = "UNREAD"
	StatusRead      EmailStatus = "READ"
	StatusProcessed EmailStatus = "PROCESSED"
	StatusIgnored   EmailStatus = "IGNORED"
)

func (s EmailStatus) Valid() bool {
	switch s {
	case StatusUnread, StatusRead, StatusProcessed, StatusIgnored:
		return true
	}
	return false
}

// ParseEmailStatus accepts any casing and rejects unknown values.
func ParseEmailStatus(s string) (EmailStatus, error) {
	status := EmailStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", apperror.Validation("invalid email status %q", s)
	}
	return status, nil
}

// Email is one ingested mailbox message.
type Email struct {
	ID                  string       `json:"id" gorm:"primaryKey"`
	AccountID           string       `json:"-" gorm:"index;not null"`
	ProviderMessageID   string       `json:"provider_message_id" gorm:"uniqueIndex;not null"`
	Sender              string       `json:"sender"`
	SenderEmail         string       `json:"sender_email" gorm:"index"`
	Subject             string       `json:"subject"`
	Snippet             string       `json:"snippet" gorm:"type:text"`
	DateReceived        time.Time    `json:"date_received" gorm:"index"`
	Status              EmailStatus  `json:"status" gorm:"type:varchar(16);not null;default:UNREAD"`
	IsJobRelated        JobRelevance `json:"is_job_related"`
	ClassificationScore int          `json:"classification_score"`
	// HasApplication is derived from the link table on every read.
	HasApplication bool      `json:"has_application" gorm:"->;-:migration"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EmailStub is the part of a message the classifier looks at.
type EmailStub struct {
	SenderName  string
	SenderEmail string
	Subject     string
}

func (e *Email) Stub() EmailStub {
	return EmailStub{
		SenderName:  e.Sender,
		SenderEmail: e.SenderEmail,
		Subject:     e.Subject,
	}
}

// Classification is the classifier output for one message.
type Classification struct {
	Relevance JobRelevance
	Score     int
	Reason    string
}

// EmailFilter narrows an email listing. Nil fields are ignored.
type EmailFilter struct {
	Status     *EmailStatus
	JobRelated *JobRelevance
}
