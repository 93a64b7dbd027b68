package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"jobtrail-backend/pkg/apperror"
)

// ApplicationStatus is one of the six lifecycle states. Parsing, JSON
// decoding and database scans all reject any other value.
type ApplicationStatus string

const (
	StatusApplied   ApplicationStatus = "APPLIED"
	StatusReplied   ApplicationStatus = "REPLIED"
	StatusInterview ApplicationStatus = "INTERVIEW"
	StatusOffer     ApplicationStatus = "OFFER"
	StatusRejected  ApplicationStatus = "REJECTED"
	StatusArchive   ApplicationStatus = "ARCHIVE"
)

// Statuses lists every valid status.
var Statuses = []ApplicationStatus{
	StatusApplied, StatusReplied, StatusInterview, StatusOffer, StatusRejected, StatusArchive,
}

// KanbanOrder is the column order of the dashboard board.
var KanbanOrder = []ApplicationStatus{
	StatusApplied, StatusInterview, StatusOffer, StatusRejected, StatusReplied, StatusArchive,
}

func (s ApplicationStatus) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus accepts any casing and surrounding whitespace.
func ParseStatus(s string) (ApplicationStatus, error) {
	status := ApplicationStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", apperror.Validation("invalid status %q", s)
	}
	return status, nil
}

// ParseStatuses parses a list, skipping blanks.
func ParseStatuses(values []string) ([]ApplicationStatus, error) {
	out := make([]ApplicationStatus, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		s, err := ParseStatus(v)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (s *ApplicationStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return apperror.Validation("status must be a string")
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s ApplicationStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("refusing to store invalid status %q", string(s))
	}
	return string(s), nil
}

func (s *ApplicationStatus) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into ApplicationStatus", src)
	}
	status := ApplicationStatus(raw)
	if !status.Valid() {
		return fmt.Errorf("stored status %q is not a valid application status", raw)
	}
	*s = status
	return nil
}

// Application is a job application tracked on the board.
type Application struct {
	ID            string            `json:"id" gorm:"primaryKey"`
	AccountID     string            `json:"-" gorm:"index;not null"`
	CompanyName   string            `json:"company_name" gorm:"not null"`
	Position      string            `json:"position"`
	Status        ApplicationStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	AppliedDate   time.Time         `json:"applied_date"`
	Location      *string           `json:"location,omitempty"`
	SalaryRange   *string           `json:"salary_range,omitempty"`
	JobPostingURL *string           `json:"job_posting_url,omitempty"`
	Notes         *string           `json:"notes,omitempty" gorm:"type:text"`
	// SourceEmailID is a plain reference; deleting the email never touches
	// the application.
	SourceEmailID *string   `json:"source_email_id,omitempty" gorm:"index"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ApplicationFilter narrows a listing. Search is a case-insensitive
// substring match on company name or position.
type ApplicationFilter struct {
	Search string
	Status *ApplicationStatus
}

// StatusTransitionLog is one append-only audit entry.
type StatusTransitionLog struct {
	Seq           uint64            `json:"seq" gorm:"primaryKey;autoIncrement"`
	ApplicationID string            `json:"application_id" gorm:"index;not null"`
	AccountID     string            `json:"-" gorm:"index;not null"`
	FromStatus    ApplicationStatus `json:"from_status" gorm:"type:varchar(16);not null"`
	ToStatus      ApplicationStatus `json:"to_status" gorm:"type:varchar(16);not null"`
	At            time.Time         `json:"at" gorm:"not null"`
}
