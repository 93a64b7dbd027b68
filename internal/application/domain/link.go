package domain

import "time"

type LinkOrigin string

const (
	LinkAuto   LinkOrigin = "auto"
	LinkManual LinkOrigin = "manual"
)

// EmailLink ties an email to at most one application. It is the only
// source of Email.HasApplication.
type EmailLink struct {
	ID            string     `json:"id" gorm:"primaryKey"`
	AccountID     string     `json:"-" gorm:"index;not null"`
	EmailID       string     `json:"email_id" gorm:"uniqueIndex;not null"`
	ApplicationID string     `json:"application_id" gorm:"index;not null"`
	Origin        LinkOrigin `json:"origin" gorm:"type:varchar(8);not null"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Reasons an email was left unlinked.
const (
	ReasonNotJobRelated  = "not_job_related"
	ReasonNoOrganization = "no_organization"
	ReasonNoMatch        = "no_match"
	ReasonAmbiguous      = "ambiguous"
)

// LinkResult is the outcome of an automatic link attempt.
type LinkResult struct {
	Linked        bool   `json:"linked"`
	ApplicationID string `json:"application_id,omitempty"`
	Created       bool   `json:"created,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

func Linked(applicationID string) LinkResult {
	return LinkResult{Linked: true, ApplicationID: applicationID}
}

func Unlinked(reason string) LinkResult {
	return LinkResult{Reason: reason}
}
