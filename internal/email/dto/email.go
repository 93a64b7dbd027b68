package dto

import (
	emaildomain "jobtrail-backend/internal/email/domain"
)

const (
	DefaultDaysBack   = 7
	DefaultMaxResults = 50
)

type EmailsResponse struct {
	Emails []*emaildomain.Email `json:"emails"`
	Total  int                  `json:"total"`
}

// SyncRequest may be sent with an empty body; missing fields take the defaults.
type SyncRequest struct {
	DaysBack   *int `json:"days_back"`
	MaxResults *int `json:"max_results"`
}

func (r SyncRequest) Values() (daysBack, maxResults int) {
	daysBack, maxResults = DefaultDaysBack, DefaultMaxResults
	if r.DaysBack != nil {
		daysBack = *r.DaysBack
	}
	if r.MaxResults != nil {
		maxResults = *r.MaxResults
	}
	return daysBack, maxResults
}

// SyncFailedResponse carries the partial report of a run the provider cut short.
type SyncFailedResponse struct {
	Error  string                  `json:"error"`
	Kind   string                  `json:"kind"`
	Report *emaildomain.SyncReport `json:"report"`
}

type UpdateEmailStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type LinkRequest struct {
	ApplicationID string `json:"application_id" binding:"required"`
}

type CreateApplicationFromEmailRequest struct {
	CompanyName string `json:"company_name"`
	Position    string `json:"position"`
}
