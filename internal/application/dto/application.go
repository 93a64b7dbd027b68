package dto

import (
	"encoding/json"
	"strings"
	"time"

	appdomain "jobtrail-backend/internal/application/domain"
	"jobtrail-backend/internal/application/usecase"
	"jobtrail-backend/pkg/apperror"
)

// Date accepts either "2006-01-02" or RFC 3339.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return apperror.Validation("applied_date must be a string")
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t
			return nil
		}
	}
	return apperror.Validation("applied_date %q is not a date", raw)
}

type ApplicationRequest struct {
	CompanyName   *string `json:"company_name"`
	Position      *string `json:"position"`
	Status        *string `json:"status"`
	AppliedDate   *Date   `json:"applied_date"`
	Location      *string `json:"location"`
	SalaryRange   *string `json:"salary_range"`
	JobPostingURL *string `json:"job_posting_url"`
	Notes         *string `json:"notes"`
}

func (r *ApplicationRequest) Input() usecase.ApplicationInput {
	input := usecase.ApplicationInput{
		CompanyName:   r.CompanyName,
		Position:      r.Position,
		Status:        r.Status,
		Location:      r.Location,
		SalaryRange:   r.SalaryRange,
		JobPostingURL: r.JobPostingURL,
		Notes:         r.Notes,
	}
	if r.AppliedDate != nil {
		t := r.AppliedDate.Time
		input.AppliedDate = &t
	}
	return input
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type ApplicationsResponse struct {
	Applications []*appdomain.Application `json:"applications"`
	Total        int                      `json:"total"`
}

type KanbanResponse struct {
	Columns []usecase.KanbanColumn `json:"columns"`
}

type HistoryResponse struct {
	History []*appdomain.StatusTransitionLog `json:"history"`
}
