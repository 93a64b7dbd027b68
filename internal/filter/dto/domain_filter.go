package dto

import filterdomain "jobtrail-backend/internal/filter/domain"

type CreateDomainFilterRequest struct {
	Domain    string `json:"domain" binding:"required"`
	IsAllowed bool   `json:"is_allowed"`
}

type DomainFiltersResponse struct {
	Filters []*filterdomain.DomainFilter `json:"filters"`
}
