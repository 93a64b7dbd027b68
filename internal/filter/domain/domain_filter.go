package domain

import (
	"strings"
	"time"
)

// DomainFilter is a user rule allowing or blocking a sender domain.
type DomainFilter struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	AccountID string    `json:"-" gorm:"uniqueIndex:idx_account_domain;not null"`
	Domain    string    `json:"domain" gorm:"uniqueIndex:idx_account_domain;not null"` // always lower-cased
	IsAllowed bool      `json:"is_allowed" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
}

// Decision is the outcome of evaluating a sender domain.
type Decision string

const (
	Allowed Decision = "allowed"
	Blocked Decision = "blocked"
)

// Policy is an immutable snapshot of an account's filters, keyed by domain.
// It is safe for concurrent reads.
type Policy struct {
	rules map[string]bool
}

// NewPolicy builds a snapshot from filters.
func NewPolicy(filters []*DomainFilter) *Policy {
	rules := make(map[string]bool, len(filters))
	for _, f := range filters {
		rules[strings.ToLower(f.Domain)] = f.IsAllowed
	}
	return &Policy{rules: rules}
}

// Evaluate matches domain exactly and case-insensitively. A domain with no
// rule is allowed.
func (p *Policy) Evaluate(domain string) Decision {
	if p == nil {
		return Allowed
	}
	allowed, ok := p.rules[strings.ToLower(strings.TrimSpace(domain))]
	if ok && !allowed {
		return Blocked
	}
	return Allowed
}

// EvaluateSender evaluates the domain part of an email address.
func (p *Policy) EvaluateSender(address string) Decision {
	return p.Evaluate(SenderDomain(address))
}

// SenderDomain returns the lower-cased domain of an email address, or "".
func SenderDomain(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(strings.TrimSuffix(address[at+1:], ">")))
}
