package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	filterdomain "jobtrail-backend/internal/filter/domain"
	"jobtrail-backend/pkg/apperror"

	"go.uber.org/zap"
)

// FilterRepository is the storage the engine needs.
type FilterRepository interface {
	ListByAccount(ctx context.Context, accountID string) ([]*filterdomain.DomainFilter, error)
	FindByID(ctx context.Context, accountID, id string) (*filterdomain.DomainFilter, error)
	Create(ctx context.Context, filter *filterdomain.DomainFilter) (bool, error)
	Toggle(ctx context.Context, accountID, id string) (*filterdomain.DomainFilter, error)
	Delete(ctx context.Context, accountID, id string) (bool, error)
}

var domainPattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z0-9-]{2,63}$`)

// Engine decides allow/block for sender domains and manages the rules.
type Engine struct {
	repo   FilterRepository
	logger *zap.Logger
}

// NewEngine creates a new domain policy engine
func NewEngine(repo FilterRepository, logger *zap.Logger) *Engine {
	return &Engine{repo: repo, logger: logger.Named("filter")}
}

// NormalizeDomain lower-cases and validates a user-supplied domain. A
// leading "@", scheme or trailing path is stripped first.
func NormalizeDomain(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "@")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimSuffix(d, ".")
	if d == "" {
		return "", apperror.Validation("domain is required")
	}
	if len(d) > 253 || !domainPattern.MatchString(d) {
		return "", apperror.Validation("malformed domain %q", raw)
	}
	return d, nil
}

// Evaluate returns Allowed unless a rule blocks the domain.
func (e *Engine) Evaluate(ctx context.Context, accountID, domain string) (filterdomain.Decision, error) {
	policy, err := e.Snapshot(ctx, accountID)
	if err != nil {
		return filterdomain.Allowed, err
	}
	return policy.Evaluate(domain), nil
}

// EvaluateSender evaluates the domain part of a sender address.
func (e *Engine) EvaluateSender(ctx context.Context, accountID, senderEmail string) (filterdomain.Decision, error) {
	return e.Evaluate(ctx, accountID, filterdomain.SenderDomain(senderEmail))
}

// Snapshot loads the account's rules into an immutable policy.
func (e *Engine) Snapshot(ctx context.Context, accountID string) (*filterdomain.Policy, error) {
	filters, err := e.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load domain filters: %w", err)
	}
	return filterdomain.NewPolicy(filters), nil
}

func (e *Engine) ListFilters(ctx context.Context, accountID string) ([]*filterdomain.DomainFilter, error) {
	return e.repo.ListByAccount(ctx, accountID)
}

// AddFilter creates a rule; the normalized domain must not exist yet.
func (e *Engine) AddFilter(ctx context.Context, accountID, domain string, isAllowed bool) (*filterdomain.DomainFilter, error) {
	normalized, err := NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}

	filter := &filterdomain.DomainFilter{
		AccountID: accountID,
		Domain:    normalized,
		IsAllowed: isAllowed,
	}
	created, err := e.repo.Create(ctx, filter)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, fmt.Errorf("%w: %s", apperror.ErrDuplicateFilter, normalized)
	}

	e.logger.Info("domain filter added",
		zap.String("account", accountID),
		zap.String("domain", normalized),
		zap.Bool("allowed", isAllowed))
	return filter, nil
}

// ToggleFilter flips is_allowed on an existing rule.
func (e *Engine) ToggleFilter(ctx context.Context, accountID, id string) (*filterdomain.DomainFilter, error) {
	filter, err := e.repo.Toggle(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return nil, apperror.NotFound("domain filter", id)
	}
	e.logger.Info("domain filter toggled",
		zap.String("account", accountID),
		zap.String("domain", filter.Domain),
		zap.Bool("allowed", filter.IsAllowed))
	return filter, nil
}

// RemoveFilter deletes a rule in one statement.
func (e *Engine) RemoveFilter(ctx context.Context, accountID, id string) error {
	deleted, err := e.repo.Delete(ctx, accountID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NotFound("domain filter", id)
	}
	e.logger.Info("domain filter removed", zap.String("account", accountID), zap.String("id", id))
	return nil
}
