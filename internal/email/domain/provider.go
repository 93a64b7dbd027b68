package domain

import (
	"context"
	"time"
)

// MailProvider fetches raw messages from a mailbox. Adapters report
// failures as *apperror.ProviderError so the sync loop can tell transient
// errors from permanent ones.
type MailProvider interface {
	ListMessages(ctx context.Context, accountID string, q ListQuery) (*MessagePage, error)
}

type ListQuery struct {
	Since     time.Time
	PageSize  int
	PageToken string
}

type MessagePage struct {
	Messages      []RawMessage
	NextPageToken string // empty on the last page
}

// RawMessage is a message as returned by the provider: its stable id and
// undecoded RFC 5322 headers.
type RawMessage struct {
	ID      string
	Headers map[string]string
	Snippet string
}
