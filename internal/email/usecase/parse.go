package usecase

import (
	"errors"
	"fmt"
	"strings"

	emaildomain "jobtrail-backend/internal/email/domain"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

var errMissingID = errors.New("message has no provider id")

// ParseRawMessage decodes the headers of a provider message into an Email.
// RFC 2047 encoded words in From and Subject are decoded.
func ParseRawMessage(raw emaildomain.RawMessage) (*emaildomain.Email, error) {
	if strings.TrimSpace(raw.ID) == "" {
		return nil, errMissingID
	}

	var h mail.Header
	for k, v := range raw.Headers {
		h.Set(k, v)
	}

	from, err := h.AddressList("From")
	if err != nil {
		return nil, fmt.Errorf("invalid From header: %w", err)
	}
	if len(from) == 0 || from[0].Address == "" {
		return nil, errors.New("missing From header")
	}

	subject, err := h.Subject()
	if err != nil {
		return nil, fmt.Errorf("invalid Subject header: %w", err)
	}

	date, err := h.Date()
	if err != nil {
		return nil, fmt.Errorf("invalid Date header: %w", err)
	}
	if date.IsZero() {
		return nil, errors.New("missing Date header")
	}

	sender := strings.TrimSpace(from[0].Name)
	if sender == "" {
		sender = from[0].Address
	}

	return &emaildomain.Email{
		ProviderMessageID: raw.ID,
		Sender:            sender,
		SenderEmail:       strings.ToLower(from[0].Address),
		Subject:           strings.TrimSpace(subject),
		Snippet:           raw.Snippet,
		DateReceived:      date.UTC(),
		Status:            emaildomain.StatusUnread,
	}, nil
}
