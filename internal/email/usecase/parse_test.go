package usecase

import (
	"testing"
	"time"

	emaildomain "jobtrail-backend/internal/email/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRawMessage(t *testing.T) {
	email, err := ParseRawMessage(emaildomain.RawMessage{
		ID: "m-1",
		Headers: map[string]string{
			"From":    `"Acme Careers" <Careers@Acme.com>`,
			"Subject": "=?UTF-8?Q?Entrevista_con_Acme_=E2=80=93_pr=C3=B3ximos_pasos?=",
			"Date":    "Mon, 02 Jun 2025 10:15:00 +0200",
		},
		Snippet: "Hello",
	})
	require.NoError(t, err)

	assert.Equal(t, "m-1", email.ProviderMessageID)
	assert.Equal(t, "Acme Careers", email.Sender)
	assert.Equal(t, "careers@acme.com", email.SenderEmail)
	assert.Equal(t, "Entrevista con Acme – próximos pasos", email.Subject)
	assert.Equal(t, time.Date(2025, 6, 2, 8, 15, 0, 0, time.UTC), email.DateReceived)
	assert.Equal(t, emaildomain.StatusUnread, email.Status)
	assert.Equal(t, "Hello", email.Snippet)
}

func TestParseRawMessage_AddressOnlySender(t *testing.T) {
	email, err := ParseRawMessage(emaildomain.RawMessage{
		ID: "m-2",
		Headers: map[string]string{
			"From": "hr@initech.com",
			"Date": "Tue, 03 Jun 2025 09:00:00 +0000",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "hr@initech.com", email.Sender)
	assert.Equal(t, "", email.Subject)
}

func TestParseRawMessage_Failures(t *testing.T) {
	cases := map[string]emaildomain.RawMessage{
		"no id":      {Headers: map[string]string{"From": "a@b.com", "Date": "Tue, 03 Jun 2025 09:00:00 +0000"}},
		"no from":    {ID: "x", Headers: map[string]string{"Date": "Tue, 03 Jun 2025 09:00:00 +0000"}},
		"bad from":   {ID: "x", Headers: map[string]string{"From": "<<<", "Date": "Tue, 03 Jun 2025 09:00:00 +0000"}},
		"no date":    {ID: "x", Headers: map[string]string{"From": "a@b.com"}},
		"bad date":   {ID: "x", Headers: map[string]string{"From": "a@b.com", "Date": "yesterday"}},
		"no headers": {ID: "x"},
	}
	for name, raw := range cases {
		_, err := ParseRawMessage(raw)
		assert.Error(t, err, name)
	}
}
