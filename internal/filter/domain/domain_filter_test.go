package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSenderDomain(t *testing.T) {
	assert.Equal(t, "jobs-noreply.com", SenderDomain("alerts@Jobs-NoReply.com"))
	assert.Equal(t, "acme.io", SenderDomain("<hr@acme.io>"))
	assert.Equal(t, "", SenderDomain("no-at-sign"))
	assert.Equal(t, "", SenderDomain("trailing@"))
}

func TestPolicy_Evaluate(t *testing.T) {
	p := NewPolicy([]*DomainFilter{
		{Domain: "Blocked.com", IsAllowed: false},
		{Domain: "allowed.com", IsAllowed: true},
	})

	assert.Equal(t, Blocked, p.Evaluate("blocked.com"))
	assert.Equal(t, Blocked, p.Evaluate("BLOCKED.COM"))
	assert.Equal(t, Allowed, p.Evaluate("allowed.com"))
	assert.Equal(t, Allowed, p.Evaluate("other.com"))
	// exact match only
	assert.Equal(t, Allowed, p.Evaluate("sub.blocked.com"))

	var nilPolicy *Policy
	assert.Equal(t, Allowed, nilPolicy.Evaluate("blocked.com"))
}
