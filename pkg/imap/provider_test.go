package imap

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	emaildomain "jobtrail-backend/internal/email/domain"
	"jobtrail-backend/pkg/apperror"
	"jobtrail-backend/pkg/config"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// startServer runs the in-memory go-imap backend, which has one user
// (username/password) with a single message in INBOX.
func startServer(t *testing.T) *config.Config {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := server.New(memory.New())
	s.AllowInsecureAuth = true
	go func() { _ = s.Serve(l) }()
	t.Cleanup(func() { _ = s.Close() })

	host, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Mail.IMAPHost = host
	cfg.Mail.IMAPPort = portNum
	cfg.Mail.IMAPPassword = "password"
	cfg.Mail.IMAPTLS = false
	cfg.Mail.IMAPMailbox = "INBOX"
	return cfg
}

func TestListMessages(t *testing.T) {
	p := NewProvider(startServer(t), zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	page, err := p.ListMessages(ctx, "username", emaildomain.ListQuery{
		Since:    time.Now().AddDate(0, 0, -7),
		PageSize: 10,
	})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Empty(t, page.NextPageToken)

	msg := page.Messages[0]
	assert.Contains(t, msg.ID, "imap:")
	assert.NotEmpty(t, msg.Headers["Subject"])
	assert.NotEmpty(t, msg.Headers["From"])
}

func TestListMessages_BadLogin(t *testing.T) {
	cfg := startServer(t)
	cfg.Mail.IMAPPassword = "wrong"
	p := NewProvider(cfg, zaptest.NewLogger(t))

	_, err := p.ListMessages(context.Background(), "username", emaildomain.ListQuery{PageSize: 10})
	assert.ErrorIs(t, err, apperror.ErrProvider)
	assert.False(t, apperror.IsTransient(err))
}

func TestListMessages_ConnectionRefusedIsTransient(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, _ := net.SplitHostPort(l.Addr().String())
	require.NoError(t, l.Close())

	cfg := config.Default()
	cfg.Mail.IMAPHost = "127.0.0.1"
	cfg.Mail.IMAPPort, _ = strconv.Atoi(port)
	cfg.Mail.IMAPTLS = false

	_, err = NewProvider(cfg, zaptest.NewLogger(t)).ListMessages(context.Background(), "username", emaildomain.ListQuery{})
	assert.ErrorIs(t, err, apperror.ErrProvider)
	assert.True(t, apperror.IsTransient(err))
}

func TestPageUIDs(t *testing.T) {
	uids := []uint32{7, 3, 9, 1, 5}

	page, next, err := pageUIDs(append([]uint32(nil), uids...), "", 2)
	require.NoError(t, err)
	assert.Equal(t, []uint32{7, 9}, page)
	assert.Equal(t, "7", next)

	page, next, err = pageUIDs(append([]uint32(nil), uids...), next, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint32{3, 5}, page)
	assert.Equal(t, "3", next)

	page, next, err = pageUIDs(append([]uint32(nil), uids...), next, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, page)
	assert.Empty(t, next)

	_, _, err = pageUIDs(uids, "abc", 2)
	assert.Error(t, err)
}
