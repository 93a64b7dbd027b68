// Package imap reads mailbox headers over IMAP for servers without a
// vendor API.
package imap

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"time"

	emaildomain "jobtrail-backend/internal/email/domain"
	"jobtrail-backend/pkg/apperror"
	"jobtrail-backend/pkg/config"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/textproto"
	"go.uber.org/zap"
)

const dialTimeout = 30 * time.Second

// Provider logs in as the account id with the configured password, so
// one deployment serves one mailbox host.
type Provider struct {
	addr     string
	password string
	useTLS   bool
	mailbox  string
	logger   *zap.Logger
}

func NewProvider(cfg *config.Config, logger *zap.Logger) *Provider {
	mailbox := cfg.Mail.IMAPMailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &Provider{
		addr:     net.JoinHostPort(cfg.Mail.IMAPHost, strconv.Itoa(cfg.Mail.IMAPPort)),
		password: cfg.Mail.IMAPPassword,
		useTLS:   cfg.Mail.IMAPTLS,
		mailbox:  mailbox,
		logger:   logger.Named("imap"),
	}
}

func (p *Provider) connect(ctx context.Context, username string) (*client.Client, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}

	var (
		c   *client.Client
		err error
	)
	if p.useTLS {
		c, err = client.DialWithDialerTLS(dialer, p.addr, &tls.Config{ServerName: host(p.addr)})
	} else {
		c, err = client.DialWithDialer(dialer, p.addr)
	}
	if err != nil {
		return nil, classify("dial", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.Timeout = time.Until(deadline)
	}

	if !p.useTLS {
		if ok, _ := c.SupportStartTLS(); ok {
			if err := c.StartTLS(&tls.Config{ServerName: host(p.addr)}); err != nil {
				_ = c.Logout()
				return nil, classify("starttls", err)
			}
		}
	}

	if err := c.Login(username, p.password); err != nil {
		_ = c.Logout()
		return nil, &apperror.ProviderError{Op: "login", Err: err}
	}
	return c, nil
}

// ListMessages returns up to q.PageSize messages received since q.Since,
// newest first. The page token is the lowest UID already returned.
func (p *Provider) ListMessages(ctx context.Context, accountID string, q emaildomain.ListQuery) (*emaildomain.MessagePage, error) {
	c, err := p.connect(ctx, accountID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Logout() }()

	status, err := c.Select(p.mailbox, true)
	if err != nil {
		return nil, classify("select", err)
	}

	criteria := imap.NewSearchCriteria()
	if !q.Since.IsZero() {
		criteria.Since = q.Since
	}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, classify("search", err)
	}

	uids, next, err := pageUIDs(uids, q.PageToken, q.PageSize)
	if err != nil {
		return nil, &apperror.ProviderError{Op: "page token", Err: err}
	}
	page := &emaildomain.MessagePage{NextPageToken: next}
	if len(uids) == 0 {
		return page, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier},
		Peek:         true,
	}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	byUID := make(map[uint32]emaildomain.RawMessage, len(uids))
	for msg := range messages {
		raw, err := toRawMessage(status.UidValidity, msg, section)
		if err != nil {
			p.logger.Warn("skipping unreadable message", zap.Uint32("uid", msg.Uid), zap.Error(err))
			continue
		}
		byUID[msg.Uid] = raw
	}
	if err := <-done; err != nil {
		return nil, classify("fetch", err)
	}

	// newest first
	for i := len(uids) - 1; i >= 0; i-- {
		if raw, ok := byUID[uids[i]]; ok {
			page.Messages = append(page.Messages, raw)
		}
	}
	return page, nil
}

// pageUIDs picks the newest pageSize UIDs below the token.
func pageUIDs(all []uint32, token string, pageSize int) ([]uint32, string, error) {
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	if token != "" {
		below, err := strconv.ParseUint(token, 10, 32)
		if err != nil {
			return nil, "", fmt.Errorf("invalid page token %q", token)
		}
		cut := sort.Search(len(all), func(i int) bool { return all[i] >= uint32(below) })
		all = all[:cut]
	}

	if pageSize <= 0 || pageSize >= len(all) {
		return all, "", nil
	}
	picked := all[len(all)-pageSize:]
	return picked, strconv.FormatUint(uint64(picked[0]), 10), nil
}

// toRawMessage reads the header section of msg. IDs combine UIDVALIDITY
// and UID, which together are stable for the mailbox.
func toRawMessage(uidValidity uint32, msg *imap.Message, section *imap.BodySectionName) (emaildomain.RawMessage, error) {
	body := msg.GetBody(section)
	if body == nil {
		return emaildomain.RawMessage{}, errors.New("server returned no header section")
	}

	header, err := textproto.ReadHeader(bufio.NewReader(body))
	if err != nil && !errors.Is(err, io.EOF) {
		return emaildomain.RawMessage{}, fmt.Errorf("failed to read header: %w", err)
	}

	headers := make(map[string]string)
	fields := header.Fields()
	for fields.Next() {
		if _, seen := headers[fields.Key()]; !seen {
			headers[fields.Key()] = fields.Value()
		}
	}
	if _, ok := headers["Date"]; !ok && !msg.InternalDate.IsZero() {
		headers["Date"] = msg.InternalDate.UTC().Format(time.RFC1123Z)
	}

	return emaildomain.RawMessage{
		ID:      fmt.Sprintf("imap:%d:%d", uidValidity, msg.Uid),
		Headers: headers,
	}, nil
}

func host(addr string) string {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return h
}

// classify treats network timeouts and dropped connections as transient.
func classify(op string, err error) error {
	transient := false
	var netErr net.Error
	switch {
	case errors.As(err, &netErr):
		transient = netErr.Timeout()
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		transient = true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		transient = true
	}
	return &apperror.ProviderError{Op: "imap " + op, Transient: transient, Err: err}
}
