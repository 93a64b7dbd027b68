package gmail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	emaildomain "jobtrail-backend/internal/email/domain"
	"jobtrail-backend/pkg/apperror"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	user = "me"
	// Gmail API maximum for messages.list
	maxPageSize = 500
	// concurrent messages.get calls per page
	fetchConcurrency = 10
)

var metadataHeaders = []string{"From", "Subject", "Date"}

// Service reads mailbox metadata through the Gmail API on behalf of
// accounts whose tokens live in a TokenStore.
type Service struct {
	oauthConfig *oauth2.Config
	tokens      TokenStore
	logger      *zap.Logger
	opts        []option.ClientOption
}

type notifyTokenSource struct {
	src       oauth2.TokenSource
	current   *oauth2.Token
	accountID string
	tokens    TokenStore
	logger    *zap.Logger
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.tokens.Save(s.accountID, t); err != nil {
			s.logger.Warn("failed to persist refreshed token", zap.String("account", s.accountID), zap.Error(err))
		}
	}
	return t, nil
}

// NewService builds a Gmail provider. Extra client options are appended to
// every API client (tests point the endpoint at a fake server).
func NewService(clientID, clientSecret string, tokens TokenStore, logger *zap.Logger, opts ...option.ClientOption) *Service {
	return &Service{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{gmail.GmailReadonlyScope},
		},
		tokens: tokens,
		logger: logger.Named("gmail"),
		opts:   opts,
	}
}

// AuthCodeURL is the consent page an operator opens to authorize an account.
func (s *Service) AuthCodeURL(state string) string {
	return s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it.
func (s *Service) Exchange(ctx context.Context, accountID, code string) error {
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}
	return s.tokens.Save(accountID, token)
}

func (s *Service) gmailService(ctx context.Context, accountID string) (*gmail.Service, error) {
	token, err := s.tokens.Load(accountID)
	if err != nil {
		return nil, &apperror.ProviderError{Op: "load token", Err: err}
	}

	wrapped := &notifyTokenSource{
		src:       s.oauthConfig.TokenSource(ctx, token),
		current:   token,
		accountID: accountID,
		tokens:    s.tokens,
		logger:    s.logger,
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, wrapped))}, s.opts...)
	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, &apperror.ProviderError{Op: "create gmail client", Err: err}
	}
	return srv, nil
}

// ListMessages returns one page of inbox messages received after q.Since,
// newest first, with only the headers the sync loop needs.
func (s *Service) ListMessages(ctx context.Context, accountID string, q emaildomain.ListQuery) (*emaildomain.MessagePage, error) {
	srv, err := s.gmailService(ctx, accountID)
	if err != nil {
		return nil, err
	}

	pageSize := q.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	call := srv.Users.Messages.List(user).
		Context(ctx).
		LabelIds("INBOX").
		MaxResults(int64(pageSize))
	if !q.Since.IsZero() {
		call = call.Q(fmt.Sprintf("after:%d", q.Since.Unix()))
	}
	if q.PageToken != "" {
		call = call.PageToken(q.PageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, classify("list messages", err)
	}

	// slots keep the list order; parallel gets finish in any order
	slots := make([]*emaildomain.RawMessage, len(resp.Messages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, ref := range resp.Messages {
		g.Go(func() error {
			msg, err := srv.Users.Messages.Get(user, ref.Id).
				Context(gctx).
				Format("metadata").
				MetadataHeaders(metadataHeaders...).
				Do()
			if err != nil {
				if isNotFound(err) {
					// deleted between list and get
					return nil
				}
				return classify("get message", err)
			}
			slots[i] = toRawMessage(msg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	page := &emaildomain.MessagePage{
		Messages:      make([]emaildomain.RawMessage, 0, len(slots)),
		NextPageToken: resp.NextPageToken,
	}
	for _, raw := range slots {
		if raw != nil {
			page.Messages = append(page.Messages, *raw)
		}
	}
	return page, nil
}

func toRawMessage(msg *gmail.Message) *emaildomain.RawMessage {
	headers := make(map[string]string, len(metadataHeaders))
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			headers[h.Name] = h.Value
		}
	}
	if _, ok := headers["Date"]; !ok && msg.InternalDate > 0 {
		headers["Date"] = time.UnixMilli(msg.InternalDate).UTC().Format(time.RFC1123Z)
	}
	return &emaildomain.RawMessage{
		ID:      msg.Id,
		Headers: headers,
		Snippet: msg.Snippet,
	}
}

func isRateLimited(apiErr *googleapi.Error) bool {
	if apiErr.Code != http.StatusForbidden {
		return false
	}
	for _, item := range apiErr.Errors {
		if rateLimitReasons[item.Reason] {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// rateLimitReasons are the 403 reasons Gmail uses for quota throttling.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

// classify marks rate limiting, server errors and network timeouts as
// transient.
func classify(op string, err error) error {
	transient := false

	var apiErr *googleapi.Error
	var netErr net.Error
	switch {
	case errors.As(err, &apiErr):
		transient = apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 || isRateLimited(apiErr)
	case errors.Is(err, context.Canceled):
	case errors.Is(err, context.DeadlineExceeded):
	case errors.As(err, &netErr):
		transient = netErr.Timeout()
	}

	return &apperror.ProviderError{Op: op, Transient: transient, Err: err}
}
