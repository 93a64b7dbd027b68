package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	api "jobtrail-backend/cmd/api"
	authUsecase "jobtrail-backend/internal/auth/usecase"
	"jobtrail-backend/internal/di"
	emaildomain "jobtrail-backend/internal/email/domain"
	"jobtrail-backend/internal/testutil"
	"jobtrail-backend/pkg/apperror"
	"jobtrail-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubProvider struct {
	messages []emaildomain.RawMessage
	err      error
}

func (p *stubProvider) ListMessages(ctx context.Context, accountID string, q emaildomain.ListQuery) (*emaildomain.MessagePage, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &emaildomain.MessagePage{Messages: p.messages}, nil
}

type testServer struct {
	t        *testing.T
	engine   *gin.Engine
	token    string
	provider *stubProvider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Sync.RetryBaseDelay = time.Millisecond
	provider := &stubProvider{}

	c := dig.New()
	require.NoError(t, c.Provide(func() *config.Config { return cfg }))
	require.NoError(t, c.Provide(func() *zap.Logger { return testutil.NewLogger(t) }))
	db := testutil.NewTestDB(t)
	require.NoError(t, c.Provide(func() *gorm.DB { return db }))
	require.NoError(t, c.Provide(func() emaildomain.MailProvider { return provider }))
	require.NoError(t, di.Register(c))

	s := &testServer{t: t, provider: provider}
	require.NoError(t, c.Invoke(func(h *api.Handler, auth authUsecase.AuthUsecase) error {
		s.engine = h.Engine()
		var err error
		s.token, err = auth.IssueToken("me@example.com", time.Hour)
		return err
	}))
	return s
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func recentMessage(id, from, subject string) emaildomain.RawMessage {
	return emaildomain.RawMessage{
		ID: id,
		Headers: map[string]string{
			"From":    from,
			"Subject": subject,
			"Date":    time.Now().Add(-time.Hour).Format(time.RFC1123Z),
		},
	}
}

func TestHealthNeedsNoAuth(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRejectsMissingToken(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/emails", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDomainFilterEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/domains", map[string]any{"domain": "Noreply.Jobs.com", "is_allowed": false})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]any](t, w)
	assert.Equal(t, "noreply.jobs.com", created["domain"])

	w = s.do(http.MethodPost, "/api/domains", map[string]any{"domain": "noreply.jobs.com", "is_allowed": true})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.KindDuplicateFilter, decode[map[string]any](t, w)["kind"])

	w = s.do(http.MethodPost, "/api/domains", map[string]any{"domain": "not a domain"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPatch, "/api/domains/"+created["id"].(string)+"/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode[map[string]any](t, w)["is_allowed"])

	w = s.do(http.MethodDelete, "/api/domains/"+created["id"].(string), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(http.MethodDelete, "/api/domains/"+created["id"].(string), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncAndEmailEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.provider.messages = []emaildomain.RawMessage{
		recentMessage("m1", "Acme Careers <careers@acme.com>", "Thanks for applying to Acme"),
		recentMessage("m2", "Shop <deals@shop.com>", "50% off everything, unsubscribe anytime"),
	}

	w := s.do(http.MethodPost, "/api/emails/sync", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[emaildomain.SyncReport](t, w)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 2, report.New)
	assert.Equal(t, 1, report.ClassifiedJobRelated)

	w = s.do(http.MethodPost, "/api/emails/sync", map[string]any{"days_back": 3, "max_results": 10})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[emaildomain.SyncReport](t, w).SkippedDuplicate)

	w = s.do(http.MethodPost, "/api/emails/sync", map[string]any{"days_back": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/emails/sync/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[emaildomain.SyncStatus](t, w)
	assert.False(t, status.InProgress)
	require.NotNil(t, status.LastReport)
	assert.Equal(t, 2, status.LastReport.SkippedDuplicate)
	assert.Positive(t, status.StoredEmails)

	w = s.do(http.MethodGet, "/api/emails?job_related=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Emails []map[string]any `json:"emails"`
		Total  int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "careers@acme.com", list.Emails[0]["sender_email"])
	emailID := list.Emails[0]["id"].(string)

	w = s.do(http.MethodGet, "/api/emails?job_related=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPatch, "/api/emails/"+emailID+"/status", map[string]any{"status": "READ"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "READ", decode[map[string]any](t, w)["status"])

	w = s.do(http.MethodPatch, "/api/emails/"+emailID+"/status", map[string]any{"status": "SHREDDED"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/emails/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncProviderFailureReturnsPartialReport(t *testing.T) {
	s := newTestServer(t)
	s.provider.err = &apperror.ProviderError{Op: "list messages", Err: errors.New("token revoked")}

	w := s.do(http.MethodPost, "/api/emails/sync", nil)
	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	assert.Equal(t, apperror.KindProvider, body["kind"])
	report, ok := body["report"].(map[string]any)
	require.True(t, ok, "partial report attached")
	assert.Equal(t, true, report["aborted"])
}

func TestApplicationEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/applications", map[string]any{
		"company_name": "Acme",
		"position":     "Backend Engineer",
		"applied_date": "2025-06-01",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	app := decode[map[string]any](t, w)
	assert.Equal(t, "APPLIED", app["status"])
	id := app["id"].(string)

	w = s.do(http.MethodPost, "/api/applications", map[string]any{"company_name": "Acme", "applied_date": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPatch, "/api/applications/"+id+"/status", map[string]any{"status": "GHOSTED"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPatch, "/api/applications/"+id+"/status", map[string]any{"status": "INTERVIEW"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "INTERVIEW", decode[map[string]any](t, w)["status"])

	w = s.do(http.MethodGet, "/api/applications/"+id+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		History []map[string]any `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.History, 1)
	assert.Equal(t, "APPLIED", history.History[0]["from_status"])
	assert.Equal(t, "INTERVIEW", history.History[0]["to_status"])

	w = s.do(http.MethodGet, "/api/applications/kanban", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var board struct {
		Columns []struct {
			Status       string           `json:"status"`
			Applications []map[string]any `json:"applications"`
		} `json:"columns"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	require.Len(t, board.Columns, 6)
	assert.Equal(t, "INTERVIEW", board.Columns[1].Status)
	assert.Len(t, board.Columns[1].Applications, 1)

	w = s.do(http.MethodGet, "/api/applications?search=acm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["total"])

	w = s.do(http.MethodGet, "/api/applications/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodDelete, "/api/applications/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestLinkEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.provider.messages = []emaildomain.RawMessage{
		recentMessage("m1", "Acme Careers <careers@acme.com>", "Interview invitation for your application"),
	}
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/emails/sync", nil).Code)

	var list struct {
		Emails []map[string]any `json:"emails"`
	}
	require.NoError(t, json.Unmarshal(s.do(http.MethodGet, "/api/emails", nil).Body.Bytes(), &list))
	require.Len(t, list.Emails, 1)
	emailID := list.Emails[0]["id"].(string)

	first := decode[map[string]any](t, s.do(http.MethodPost, "/api/applications", map[string]any{"company_name": "Acme", "position": "SRE"}))
	second := decode[map[string]any](t, s.do(http.MethodPost, "/api/applications", map[string]any{"company_name": "Globex", "position": "SRE"}))

	w := s.do(http.MethodPost, "/api/emails/"+emailID+"/link", map[string]any{"application_id": first["id"]})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/emails/"+emailID+"/link", map[string]any{"application_id": second["id"]})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/emails/"+emailID, nil)
	assert.Equal(t, true, decode[map[string]any](t, w)["has_application"])

	w = s.do(http.MethodDelete, "/api/emails/"+emailID+"/link", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodPost, "/api/emails/"+emailID+"/application", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]any](t, w)
	assert.Equal(t, "Acme", created["company_name"])
	assert.Equal(t, emailID, created["source_email_id"])
}
