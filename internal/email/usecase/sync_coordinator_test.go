package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	appdomain "jobtrail-backend/internal/application/domain"
	emaildomain "jobtrail-backend/internal/email/domain"
	emailrepo "jobtrail-backend/internal/email/repository"
	filterrepo "jobtrail-backend/internal/filter/repository"
	filterusecase "jobtrail-backend/internal/filter/usecase"
	"jobtrail-backend/internal/testutil"
	"jobtrail-backend/pkg/apperror"
	"jobtrail-backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const account = "acct-1"

// fakeProvider serves a fixed message list in pages. errs[i], when set, is
// returned by the i-th call instead of a page.
type fakeProvider struct {
	mu       sync.Mutex
	messages []emaildomain.RawMessage
	errs     []error
	calls    int

	entered chan struct{}
	block   chan struct{}
}

func (p *fakeProvider) ListMessages(ctx context.Context, accountID string, q emaildomain.ListQuery) (*emaildomain.MessagePage, error) {
	p.mu.Lock()
	call := p.calls
	p.calls++
	var err error
	if call < len(p.errs) {
		err = p.errs[call]
	}
	entered, block := p.entered, p.block
	p.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	offset := 0
	if q.PageToken != "" {
		offset, _ = strconv.Atoi(q.PageToken)
	}
	end := min(offset+q.PageSize, len(p.messages))
	page := &emaildomain.MessagePage{Messages: p.messages[offset:end]}
	if end < len(p.messages) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (p *fakeProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeLinker struct {
	mu    sync.Mutex
	seen  []string
	reply appdomain.LinkResult
	err   error
}

func (l *fakeLinker) TryLink(ctx context.Context, email *emaildomain.Email) (appdomain.LinkResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = append(l.seen, email.ProviderMessageID)
	return l.reply, l.err
}

func rawMessage(id, from, subject string) emaildomain.RawMessage {
	return emaildomain.RawMessage{
		ID: id,
		Headers: map[string]string{
			"From":    from,
			"Subject": subject,
			"Date":    "Mon, 02 Jun 2025 10:00:00 +0000",
		},
	}
}

func tenMessages() []emaildomain.RawMessage {
	msgs := make([]emaildomain.RawMessage, 10)
	for i := range msgs {
		msgs[i] = rawMessage(fmt.Sprintf("msg-%02d", i), fmt.Sprintf("Person %d <p%d@example.com>", i, i), "Hello "+strconv.Itoa(i))
	}
	return msgs
}

type syncHarness struct {
	sync     *SyncCoordinator
	provider *fakeProvider
	linker   *fakeLinker
	emails   *emailrepo.EmailRepository
	filters  *filterusecase.Engine
	now      time.Time
}

func newSyncHarness(t *testing.T, messages []emaildomain.RawMessage) *syncHarness {
	t.Helper()
	db := testutil.NewTestDB(t)
	log := testutil.NewLogger(t)

	cfg := config.Default()
	cfg.Sync.PageSize = 4
	cfg.Sync.RetryBaseDelay = time.Millisecond
	cfg.Sync.Timeout = 5 * time.Second

	h := &syncHarness{
		provider: &fakeProvider{messages: messages},
		linker:   &fakeLinker{reply: appdomain.Unlinked(appdomain.ReasonNoMatch)},
		emails:   emailrepo.NewEmailRepository(db),
		filters:  filterusecase.NewEngine(filterrepo.NewDomainFilterRepository(db), log),
		now:      time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC),
	}
	h.sync = NewSyncCoordinator(
		h.provider,
		h.emails,
		emailrepo.NewSyncCursorRepository(db),
		h.filters,
		NewClassifier(cfg.Classifier),
		h.linker,
		cfg,
		log,
	)
	h.sync.now = func() time.Time { return h.now }
	return h
}

func (h *syncHarness) count(t *testing.T) int64 {
	n, err := h.emails.Count(context.Background(), account)
	require.NoError(t, err)
	return n
}

func TestFetchBatch_DedupAcrossRuns(t *testing.T) {
	h := newSyncHarness(t, tenMessages())
	ctx := context.Background()

	first, err := h.sync.FetchBatch(ctx, account, 7, 50)
	require.NoError(t, err)
	assert.Equal(t, 10, first.Fetched)
	assert.Equal(t, 10, first.New)
	assert.Equal(t, 0, first.SkippedDuplicate)
	assert.False(t, first.Aborted)

	second, err := h.sync.FetchBatch(ctx, account, 7, 50)
	require.NoError(t, err)
	assert.Equal(t, 10, second.Fetched)
	assert.Equal(t, 0, second.New)
	assert.Equal(t, 10, second.SkippedDuplicate)

	assert.EqualValues(t, 10, h.count(t))

	status, err := h.sync.Status(ctx, account)
	require.NoError(t, err)
	assert.EqualValues(t, 10, status.StoredEmails)
}

func TestFetchBatch_MaxResultsCapsFetch(t *testing.T) {
	h := newSyncHarness(t, tenMessages())

	report, err := h.sync.FetchBatch(context.Background(), account, 7, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, report.Fetched)
	assert.Equal(t, 6, report.New)
	assert.EqualValues(t, 6, h.count(t))
}

func TestFetchBatch_BlockedDomainScenario(t *testing.T) {
	h := newSyncHarness(t, []emaildomain.RawMessage{
		rawMessage("alert-1", "Job Alerts <alerts@jobs-noreply.com>", "New job matches"),
	})
	ctx := context.Background()
	_, err := h.filters.AddFilter(ctx, account, "jobs-noreply.com", false)
	require.NoError(t, err)

	report, err := h.sync.FetchBatch(ctx, account, 7, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, report.New)
	assert.Equal(t, 0, report.ClassifiedJobRelated)

	emails, err := h.emails.List(ctx, account, emaildomain.EmailFilter{})
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, emaildomain.NotJobRelated, emails[0].IsJobRelated)
	assert.Equal(t, emaildomain.StatusUnread, emails[0].Status)
}

func TestFetchBatch_PolicyOverridesStrongSignals(t *testing.T) {
	h := newSyncHarness(t, []emaildomain.RawMessage{
		rawMessage("ats-1", "Acme via Greenhouse <no-reply@greenhouse.io>", "Thank you for applying - interview next steps"),
		rawMessage("ats-2", "Acme via Lever <no-reply@hire.lever.co>", "Thank you for applying - interview next steps"),
	})
	ctx := context.Background()
	_, err := h.filters.AddFilter(ctx, account, "greenhouse.io", false)
	require.NoError(t, err)

	report, err := h.sync.FetchBatch(ctx, account, 7, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ClassifiedJobRelated)
	assert.Equal(t, []string{"ats-2"}, h.linker.seen)

	emails, err := h.emails.List(ctx, account, emaildomain.EmailFilter{})
	require.NoError(t, err)
	byID := map[string]*emaildomain.Email{}
	for _, e := range emails {
		byID[e.ProviderMessageID] = e
	}
	assert.Equal(t, emaildomain.NotJobRelated, byID["ats-1"].IsJobRelated)
	assert.Equal(t, emaildomain.JobRelated, byID["ats-2"].IsJobRelated)
}

func TestFetchBatch_CountsLinks(t *testing.T) {
	h := newSyncHarness(t, []emaildomain.RawMessage{
		rawMessage("job-1", "Acme Careers <careers@acme.com>", "Your application to Acme"),
		rawMessage("misc-1", "Friend <friend@example.com>", "Lunch?"),
	})
	h.linker.reply = appdomain.Linked("app-1")

	report, err := h.sync.FetchBatch(context.Background(), account, 7, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, report.New)
	assert.Equal(t, 1, report.ClassifiedJobRelated)
	assert.Equal(t, 1, report.Linked)
}

func TestFetchBatch_LinkErrorsDoNotAbort(t *testing.T) {
	h := newSyncHarness(t, []emaildomain.RawMessage{
		rawMessage("job-1", "Acme Careers <careers@acme.com>", "Your application to Acme"),
	})
	h.linker.err = errors.New("boom")

	report, err := h.sync.FetchBatch(context.Background(), account, 7, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, report.New)
	assert.Equal(t, 0, report.Linked)
}

func TestFetchBatch_ParseFailuresAreSkipped(t *testing.T) {
	msgs := tenMessages()[:3]
	msgs = append(msgs, emaildomain.RawMessage{ID: "broken", Headers: map[string]string{"Subject": "no sender"}})

	h := newSyncHarness(t, msgs)
	report, err := h.sync.FetchBatch(context.Background(), account, 7, 50)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Fetched)
	assert.Equal(t, 3, report.New)
	assert.Equal(t, 1, report.ParseFailed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "broken", report.Failures[0].MessageID)
}

func TestFetchBatch_DuplicateWithinPage(t *testing.T) {
	msg := rawMessage("same", "A <a@example.com>", "hi")
	h := newSyncHarness(t, []emaildomain.RawMessage{msg, msg})

	report, err := h.sync.FetchBatch(context.Background(), account, 7, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, report.New)
	assert.Equal(t, 1, report.SkippedDuplicate)
}

func TestFetchBatch_Validation(t *testing.T) {
	h := newSyncHarness(t, nil)
	ctx := context.Background()

	for _, args := range [][2]int{{0, 50}, {366, 50}, {7, 0}, {7, 501}} {
		_, err := h.sync.FetchBatch(ctx, account, args[0], args[1])
		assert.ErrorIs(t, err, apperror.ErrValidation, "%v", args)
	}
	assert.Equal(t, 0, h.provider.Calls())
}

func TestFetchBatch_SingleFlightPerAccount(t *testing.T) {
	h := newSyncHarness(t, tenMessages())
	h.provider.entered = make(chan struct{}, 1)
	h.provider.block = make(chan struct{})
	ctx := context.Background()

	type result struct {
		report *emaildomain.SyncReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		r, err := h.sync.FetchBatch(ctx, account, 7, 50)
		done <- result{r, err}
	}()

	<-h.provider.entered

	_, err := h.sync.FetchBatch(ctx, account, 7, 50)
	assert.ErrorIs(t, err, apperror.ErrSyncInProgress)

	status, err := h.sync.Status(ctx, account)
	require.NoError(t, err)
	assert.True(t, status.InProgress)

	close(h.provider.block)
	first := <-done
	require.NoError(t, first.err)
	assert.Equal(t, 10, first.report.New)
	assert.EqualValues(t, 10, h.count(t))

	status, err = h.sync.Status(ctx, account)
	require.NoError(t, err)
	assert.False(t, status.InProgress)

	// the lock is free again
	again, err := h.sync.FetchBatch(ctx, account, 7, 50)
	require.NoError(t, err)
	assert.Equal(t, 10, again.SkippedDuplicate)
}

func TestFetchBatch_RetriesTransientErrors(t *testing.T) {
	h := newSyncHarness(t, tenMessages()[:2])
	transient := &apperror.ProviderError{Op: "list", Transient: true, Err: errors.New("429")}
	h.provider.errs = []error{transient, transient}

	report, err := h.sync.FetchBatch(context.Background(), account, 7, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, report.New)
	assert.Equal(t, 3, h.provider.Calls())
}

func TestFetchBatch_ExhaustedRetriesKeepPartialResults(t *testing.T) {
	h := newSyncHarness(t, tenMessages())
	transient := &apperror.ProviderError{Op: "list", Transient: true, Err: errors.New("503")}
	// first page succeeds, the second fails on every attempt
	h.provider.errs = []error{nil, transient, transient, transient}
	ctx := context.Background()

	report, err := h.sync.FetchBatch(ctx, account, 7, 50)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrProvider)
	require.NotNil(t, report)
	assert.True(t, report.Aborted)
	assert.Equal(t, 4, report.Fetched)
	assert.Equal(t, 4, report.New)
	assert.Equal(t, 4, h.provider.Calls())
	assert.EqualValues(t, 4, h.count(t))

	status, err := h.sync.Status(ctx, account)
	require.NoError(t, err)
	assert.False(t, status.InProgress)
	require.NotNil(t, status.LastSyncedAt)
	assert.True(t, h.now.Equal(*status.LastSyncedAt))
	require.NotNil(t, status.LastReport)
	assert.True(t, status.LastReport.Aborted)
	assert.Equal(t, 4, status.LastReport.New)
}

func TestFetchBatch_PermanentErrorNotRetried(t *testing.T) {
	h := newSyncHarness(t, tenMessages())
	h.provider.errs = []error{&apperror.ProviderError{Op: "list", Err: errors.New("401 unauthorized")}}

	_, err := h.sync.FetchBatch(context.Background(), account, 7, 50)
	assert.ErrorIs(t, err, apperror.ErrProvider)
	assert.False(t, apperror.IsTransient(err))
	assert.Equal(t, 1, h.provider.Calls())
}

func TestFetchBatch_IgnoresCallerCancellation(t *testing.T) {
	h := newSyncHarness(t, tenMessages())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.sync.FetchBatch(ctx, account, 7, 50)
	require.NoError(t, err)
	assert.Equal(t, 10, report.New)
}

func TestFetchBatch_TimeoutAbortsAndReleases(t *testing.T) {
	h := newSyncHarness(t, tenMessages())
	h.sync.cfg.Timeout = 50 * time.Millisecond
	h.provider.block = make(chan struct{})

	report, err := h.sync.FetchBatch(context.Background(), account, 7, 50)
	assert.ErrorIs(t, err, apperror.ErrProvider)
	require.NotNil(t, report)
	assert.True(t, report.Aborted)

	h.provider.mu.Lock()
	h.provider.block = nil
	h.provider.mu.Unlock()
	h.sync.cfg.Timeout = 5 * time.Second

	report, err = h.sync.FetchBatch(context.Background(), account, 7, 50)
	require.NoError(t, err)
	assert.Equal(t, 10, report.New)
}

// scriptedProvider returns pages keyed by the requested page token.
type scriptedProvider struct {
	mu     sync.Mutex
	pages  map[string]*emaildomain.MessagePage
	tokens []string
}

func (p *scriptedProvider) ListMessages(ctx context.Context, accountID string, q emaildomain.ListQuery) (*emaildomain.MessagePage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = append(p.tokens, q.PageToken)
	page, ok := p.pages[q.PageToken]
	if !ok {
		return nil, fmt.Errorf("unexpected page token %q", q.PageToken)
	}
	return page, nil
}

func TestFetchBatch_PagesPastEmptyPage(t *testing.T) {
	h := newSyncHarness(t, nil)
	provider := &scriptedProvider{pages: map[string]*emaildomain.MessagePage{
		"":   {Messages: []emaildomain.RawMessage{rawMessage("a", "A <a@example.com>", "One")}, NextPageToken: "p2"},
		"p2": {NextPageToken: "p3"},
		"p3": {Messages: []emaildomain.RawMessage{rawMessage("b", "B <b@example.com>", "Two")}},
	}}
	h.sync.provider = provider

	report, err := h.sync.FetchBatch(context.Background(), account, 7, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, report.New)
	assert.Equal(t, []string{"", "p2", "p3"}, provider.tokens)
}

func TestFetchBatch_StopsOnRepeatedPageToken(t *testing.T) {
	h := newSyncHarness(t, nil)
	provider := &scriptedProvider{pages: map[string]*emaildomain.MessagePage{
		"":   {Messages: []emaildomain.RawMessage{rawMessage("a", "A <a@example.com>", "One")}, NextPageToken: "p2"},
		"p2": {NextPageToken: "p2"},
	}}
	h.sync.provider = provider

	report, err := h.sync.FetchBatch(context.Background(), account, 7, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, report.New)
	assert.Equal(t, []string{"", "p2"}, provider.tokens)
}

func TestStatus_BeforeFirstSync(t *testing.T) {
	h := newSyncHarness(t, nil)
	status, err := h.sync.Status(context.Background(), account)
	require.NoError(t, err)
	assert.False(t, status.InProgress)
	assert.Nil(t, status.LastSyncedAt)
	assert.Nil(t, status.LastReport)
	assert.Zero(t, status.StoredEmails)
}
