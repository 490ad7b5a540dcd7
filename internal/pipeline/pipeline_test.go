package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox2itsm/internal/classifier"
	"inbox2itsm/internal/metrics"
	"inbox2itsm/internal/model"
	"inbox2itsm/internal/runlog"
)

// fakeFetcher returns a fixed message snapshot
type fakeFetcher struct {
	messages []model.Message
	err      error
}

func (f *fakeFetcher) FetchUnread(ctx context.Context) ([]model.Message, error) {
	return f.messages, f.err
}

func (f *fakeFetcher) Close() error { return nil }

// fakeAPI is a classification API that records its calls
type fakeAPI struct {
	label string
	err   error
	calls int
}

func (a *fakeAPI) Classify(ctx context.Context, text string) (string, error) {
	a.calls++
	return a.label, a.err
}

// fakeFiler records filed messages and can fail selectively
type fakeFiler struct {
	filed  []model.Message
	intent []model.Intent
	failID string
	seq    int
}

func (f *fakeFiler) CreateTicket(ctx context.Context, msg model.Message, intent model.Intent) (model.Ticket, error) {
	if msg.ID == f.failID {
		return model.Ticket{}, fmt.Errorf("table API returned 500")
	}
	f.seq++
	f.filed = append(f.filed, msg)
	f.intent = append(f.intent, intent)
	prefix := "INC"
	if intent == model.IntentChange {
		prefix = "CHG"
	}
	return model.Ticket{
		Number: fmt.Sprintf("%s100%d", prefix, f.seq),
		SysID:  fmt.Sprintf("sys-%d", f.seq),
		Intent: intent,
	}, nil
}

// fakeNotifier records notifications and can fail
type fakeNotifier struct {
	notified []model.Ticket
	err      error
}

func (n *fakeNotifier) NotifyApproval(ctx context.Context, ticket model.Ticket, msg model.Message) error {
	if n.err != nil {
		return n.err
	}
	n.notified = append(n.notified, ticket)
	return nil
}

func (n *fakeNotifier) Close() error { return nil }

// memStore is an in-memory ProcessedStore
type memStore struct {
	ids map[string]struct{}
}

func newMemStore(ids ...string) *memStore {
	s := &memStore{ids: make(map[string]struct{})}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *memStore) Contains(id string) (bool, error) {
	_, ok := s.ids[id]
	return ok, nil
}

func (s *memStore) Add(id string) error {
	s.ids[id] = struct{}{}
	return nil
}

func (s *memStore) Close() error { return nil }

type fixture struct {
	fetcher  *fakeFetcher
	api      *fakeAPI
	filer    *fakeFiler
	notifier *fakeNotifier
	store    *memStore
	runner   *Runner
	logPath  string
}

func newFixture(t *testing.T, messages []model.Message, st *memStore) *fixture {
	t.Helper()

	logPath := filepath.Join(t.TempDir(), "runlog.txt")
	rl, err := runlog.Open(logPath)
	require.NoError(t, err)
	t.Cleanup(func() { rl.Close() })

	fx := &fixture{
		fetcher:  &fakeFetcher{messages: messages},
		api:      &fakeAPI{label: "incident"},
		filer:    &fakeFiler{},
		notifier: &fakeNotifier{},
		store:    st,
		logPath:  logPath,
	}
	fx.runner = New(fx.fetcher, classifier.New(fx.api), fx.filer, fx.notifier, fx.store, rl, metrics.New())
	return fx
}

func (fx *fixture) runlogText(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(fx.logPath)
	require.NoError(t, err)
	return string(data)
}

func TestIncidentScenario(t *testing.T) {
	messages := []model.Message{
		{ID: "m1", Subject: "Laptop Crashed", Body: "My laptop isn't working!", Sender: "user@example.com"},
	}
	fx := newFixture(t, messages, newMemStore())

	report, err := fx.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Filed)
	assert.Equal(t, 0, report.Notified)
	assert.Equal(t, 1, fx.api.calls, "ambiguous content should hit the classification API")
	require.Len(t, fx.filer.filed, 1)
	assert.Equal(t, model.IntentIncident, fx.filer.intent[0])
	assert.Empty(t, fx.notifier.notified, "incidents must not notify the approver")

	processed, err := fx.store.Contains("m1")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestChangeKeywordScenario(t *testing.T) {
	messages := []model.Message{
		{ID: "m2", Subject: "Software Install", Body: "Change: Install new software on server.", Sender: "user@example.com"},
	}
	fx := newFixture(t, messages, newMemStore())

	report, err := fx.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Filed)
	assert.Equal(t, 1, report.Notified)
	assert.Equal(t, 0, fx.api.calls, "keyword path must not spend API quota")
	require.Len(t, fx.filer.intent, 1)
	assert.Equal(t, model.IntentChange, fx.filer.intent[0])
	require.Len(t, fx.notifier.notified, 1)
	assert.Contains(t, fx.notifier.notified[0].Number, "CHG")

	processed, err := fx.store.Contains("m2")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestDedupAcrossRuns(t *testing.T) {
	messages := []model.Message{
		{ID: "m3", Subject: "Printer jam", Body: "Paper stuck again"},
	}
	fx := newFixture(t, messages, newMemStore())

	_, err := fx.runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, fx.filer.filed, 1)

	// Same message fetched again on the next run: filtered entirely
	// by the processed set, no second ticket.
	report, err := fx.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Filed)
	assert.Len(t, fx.filer.filed, 1)
}

func TestPreloadedStoreSkipsFilerAndClassifier(t *testing.T) {
	messages := []model.Message{
		{ID: "seen", Subject: "Old issue", Body: "already ticketed"},
	}
	fx := newFixture(t, messages, newMemStore("seen"))

	report, err := fx.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, fx.filer.filed)
	assert.Equal(t, 0, fx.api.calls)
}

func TestQuotaFallback(t *testing.T) {
	messages := []model.Message{
		{ID: "m4", Subject: "Please review", Body: "Not obviously anything"},
	}
	fx := newFixture(t, messages, newMemStore())
	fx.api.err = classifier.ErrQuotaExceeded

	report, err := fx.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Filed)
	require.Len(t, fx.filer.intent, 1)
	assert.Equal(t, model.IntentIncident, fx.filer.intent[0], "quota exhaustion falls back to incident")
	assert.Contains(t, fx.runlogText(t), "quota exhausted")
}

func TestFilerFailureIsolation(t *testing.T) {
	messages := []model.Message{
		{ID: "bad", Subject: "First", Body: "fails at the table API"},
		{ID: "good", Subject: "Second", Body: "should still be processed"},
	}
	fx := newFixture(t, messages, newMemStore())
	fx.filer.failID = "bad"

	report, err := fx.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Filed)

	processed, err := fx.store.Contains("bad")
	require.NoError(t, err)
	assert.False(t, processed, "a failed filing must stay eligible for the next run")

	processed, err = fx.store.Contains("good")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestNotifyFailureStillRecords(t *testing.T) {
	messages := []model.Message{
		{ID: "m5", Subject: "Change: rotate certs", Body: "Change: rotate the TLS certs"},
	}
	fx := newFixture(t, messages, newMemStore())
	fx.notifier.err = fmt.Errorf("smtp unreachable")

	report, err := fx.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Filed)
	assert.Equal(t, 0, report.Notified)

	processed, err := fx.store.Contains("m5")
	require.NoError(t, err)
	assert.True(t, processed, "notification is best-effort; the filed ticket is the side effect of record")
}

func TestFetchFailureAbortsRun(t *testing.T) {
	fx := newFixture(t, nil, newMemStore())
	fx.fetcher.err = fmt.Errorf("mailbox unreachable")

	_, err := fx.runner.Run(context.Background())
	assert.Error(t, err)
	assert.Empty(t, fx.filer.filed)
}
