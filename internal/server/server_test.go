package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox2itsm/internal/classifier"
	"inbox2itsm/internal/metrics"
	"inbox2itsm/internal/model"
	"inbox2itsm/internal/pipeline"
	"inbox2itsm/internal/runlog"
	"inbox2itsm/internal/scheduler"
)

type stubFetcher struct{}

func (s *stubFetcher) FetchUnread(ctx context.Context) ([]model.Message, error) { return nil, nil }
func (s *stubFetcher) Close() error                                             { return nil }

type stubClassifier struct{}

func (s *stubClassifier) Classify(ctx context.Context, subject, body string) classifier.Result {
	return classifier.Result{Intent: model.IntentIncident, Source: classifier.SourceAPI}
}

type stubFiler struct{}

func (s *stubFiler) CreateTicket(ctx context.Context, msg model.Message, intent model.Intent) (model.Ticket, error) {
	return model.Ticket{Number: "INC1001", Intent: intent}, nil
}

type stubNotifier struct{}

func (s *stubNotifier) NotifyApproval(ctx context.Context, ticket model.Ticket, msg model.Message) error {
	return nil
}
func (s *stubNotifier) Close() error { return nil }

type stubStore struct{}

func (s *stubStore) Contains(id string) (bool, error) { return false, nil }
func (s *stubStore) Add(id string) error              { return nil }
func (s *stubStore) Close() error                     { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	rl, err := runlog.Open(filepath.Join(t.TempDir(), "runlog.txt"))
	require.NoError(t, err)
	t.Cleanup(func() { rl.Close() })

	m := metrics.New()
	runner := pipeline.New(&stubFetcher{}, &stubClassifier{}, &stubFiler{}, &stubNotifier{}, &stubStore{}, rl, m)
	sched := scheduler.New(60, runner)

	return NewRouter(NewHandlers(sched, m))
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestStatusEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"running":false`)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "inbox2itsm_runs_total")
}
