package scheduler

import (
	"context"
	"path/filepath"
	"testing"

	"inbox2itsm/internal/classifier"
	"inbox2itsm/internal/metrics"
	"inbox2itsm/internal/model"
	"inbox2itsm/internal/pipeline"
	"inbox2itsm/internal/runlog"
)

// dummyFetcher implements fetcher.Fetcher but does nothing
type dummyFetcher struct{}

func (d *dummyFetcher) FetchUnread(ctx context.Context) ([]model.Message, error) { return nil, nil }
func (d *dummyFetcher) Close() error                                             { return nil }

type dummyClassifier struct{}

func (d *dummyClassifier) Classify(ctx context.Context, subject, body string) classifier.Result {
	return classifier.Result{Intent: model.IntentIncident, Source: classifier.SourceAPI}
}

type dummyFiler struct{}

func (d *dummyFiler) CreateTicket(ctx context.Context, msg model.Message, intent model.Intent) (model.Ticket, error) {
	return model.Ticket{Number: "INC1001", Intent: intent}, nil
}

type dummyNotifier struct{}

func (d *dummyNotifier) NotifyApproval(ctx context.Context, ticket model.Ticket, msg model.Message) error {
	return nil
}
func (d *dummyNotifier) Close() error { return nil }

type dummyStore struct{}

func (d *dummyStore) Contains(id string) (bool, error) { return false, nil }
func (d *dummyStore) Add(id string) error              { return nil }
func (d *dummyStore) Close() error                     { return nil }

func newTestRunner(t *testing.T) *pipeline.Runner {
	t.Helper()

	rl, err := runlog.Open(filepath.Join(t.TempDir(), "runlog.txt"))
	if err != nil {
		t.Fatalf("failed to open run log: %v", err)
	}
	t.Cleanup(func() { rl.Close() })

	return pipeline.New(&dummyFetcher{}, &dummyClassifier{}, &dummyFiler{}, &dummyNotifier{}, &dummyStore{}, rl, metrics.New())
}

func TestSchedulerRestart(t *testing.T) {
	sched := New(60, newTestRunner(t))

	if err := sched.Start(); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if !sched.IsRunning() {
		t.Fatalf("scheduler should be running after Start")
	}
	if err := sched.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if sched.IsRunning() {
		t.Fatalf("scheduler should not be running after Stop")
	}
	if err := sched.Start(); err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	if !sched.IsRunning() {
		t.Fatalf("scheduler should be running after second Start")
	}
	// context should be active again after restart
	if sched.ctx == nil || sched.ctx.Err() != nil {
		t.Fatalf("scheduler context should be active after restart")
	}
	sched.Stop()
}

func TestRunOnceRecordsReport(t *testing.T) {
	sched := New(60, newTestRunner(t))

	if err := sched.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer sched.Stop()

	if err := sched.RunOnce(); err != nil {
		t.Fatalf("run once failed: %v", err)
	}

	lastRun, report := sched.LastReport()
	if lastRun.IsZero() {
		t.Fatalf("last run time should be recorded")
	}
	if report.Fetched != 0 {
		t.Fatalf("expected empty fetch, got %d", report.Fetched)
	}
}
