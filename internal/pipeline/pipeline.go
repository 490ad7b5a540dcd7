// Package pipeline runs one fetch-classify-file-notify-record cycle
// over the currently-unread mailbox messages.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"inbox2itsm/internal/classifier"
	"inbox2itsm/internal/fetcher"
	"inbox2itsm/internal/metrics"
	"inbox2itsm/internal/model"
	"inbox2itsm/internal/notifier"
	"inbox2itsm/internal/runlog"
	"inbox2itsm/internal/store"
)

// IntentClassifier decides a message's ticket intent.
type IntentClassifier interface {
	Classify(ctx context.Context, subject, body string) classifier.Result
}

// TicketFiler creates a ticket in the ITSM backend.
type TicketFiler interface {
	CreateTicket(ctx context.Context, msg model.Message, intent model.Intent) (model.Ticket, error)
}

// AttemptLogger is implemented by stores that keep a per-attempt
// audit trail (the MySQL backend).
type AttemptLogger interface {
	LogTicketAttempt(messageID, ticketNumber, intent, status, errorMsg string) error
}

// Report summarizes one run.
type Report struct {
	Fetched  int       `json:"fetched"`
	Skipped  int       `json:"skipped"`
	Filed    int       `json:"filed"`
	Notified int       `json:"notified"`
	Failed   int       `json:"failed"`
	Started  time.Time `json:"started"`
	Duration string    `json:"duration"`
}

// Runner wires the pipeline components for one invocation.
type Runner struct {
	fetcher    fetcher.Fetcher
	classifier IntentClassifier
	filer      TicketFiler
	notifier   notifier.Notifier
	store      store.ProcessedStore
	runlog     *runlog.Log
	metrics    *metrics.Metrics
}

// New creates a pipeline runner
func New(f fetcher.Fetcher, c IntentClassifier, filer TicketFiler, n notifier.Notifier, s store.ProcessedStore, rl *runlog.Log, m *metrics.Metrics) *Runner {
	return &Runner{
		fetcher:    f,
		classifier: c,
		filer:      filer,
		notifier:   n,
		store:      s,
		runlog:     rl,
		metrics:    m,
	}
}

// Run executes one full pipeline cycle. A fetch failure aborts the
// run without touching the processed set; per-message failures are
// isolated so one bad message never blocks the rest.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{Started: start}

	r.metrics.Runs.Inc()
	defer func() {
		r.metrics.RunDuration.Observe(time.Since(start).Seconds())
	}()

	r.runlog.Printf("run started")

	messages, err := r.fetcher.FetchUnread(ctx)
	if err != nil {
		r.runlog.Printf("run aborted: %v", err)
		return report, err
	}

	report.Fetched = len(messages)
	r.metrics.MessagesFetched.Add(float64(len(messages)))
	r.runlog.Printf("fetched %d unread message(s)", len(messages))

	for _, msg := range messages {
		select {
		case <-ctx.Done():
			r.runlog.Printf("run cancelled after %d message(s)", report.Filed+report.Skipped+report.Failed)
			report.Duration = time.Since(start).String()
			return report, ctx.Err()
		default:
		}

		r.processMessage(ctx, msg, &report)
	}

	report.Duration = time.Since(start).String()
	r.runlog.Printf("run finished: fetched=%d skipped=%d filed=%d notified=%d failed=%d",
		report.Fetched, report.Skipped, report.Filed, report.Notified, report.Failed)
	logrus.Infof("Run finished in %v: %d fetched, %d filed, %d failed", time.Since(start), report.Fetched, report.Filed, report.Failed)

	return report, nil
}

// processMessage takes one message through classify, file, notify,
// and record.
func (r *Runner) processMessage(ctx context.Context, msg model.Message, report *Report) {
	processed, err := r.store.Contains(msg.ID)
	if err != nil {
		logrus.Errorf("Failed to check processed state for %s: %v", msg.ID, err)
		r.runlog.Printf("message %s: state check failed: %v", msg.ID, err)
		report.Failed++
		return
	}
	if processed {
		logrus.Debugf("Message %s already processed, skipping", msg.ID)
		r.metrics.DedupSkips.Inc()
		report.Skipped++
		return
	}

	intent := r.classify(ctx, msg)

	ticket, err := r.filer.CreateTicket(ctx, msg, intent)
	if err != nil {
		// Not recorded: the message stays eligible for the next run.
		logrus.Errorf("Failed to file ticket for message %s: %v", msg.ID, err)
		r.runlog.Printf("message %s: ticket creation failed: %v", msg.ID, err)
		r.metrics.TicketFailures.Inc()
		r.logAttempt(msg.ID, "", intent, "failure", err.Error())
		report.Failed++
		return
	}

	report.Filed++
	r.metrics.TicketsFiled.WithLabelValues(intent.String()).Inc()
	r.runlog.Printf("message %s: filed %s ticket %s", msg.ID, intent, ticket.Number)

	if intent == model.IntentChange {
		if err := r.notifier.NotifyApproval(ctx, ticket, msg); err != nil {
			// Best-effort: the ticket already exists and stays recorded.
			logrus.Errorf("Failed to notify approver for %s: %v", ticket.Number, err)
			r.runlog.Printf("message %s: approval notification failed: %v", msg.ID, err)
			r.metrics.NotifyFailures.Inc()
		} else {
			report.Notified++
			r.runlog.Printf("message %s: approval requested for %s", msg.ID, ticket.Number)
		}
	}

	if err := r.store.Add(msg.ID); err != nil {
		// The ticket exists; a missing record means a duplicate next
		// run, which is the documented at-least-once behavior.
		logrus.Errorf("Failed to record processed message %s: %v", msg.ID, err)
		r.runlog.Printf("message %s: failed to record processed id: %v", msg.ID, err)
	}

	r.logAttempt(msg.ID, ticket.Number, intent, "success", "")
}

// classify applies the fallback policy around the tagged classifier
// result: any classification error defaults to incident so the
// message is never silently dropped.
func (r *Runner) classify(ctx context.Context, msg model.Message) model.Intent {
	result := r.classifier.Classify(ctx, msg.Subject, msg.Body)
	if result.Err != nil {
		r.metrics.ClassifierFallbacks.Inc()
		if errors.Is(result.Err, classifier.ErrQuotaExceeded) {
			logrus.Warnf("Classification quota exhausted for message %s, defaulting to incident", msg.ID)
			r.runlog.Printf("message %s: classification quota exhausted, falling back to incident", msg.ID)
		} else {
			logrus.Warnf("Classification failed for message %s: %v, defaulting to incident", msg.ID, result.Err)
			r.runlog.Printf("message %s: classification failed (%v), falling back to incident", msg.ID, result.Err)
		}
		return model.IntentIncident
	}

	r.runlog.Printf("message %s: classified as %s via %s", msg.ID, result.Intent, result.Source)
	return result.Intent
}

// logAttempt writes an audit row when the store supports it
func (r *Runner) logAttempt(messageID, ticketNumber string, intent model.Intent, status, errorMsg string) {
	logger, ok := r.store.(AttemptLogger)
	if !ok {
		return
	}
	if err := logger.LogTicketAttempt(messageID, ticketNumber, intent.String(), status, errorMsg); err != nil {
		logrus.Errorf("Failed to write ticket audit row for %s: %v", messageID, err)
	}
}
