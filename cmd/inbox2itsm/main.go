package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"inbox2itsm/internal/classifier"
	"inbox2itsm/internal/config"
	"inbox2itsm/internal/fetcher"
	"inbox2itsm/internal/itsm"
	"inbox2itsm/internal/metrics"
	"inbox2itsm/internal/notifier"
	"inbox2itsm/internal/pipeline"
	"inbox2itsm/internal/runlog"
	"inbox2itsm/internal/scheduler"
	"inbox2itsm/internal/server"
	"inbox2itsm/internal/store"
)

func main() {
	daemon := flag.Bool("daemon", false, "run as a self-scheduled daemon instead of one-shot")
	flag.Parse()

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(level)
	}

	logrus.Info("Starting inbox2itsm")

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}

	runner, m, cleanup, err := buildRunner(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize pipeline: %v", err)
	}

	if *daemon {
		runDaemon(cfg, runner, m)
		cleanup()
		return
	}

	// One-shot: run the pipeline once and exit with a status that
	// reflects overall success.
	report, err := runner.Run(context.Background())
	cleanup()
	if err != nil {
		logrus.Errorf("Run failed: %v", err)
		os.Exit(1)
	}

	logrus.Infof("Run complete: fetched=%d skipped=%d filed=%d notified=%d failed=%d",
		report.Fetched, report.Skipped, report.Filed, report.Notified, report.Failed)
}

// buildRunner constructs the pipeline from configuration. The
// returned cleanup closes every component and pushes metrics.
func buildRunner(cfg *config.Config) (*pipeline.Runner, *metrics.Metrics, func(), error) {
	m := metrics.New()

	var f fetcher.Fetcher
	var err error
	switch cfg.Mailbox.Transport {
	case "imap":
		f, err = fetcher.NewIMAPFetcher(&cfg.Mailbox)
		logrus.Info("Using IMAP for mailbox fetching")
	default:
		f, err = fetcher.NewGmailFetcher(&cfg.Mailbox)
		logrus.Info("Using Gmail API for mailbox fetching")
	}
	if err != nil {
		return nil, nil, nil, err
	}

	var n notifier.Notifier
	switch cfg.Notify.Transport {
	case "smtp":
		n = notifier.NewSMTPNotifier(&cfg.Mailbox, &cfg.Notify)
		logrus.Info("Using SMTP for approval notifications")
	default:
		n, err = notifier.NewGmailNotifier(&cfg.Mailbox, &cfg.Notify)
		if err != nil {
			f.Close()
			return nil, nil, nil, err
		}
		logrus.Info("Using Gmail API for approval notifications")
	}

	var s store.ProcessedStore
	switch cfg.State.Backend {
	case "mysql":
		s, err = store.OpenMySQLStore(&cfg.State)
	default:
		s, err = store.OpenFileStore(cfg.State.FilePath)
	}
	if err != nil {
		f.Close()
		n.Close()
		return nil, nil, nil, err
	}

	rl, err := runlog.Open(cfg.RunLog.Path)
	if err != nil {
		f.Close()
		n.Close()
		s.Close()
		return nil, nil, nil, err
	}

	c := classifier.New(classifier.NewHTTPClient(&cfg.Classifier))
	filer := itsm.NewClient(&cfg.ITSM)

	runner := pipeline.New(f, c, filer, n, s, rl, m)

	cleanup := func() {
		if err := m.Push(cfg.Metrics.PushgatewayURL, cfg.Metrics.JobName); err != nil {
			logrus.Errorf("Failed to push metrics: %v", err)
		}
		if err := f.Close(); err != nil {
			logrus.Errorf("Failed to close fetcher: %v", err)
		}
		if err := n.Close(); err != nil {
			logrus.Errorf("Failed to close notifier: %v", err)
		}
		if err := s.Close(); err != nil {
			logrus.Errorf("Failed to close state store: %v", err)
		}
		if err := rl.Close(); err != nil {
			logrus.Errorf("Failed to close run log: %v", err)
		}
	}

	return runner, m, cleanup, nil
}

// runDaemon starts the cron scheduler and the HTTP surface, then
// waits for a shutdown signal.
func runDaemon(cfg *config.Config, runner *pipeline.Runner, m *metrics.Metrics) {
	sched := scheduler.New(cfg.Daemon.IntervalMinutes, runner)
	handlers := server.NewHandlers(sched, m)
	router := server.NewRouter(handlers)

	srv := &http.Server{
		Addr:         ":" + cfg.Daemon.HTTPPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	if err := sched.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Daemon.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Stopped gracefully")
}
