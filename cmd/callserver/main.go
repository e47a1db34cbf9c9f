package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/api"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/api/middleware"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/config"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/database"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/hours"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/metrics"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/notify"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/router"
	"github.com/forrestsmith-sys/Twilio-call-server-completed/internal/voicemail"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting callserver",
		"http_port", cfg.HTTPPort,
		"data_dir", cfg.DataDir,
		"office", cfg.OfficeName,
		"timezone", cfg.Timezone,
	)

	// Open database and run migrations.
	db, err := database.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	schedule, err := hours.NewSchedule(cfg.Timezone)
	if err != nil {
		slog.Error("failed to load office timezone", "error", err)
		os.Exit(1)
	}

	store, err := voicemail.NewStore(cfg.DataDir, cfg.PublicBaseURL)
	if err != nil {
		slog.Error("failed to create recording store", "error", err)
		os.Exit(1)
	}

	var notifier voicemail.Notifier
	chat := notify.NewClient(cfg.ChatWebhookURL)
	if chat.Configured() {
		notifier = chat
	} else {
		slog.Warn("no chat webhook configured, voicemail notifications disabled")
	}

	pipeline := voicemail.NewPipeline(store, notifier, cfg.TwilioAccountSID, cfg.TwilioAuthToken, logger)

	callLog := database.NewCallLogRepository(db)
	calls := router.New(router.Config{
		OfficeName:          cfg.OfficeName,
		ServiceNumber:       cfg.ServiceNumber,
		TeamNumbers:         cfg.TeamNumberList(),
		StaffPIN:            cfg.StaffPIN,
		DialTimeoutSecs:     cfg.DialTimeoutSecs,
		VoicemailMaxSecs:    cfg.VoicemailMaxSecs,
		Transcribe:          cfg.Transcribe,
		StaffMenuAfterHours: cfg.StaffMenuAfterHours,
	}, schedule, callLog, logger)

	// Metrics: event counters incremented by the handlers and pipeline, plus
	// a scrape-time collector over the call log and recording store.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	counters := metrics.NewCounters(registry)
	registry.MustRegister(metrics.NewCollector(callLog, store, time.Now()))
	pipeline.Observe(counters.VoicemailsStored.Inc, counters.NotifyFailures.Inc)

	var verifier middleware.Verifier = middleware.NewTwilioVerifier(cfg.TwilioAuthToken)
	if !cfg.RequireSignature {
		slog.Warn("request signature validation disabled")
		verifier = middleware.NoopVerifier{}
	}

	handler := api.NewServer(api.Deps{
		Config:   cfg,
		Calls:    calls,
		Pipeline: pipeline,
		Store:    store,
		Counters: counters,
		Verifier: verifier,
		Metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:   logger,
	})
	defer handler.Close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down server")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("callserver stopped")
}
