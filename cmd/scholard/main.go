package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartscholar/internal/cfg"
	"smartscholar/internal/feedback"
	"smartscholar/internal/metrics"
	"smartscholar/internal/ml"
	"smartscholar/internal/server"
	"smartscholar/internal/storage"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	cfg.SetupLogging(c.LogLevel, c.LogFormat, os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	startMetricsServer(ctx, c, cancel)

	svc := loadService(c, mw)
	analyzer := initializeAnalyzer(c, mw)

	api := server.New(server.Config{
		Port:         c.ServerPort,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		IdleTimeout:  c.IdleTimeout,
		MaxTextChars: c.MaxTextChars,
	}, svc, analyzer, mw)

	go func() {
		if err := api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("API server failed")
			cancel()
		}
	}()

	waitForShutdown(ctx, cancel, api, c.ShutdownTimeout)
}

// loadService opens the configured store and loads both artifacts. Any
// failure yields a degraded service so the analyzer keeps serving.
func loadService(c cfg.Settings, mw *metrics.MetricsWrapper) *ml.Service {
	store, err := storage.OpenSettings(c)
	if err != nil {
		log.Warn().Err(err).Str("backend", c.StorageBackend).Msg("artifact store unavailable, prediction disabled")
		return ml.Unavailable(err, mw)
	}
	defer store.Close()

	dropout, gpa, err := storage.LoadPair(store)
	if err != nil {
		log.Warn().Err(err).Msg("artifacts not loaded, prediction disabled")
		return ml.Unavailable(err, mw)
	}

	svc, err := ml.NewService(dropout, gpa, mw)
	if err != nil {
		log.Error().Err(err).Msg("artifacts rejected, prediction disabled")
		return ml.Unavailable(err, mw)
	}

	log.Info().
		Str("dropout_version", dropout.Version).
		Str("gpa_version", gpa.Version).
		Str("backend", c.StorageBackend).
		Msg("models loaded")
	return svc
}

func initializeAnalyzer(c cfg.Settings, mw *metrics.MetricsWrapper) *feedback.Analyzer {
	var sentiment feedback.Sentiment = feedback.Neutral{}
	if c.SentimentEnabled() {
		sentiment = feedback.NewHTTPSentiment(c.SentimentURL, c.SentimentToken, c.SentimentTimeout)
		log.Info().Str("url", c.SentimentURL).Msg("sentiment classifier enabled")
	}
	return feedback.NewAnalyzer(sentiment, mw).WithTimeout(c.SentimentTimeout)
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, c cfg.Settings, cancel context.CancelFunc) {
	go func() {
		mux := http.NewServeMux()

		mux.Handle("/health", metrics.HealthHandler(prometheus.DefaultGatherer))
		mux.Handle("/metrics", promhttp.Handler())

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       c.ReadTimeout,
			WriteTimeout:      c.WriteTimeout,
			IdleTimeout:       c.IdleTimeout,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), c.ShutdownTimeout)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()

		log.Info().Int("port", c.MetricsPort).Msg("starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
			cancel()
		}
	}()
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc, api *server.Server, timeout time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), timeout)
	defer done()
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
		return
	}
	log.Info().Msg("API server stopped")
}
