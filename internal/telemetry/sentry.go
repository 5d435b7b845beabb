// Package telemetry reports client-side failures to Sentry.
package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

const serviceName = "graphrag-client"

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN         string
	Environment string
	Release     string
}

// Reporter captures errors with tags. A Reporter without a DSN drops everything.
type Reporter struct {
	enabled bool
}

// Init initializes Sentry and returns a reporter plus a flush function for shutdown.
// If DSN is empty, returns a disabled reporter and a no-op flush.
func Init(cfg Config, log *zap.Logger) (*Reporter, func()) {
	if cfg.DSN == "" {
		return &Reporter{}, func() {}
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		ServerName:  serviceName,
	})
	if err != nil {
		log.Warn("sentry: failed to initialize, continuing without error capture", zap.Error(err))
		return &Reporter{}, func() {}
	}

	log.Info("sentry: error capture initialized", zap.String("environment", cfg.Environment))
	return &Reporter{enabled: true}, func() { sentry.Flush(5 * time.Second) }
}

// Capture sends err to Sentry with the given tags.
func (r *Reporter) Capture(err error, tags map[string]string) {
	if r == nil || !r.enabled || err == nil {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
	})
	hub.CaptureException(err)
}
