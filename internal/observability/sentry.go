// Package observability reports analysis faults to Sentry.
package observability

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"runstream/internal/config"
)

// Init configures the Sentry client. Without a DSN reporting stays disabled
// and every capture is a no-op.
func Init(cfg config.SentryConfig, release string, logger *slog.Logger) error {
	if cfg.DSN == "" {
		logger.Debug("Sentry DSN not configured - error tracking disabled")
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     release,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			// Filter out credentials
			if event.Request != nil && event.Request.Headers != nil {
				delete(event.Request.Headers, "Authorization")
				delete(event.Request.Headers, "Cookie")
			}
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}

	logger.Info("Sentry initialized", "environment", cfg.Environment, "release", release)
	return nil
}

// CaptureException reports err with tags scoped to this event only
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events to be sent
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
