package subscription

import (
	"log/slog"
	"time"
)

// ServiceOption configures optional Service settings.
type ServiceOption func(*Service)

// WithLocker replaces the default in-process locker, typically with the
// Redis locker for multi-node deployments.
func WithLocker(l Locker) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source. Intended for tests that assert on
// execution dates.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
