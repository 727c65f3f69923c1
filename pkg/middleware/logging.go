package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RequestLogger wraps an http.RoundTripper and logs each backend request at
// DEBUG level. Pass nil logger to disable logging (makes it optional/injectable).
// Only method, path, status and duration are logged; headers and bodies carry
// tokens and passwords and are never logged here.
func RequestLogger(logger *zap.Logger) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		if next == nil {
			next = http.DefaultTransport
		}
		// If no logger provided, pass through without logging
		if logger == nil {
			return next
		}

		return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()

			resp, err := next.RoundTrip(r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Debug("HTTP request failed", append(fields, zap.Error(err))...)
				return nil, err
			}

			logger.Debug("HTTP request", append(fields, zap.Int("status", resp.StatusCode))...)
			return resp, nil
		})
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
