// Package middleware holds echo middleware shared by the HTTP servers.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type requestLog struct {
	logger *slog.Logger
	quiet  []string
}

type RequestLogOption func(*requestLog)

// WithLogger replaces slog.Default as the destination.
func WithLogger(l *slog.Logger) RequestLogOption {
	return func(r *requestLog) {
		r.logger = l
	}
}

// WithQuietPaths skips successful requests under the given path prefixes, e.g. probes.
func WithQuietPaths(prefixes ...string) RequestLogOption {
	return func(r *requestLog) {
		r.quiet = append(r.quiet, prefixes...)
	}
}

// RequestLog logs one line per request: info for success, warn for 4xx and
// error for 5xx or handler errors.
func RequestLog(opts ...RequestLogOption) echo.MiddlewareFunc {
	r := &requestLog{}
	for _, opt := range opts {
		opt(r)
	}

	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := levelFor(v)
			if level == slog.LevelInfo && r.isQuiet(v.URI) {
				return nil
			}

			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.RequestID != "" {
				attrs = append(attrs, slog.String("request_id", v.RequestID))
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			r.log().LogAttrs(context.Background(), level, "HTTP request", attrs...)
			return nil
		},
	})
}

func levelFor(v middleware.RequestLoggerValues) slog.Level {
	switch {
	case v.Error != nil || v.Status >= http.StatusInternalServerError:
		return slog.LevelError
	case v.Status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func (r *requestLog) isQuiet(uri string) bool {
	for _, prefix := range r.quiet {
		if strings.HasPrefix(uri, prefix) {
			return true
		}
	}
	return false
}

func (r *requestLog) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}
