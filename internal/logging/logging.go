// Package logging provides structured logging with request-scoped context.
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	// TraceIDKey carries the request trace identifier through context.
	TraceIDKey contextKey = "trace_id"
	// UserIDKey carries the authenticated user identifier through context.
	UserIDKey contextKey = "user_id"
	// WalletKey carries the authenticated wallet address through context.
	WalletKey contextKey = "wallet_address"
)

// Logger wraps logrus with context-aware field extraction.
type Logger struct {
	log     *logrus.Logger
	service string
}

// New creates a logger for the named service. Level and format come from
// LOG_LEVEL and LOG_FORMAT (json by default).
func New(service string) *Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	return &Logger{log: log, service: service}
}

func (l *Logger) base() *logrus.Entry {
	return l.log.WithField("service", l.service)
}

// WithContext returns an entry annotated with trace and identity fields from
// ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.base()
	if ctx == nil {
		return entry
	}
	if traceID := GetTraceID(ctx); traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}
	if userID := GetUserID(ctx); userID != "" {
		entry = entry.WithField("user_id", userID)
	}
	return entry
}

// WithError returns an entry annotated with err.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.base().WithError(err)
}

// WithFields returns an entry annotated with the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.base().WithFields(fields)
}

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...interface{}) { l.base().Infof(format, args...) }

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(format string, args ...interface{}) { l.base().Warnf(format, args...) }

// Info logs a message at info level.
func (l *Logger) Info(args ...interface{}) { l.base().Info(args...) }

// Warn logs a message at warn level.
func (l *Logger) Warn(args ...interface{}) { l.base().Warn(args...) }

// Debug logs a message at debug level.
func (l *Logger) Debug(args ...interface{}) { l.base().Debug(args...) }

// Error logs a message at error level.
func (l *Logger) Error(args ...interface{}) { l.base().Error(args...) }

// LogRequest records a completed HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	}).Info("request completed")
}

// LogSecurityEvent records an auth or rate-limit relevant event.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, fields map[string]interface{}) {
	l.WithContext(ctx).WithField("event", event).WithFields(logrus.Fields(fields)).Warn("security event")
}

// NewTraceID generates a fresh trace identifier.
func NewTraceID() string { return uuid.NewString() }

// WithTraceID returns a context annotated with the trace identifier.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID extracts the trace identifier from ctx, or "".
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUser returns a context annotated with the authenticated identity.
func WithUser(ctx context.Context, userID, wallet string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, WalletKey, wallet)
}

// GetUserID extracts the authenticated user identifier from ctx, or "".
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}

// GetWallet extracts the authenticated wallet address from ctx, or "".
func GetWallet(ctx context.Context) string {
	if v, ok := ctx.Value(WalletKey).(string); ok {
		return v
	}
	return ""
}
