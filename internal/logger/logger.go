// Package logger provides structured logging with file and console output.
package logger

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	zerolog.Logger
}

// New creates a new logger with the specified level and optional file output.
func New(level string, logFile string) (*Logger, error) {
	return NewWithWriter(level, logFile, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
}

// NewWithWriter is New with a caller-supplied console writer.
func NewWithWriter(level string, logFile string, console io.Writer) (*Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	writers := []io.Writer{console}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return nil, err
		}

		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}

	multi := zerolog.MultiLevelWriter(writers...)

	logger := zerolog.New(multi).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return &Logger{logger}, nil
}

// Global is the global logger instance for convenience.
var Global *Logger

// Init initializes the global logger.
func Init(level string, logFile string) error {
	l, err := New(level, logFile)
	if err != nil {
		return err
	}
	Global = l
	return nil
}

// Get returns the global logger.
// Returns a no-op logger if not initialized.
func Get() *Logger {
	if Global == nil {
		noop := zerolog.Nop()
		return &Logger{noop}
	}
	return Global
}

// Middleware attaches a request-scoped logger to every request context and
// writes one access line per request once the handler returns.
// It must run after chi's RequestID middleware for request_id to be set.
func (l *Logger) Middleware(next http.Handler) http.Handler {
	access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		lvl := zerolog.InfoLevel
		if status >= http.StatusInternalServerError {
			lvl = zerolog.ErrorLevel
		}
		hlog.FromRequest(r).WithLevel(lvl).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})

	withRequestID := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := middleware.GetReqID(r.Context()); id != "" {
				hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
					return c.Str("request_id", id)
				})
			}
			next.ServeHTTP(w, r)
		})
	}

	return hlog.NewHandler(l.Logger)(withRequestID(access(next)))
}
