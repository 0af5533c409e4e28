// Package middleware provides HTTP middleware for the certforge server.
package middleware

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"certforge/internal/session"
)

// responseWriter wraps http.ResponseWriter to capture the status code and
// the number of body bytes sent.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	bytes      int64
}

// WriteHeader captures the status code before writing it.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Write ensures a default 200 status if WriteHeader was never called.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// requestInfo collects facts learned further down the chain that the
// access log reports once the handler returns.
type requestInfo struct {
	user string
}

const requestInfoKey contextKey = "request-info"

// noteSession records the session owner for the access log.
func noteSession(ctx context.Context, data *session.Data) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok && data != nil {
		info.user = data.Email
	}
}

// Logger records one line per request using the default slog logger.
func Logger(next http.Handler) http.Handler {
	return RequestLogger(nil)(next)
}

// RequestLogger records method, path, status, response size, duration,
// client and session user for every request. Rendered downloads also log
// their content type and file name. Server errors log at error level and
// client errors at warn. A nil logger means slog.Default().
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &requestInfo{}
			r = r.WithContext(context.WithValue(r.Context(), requestInfoKey, info))

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"bytes", wrapped.bytes,
				"duration", time.Since(start).String(),
				"remote", clientIP(r),
			}
			if info.user != "" {
				attrs = append(attrs, "user", info.user)
			}
			if name := downloadName(w.Header()); name != "" {
				attrs = append(attrs, "content_type", w.Header().Get("Content-Type"), "file", name)
			}

			l := logger
			if l == nil {
				l = slog.Default()
			}
			switch {
			case wrapped.statusCode >= 500:
				l.Error("http request", attrs...)
			case wrapped.statusCode >= 400:
				l.Warn("http request", attrs...)
			default:
				l.Info("http request", attrs...)
			}
		})
	}
}

// downloadName returns the file name of a response sent with a
// Content-Disposition header, or "".
func downloadName(h http.Header) string {
	cd := h.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return ""
	}
	return params["filename"]
}
