// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"mime"
	"net/http"
	"strings"
)

const (
	// APIPolicy forbids everything: API responses are JSON or files that
	// are never rendered as documents.
	APIPolicy = "default-src 'none'; frame-ancestors 'none'"

	// DocumentPolicy applies to rendered HTML certificates. They carry one
	// inline stylesheet and data-URI images and never run scripts.
	DocumentPolicy = "default-src 'none'; style-src 'unsafe-inline'; img-src data:; font-src data:; frame-ancestors 'self'; base-uri 'none'; form-action 'none'"
)

// SecureHeaders sets the headers shared by every response and picks the
// Content-Security-Policy from the response Content-Type once the handler
// commits it. Responses under /api are marked no-store unless the handler
// chose its own Cache-Control (public QR images do).
func SecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Resource-Policy", "same-origin")

		sw := &secureWriter{ResponseWriter: w, api: strings.HasPrefix(r.URL.Path, "/api/")}
		next.ServeHTTP(sw, r)
		sw.commit()
	})
}

// secureWriter fills in the headers that depend on what the handler sent.
type secureWriter struct {
	http.ResponseWriter
	api       bool
	committed bool
}

func (sw *secureWriter) commit() {
	if sw.committed {
		return
	}
	sw.committed = true

	h := sw.Header()
	if h.Get("Content-Security-Policy") == "" {
		policy := APIPolicy
		if isHTML(h.Get("Content-Type")) {
			policy = DocumentPolicy
			// Rendered pages are previewed in an iframe of the admin UI.
			h.Set("X-Frame-Options", "SAMEORIGIN")
		}
		h.Set("Content-Security-Policy", policy)
	}
	if sw.api && h.Get("Cache-Control") == "" {
		h.Set("Cache-Control", "no-store")
	}
}

func (sw *secureWriter) WriteHeader(code int) {
	sw.commit()
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *secureWriter) Write(b []byte) (int, error) {
	sw.commit()
	return sw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *secureWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "text/html"
}
