// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"certforge/internal/session"
)

// newTestSession creates a session.Data value suitable for testing.
func newTestSession(role string) *session.Data {
	return &session.Data{
		UserID:      uuid.New(),
		Email:       "test@certforge.local",
		DisplayName: "Test User",
		Role:        role,
	}
}

// ctxWithSession returns a context carrying the given session data using
// the same context key the middleware uses. This allows tests to simulate
// the state after LoadSession has run without needing a real Valkey store.
func ctxWithSession(ctx context.Context, data *session.Data) context.Context {
	return context.WithValue(ctx, SessionKey, data)
}

// okHandler is a simple handler that records whether it was invoked.
func okHandler() (http.Handler, *bool) {
	var called bool
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	return h, &called
}

// ---------- SessionFromCtx ----------

func TestSessionFromCtx(t *testing.T) {
	t.Run("returns session when present", func(t *testing.T) {
		sess := newTestSession("admin")
		ctx := ctxWithSession(context.Background(), sess)

		got := SessionFromCtx(ctx)
		if got == nil {
			t.Fatal("expected non-nil session, got nil")
		}
		if got.Email != sess.Email {
			t.Errorf("Email: got %q, want %q", got.Email, sess.Email)
		}
		if got.Role != sess.Role {
			t.Errorf("Role: got %q, want %q", got.Role, sess.Role)
		}
	})

	t.Run("returns nil when not present", func(t *testing.T) {
		if got := SessionFromCtx(context.Background()); got != nil {
			t.Errorf("expected nil session, got %+v", got)
		}
	})

	t.Run("returns nil for wrong type in context", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), SessionKey, "not-a-session")
		if got := SessionFromCtx(ctx); got != nil {
			t.Errorf("expected nil for wrong type, got %+v", got)
		}
	})
}

// ---------- RequireAuth / RequireAdmin ----------

func TestRequireAuth(t *testing.T) {
	tests := []struct {
		name           string
		ctxValue       any
		wantCode       int
		wantNextCalled bool
	}{
		{"no session", nil, http.StatusUnauthorized, false},
		{"wrong type in context", "invalid", http.StatusUnauthorized, false},
		{"user session", newTestSession("user"), http.StatusOK, true},
		{"admin session", newTestSession("admin"), http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner, called := okHandler()
			handler := RequireAuth(inner)

			req := httptest.NewRequest(http.MethodGet, "/api/certificates", nil)
			if tt.ctxValue != nil {
				req = req.WithContext(context.WithValue(req.Context(), SessionKey, tt.ctxValue))
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if *called != tt.wantNextCalled {
				t.Errorf("next handler called: got %v, want %v", *called, tt.wantNextCalled)
			}
			if rr.Code != tt.wantCode {
				t.Errorf("status: got %d, want %d", rr.Code, tt.wantCode)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name           string
		session        *session.Data
		wantCode       int
		wantNextCalled bool
	}{
		{"returns 401 when session is nil", nil, http.StatusUnauthorized, false},
		{"returns 401 when role is user", newTestSession("user"), http.StatusUnauthorized, false},
		{"returns 401 when role is empty", newTestSession(""), http.StatusUnauthorized, false},
		{"passes through when role is admin", newTestSession("admin"), http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner, called := okHandler()
			handler := RequireAdmin(inner)

			req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
			if tt.session != nil {
				req = req.WithContext(ctxWithSession(req.Context(), tt.session))
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if *called != tt.wantNextCalled {
				t.Errorf("next handler called: got %v, want %v", *called, tt.wantNextCalled)
			}
			if rr.Code != tt.wantCode {
				t.Errorf("status: got %d, want %d", rr.Code, tt.wantCode)
			}

			if tt.wantCode == http.StatusUnauthorized {
				var body struct {
					Message string `json:"message"`
				}
				if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
					t.Fatalf("401 body is not JSON: %v", err)
				}
				if body.Message != "Unauthorized" {
					t.Errorf("message: got %q, want %q", body.Message, "Unauthorized")
				}
				if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
					t.Errorf("content type: got %q", ct)
				}
			}
		})
	}
}
