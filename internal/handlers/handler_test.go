// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler integration
// tests. Tests are skipped when PostgreSQL or Valkey are unavailable.
package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"certforge/internal/cache"
	"certforge/internal/database"
	"certforge/internal/engine"
	"certforge/internal/middleware"
	"certforge/internal/models"
	"certforge/internal/session"
	"certforge/internal/store"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "certforge")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "certforge")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping: cannot open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	goose.SetBaseFS(nil)

	if err := database.Seed(db, "admin@certforge.test", "test-password"); err != nil {
		db.Close()
		t.Fatalf("seed: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// testValkeyClient returns a Redis client for handler tests on DB 15.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		// Clean up test session, render and lock keys.
		for _, pattern := range []string{"session:*", "render:*", "lock:*"} {
			keys, _ := client.Keys(ctx, pattern).Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		}
		client.Close()
	})

	return client
}

// testEnv holds all dependencies for handler integration tests.
type testEnv struct {
	DB            *sql.DB
	Valkey        *redis.Client
	Sessions      *session.Store
	UserStore     *store.UserStore
	OrgStore      *store.OrganizationStore
	ProgramStore  *store.ProgramStore
	TemplateStore *store.TemplateStore
	CertStore     *store.CertificateStore
	ExportStore   *store.ExportLogStore
	Engine        *engine.Engine
	RenderCache   *cache.RenderCache
	Admin         *Admin
	Auth          *Auth
	Public        *Public
}

// newTestEnv creates a complete test environment with all handler dependencies.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testDB(t)
	vk := testValkeyClient(t)

	sessions := session.NewStore(vk, false)
	userStore := store.NewUserStore(db)
	orgStore := store.NewOrganizationStore(db)
	programStore := store.NewProgramStore(db)
	templateStore := store.NewTemplateStore(db)
	certStore := store.NewCertificateStore(db)
	exportStore := store.NewExportLogStore(db)
	eng := engine.New(engine.WithConcurrency(2))
	renderCache := cache.NewRenderCache(vk, time.Minute)
	exportLock := cache.NewExportLock(vk, time.Minute)

	admin := NewAdmin(orgStore, programStore, templateStore, certStore, exportStore,
		eng, renderCache, exportLock, nil, AdminConfig{
			BaseURL:       "http://certs.test",
			DefaultFormat: engine.FormatPNG,
		})
	auth := NewAuth(sessions, userStore)
	public := NewPublic(certStore, "http://certs.test")

	return &testEnv{
		DB:            db,
		Valkey:        vk,
		Sessions:      sessions,
		UserStore:     userStore,
		OrgStore:      orgStore,
		ProgramStore:  programStore,
		TemplateStore: templateStore,
		CertStore:     certStore,
		ExportStore:   exportStore,
		Engine:        eng,
		RenderCache:   renderCache,
		Admin:         admin,
		Auth:          auth,
		Public:        public,
	}
}

// ctxWithSession adds session data to a context using the middleware key.
func ctxWithSession(ctx context.Context, data *session.Data) context.Context {
	return context.WithValue(ctx, middleware.SessionKey, data)
}

// testSession creates a session.Data for testing.
func testSession(userID uuid.UUID, email, role string) *session.Data {
	return &session.Data{
		UserID:      userID,
		Email:       email,
		DisplayName: "Test User",
		Role:        role,
	}
}

// adminSession returns a session for the seeded administrator.
func adminSession(t *testing.T, db *sql.DB) *session.Data {
	t.Helper()
	var id uuid.UUID
	if err := db.QueryRow("SELECT id FROM users WHERE role = 'admin' LIMIT 1").Scan(&id); err != nil {
		t.Fatalf("no admin in database, seed first: %v", err)
	}
	return testSession(id, "admin@certforge.test", "admin")
}

// withChiURLParam adds a chi URL parameter to a request.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withChiURLParamAndSession adds both chi URL param and session to a request.
func withChiURLParamAndSession(r *http.Request, key, value string, sess *session.Data) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.SessionKey, sess)
	return r.WithContext(ctx)
}

// jsonRequest builds a request with a JSON body and an admin session.
func jsonRequest(t *testing.T, method, target string, body any, sess *session.Data) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if sess != nil {
		req = req.WithContext(ctxWithSession(req.Context(), sess))
	}
	return req
}

// decodeBody unmarshals a JSON response into a generic map.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

// fixture creates an organization with one program and registers cleanup.
func fixture(t *testing.T, env *testEnv) (*models.Organization, *models.Program) {
	t.Helper()

	org, err := env.OrgStore.Create(&models.Organization{
		Name: "Handler Org " + uuid.NewString()[:8],
	})
	if err != nil {
		t.Fatalf("create organization: %v", err)
	}
	t.Cleanup(func() {
		env.DB.Exec("DELETE FROM certificates WHERE organization_id = $1", org.ID)
		env.DB.Exec("DELETE FROM organizations WHERE id = $1", org.ID)
	})

	prog, err := env.ProgramStore.Create(&models.Program{
		Name:           "Handler Program",
		OrganizationID: org.ID,
	})
	if err != nil {
		t.Fatalf("create program: %v", err)
	}
	return org, prog
}

// cleanTemplates removes test templates by name.
func cleanTemplates(t *testing.T, db *sql.DB, names ...string) {
	t.Helper()
	for _, n := range names {
		db.Exec("DELETE FROM certificate_templates WHERE name = $1 AND NOT is_default", n)
	}
}
