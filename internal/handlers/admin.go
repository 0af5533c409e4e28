// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"certforge/internal/cache"
	"certforge/internal/engine"
	"certforge/internal/middleware"
	"certforge/internal/models"
	"certforge/internal/storage"
	"certforge/internal/store"
)

// AdminConfig carries the settings admin handlers need from the
// application config.
type AdminConfig struct {
	BaseURL            string        // prefix for verification links
	DefaultFormat      engine.Format // used when ?format= is absent
	ExportIncludeFiles bool          // render one file per certificate in exports by default
}

// Admin groups the admin API handlers and their dependencies.
type Admin struct {
	orgStore      *store.OrganizationStore
	programStore  *store.ProgramStore
	templateStore *store.TemplateStore
	certStore     *store.CertificateStore
	exportStore   *store.ExportLogStore
	engine        *engine.Engine
	renderCache   *cache.RenderCache
	exportLock    *cache.ExportLock
	storageClient *storage.Client
	cfg           AdminConfig
}

// NewAdmin creates a new Admin handler group. renderCache, exportLock and
// storageClient may be nil.
func NewAdmin(orgStore *store.OrganizationStore, programStore *store.ProgramStore, templateStore *store.TemplateStore, certStore *store.CertificateStore, exportStore *store.ExportLogStore, eng *engine.Engine, renderCache *cache.RenderCache, exportLock *cache.ExportLock, storageClient *storage.Client, cfg AdminConfig) *Admin {
	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = engine.FormatPDF
	}
	return &Admin{
		orgStore:      orgStore,
		programStore:  programStore,
		templateStore: templateStore,
		certStore:     certStore,
		exportStore:   exportStore,
		engine:        eng,
		renderCache:   renderCache,
		exportLock:    exportLock,
		storageClient: storageClient,
		cfg:           cfg,
	}
}

// Dashboard returns the headline counts shown on the admin landing page.
func (a *Admin) Dashboard(w http.ResponseWriter, r *http.Request) {
	orgs, err := a.orgStore.Count()
	if err != nil {
		a.internalError(w, "count organizations", err)
		return
	}
	programs, err := a.programStore.Count()
	if err != nil {
		a.internalError(w, "count programs", err)
		return
	}
	templates, err := a.templateStore.Count()
	if err != nil {
		a.internalError(w, "count templates", err)
		return
	}
	issued, err := a.certStore.CountIssued()
	if err != nil {
		a.internalError(w, "count certificates", err)
		return
	}
	recent, err := a.certStore.Recent(recentLimit)
	if err != nil {
		a.internalError(w, "list recent certificates", err)
		return
	}
	if recent == nil {
		recent = []models.Certificate{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"organizations":      orgs,
		"programs":           programs,
		"templates":          templates,
		"certificates":       issued,
		"recentCertificates": recent,
	})
}

// format reads ?format= falling back to the configured default.
func (a *Admin) format(r *http.Request) (engine.Format, error) {
	v := r.URL.Query().Get("format")
	if v == "" {
		return a.cfg.DefaultFormat, nil
	}
	return engine.ParseFormat(v)
}

// sessionUserID returns the signed-in user's ID, or nil.
func sessionUserID(r *http.Request) *uuid.UUID {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		return nil
	}
	id := sess.UserID
	return &id
}

// invalidateTemplate drops a template from both cache layers after it
// changes.
func (a *Admin) invalidateTemplate(ctx context.Context, id uuid.UUID, action string) {
	a.engine.InvalidateTemplate(id.String())
	if a.renderCache != nil {
		a.renderCache.InvalidateTemplate(ctx, id)
	}
	slog.Info("template cache invalidated", "template_id", id, "action", action)
}

// invalidateCertificate drops cached renders of one certificate.
func (a *Admin) invalidateCertificate(ctx context.Context, id uuid.UUID, action string) {
	if a.renderCache == nil {
		return
	}
	a.renderCache.InvalidateCertificate(ctx, id)
	slog.Info("certificate cache invalidated", "certificate", id, "action", action)
}

func (a *Admin) internalError(w http.ResponseWriter, op string, err error) {
	slog.Error(op+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
