// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"certforge/internal/cache"
	"certforge/internal/engine"
	"certforge/internal/models"
)

// defaultLayoutVersion is the render cache version used for certificates
// without a template.
const defaultLayoutVersion = 0

// verifyURL is the public verification link for a certificate code.
func verifyURL(baseURL, code string) string {
	return strings.TrimRight(baseURL, "/") + "/verify?code=" + url.QueryEscape(code)
}

// certificateValues builds the field map a template is filled with.
// completionDate falls back to the issue date.
func certificateValues(c *models.Certificate, baseURL string) engine.FieldValues {
	completion := c.IssueDate
	if c.CompletionDate != nil {
		completion = *c.CompletionDate
	}
	return engine.FieldValues{
		"userName":         c.UserName,
		"userEmail":        c.Email(),
		"programName":      c.ProgramName,
		"organizationName": c.OrganizationName,
		"certificateId":    c.CertificateID,
		"verificationCode": c.VerificationCode,
		"completionDate":   engine.FormatDate(completion),
		"issueDate":        engine.FormatDate(c.IssueDate),
		"verificationUrl":  verifyURL(baseURL, c.CertificateID),
	}
}

// certificateTemplate resolves the template a certificate renders with.
// Certificates without a template, or whose template is gone, use the
// built-in default layout.
func (a *Admin) certificateTemplate(c *models.Certificate) (*engine.Template, int, error) {
	if c.TemplateID == nil {
		return engine.DefaultLayout(), defaultLayoutVersion, nil
	}
	t, err := a.templateStore.FindByID(*c.TemplateID)
	if err != nil {
		return nil, 0, fmt.Errorf("find certificate template: %w", err)
	}
	if t == nil {
		slog.Warn("certificate template missing, using default layout",
			"certificate_id", c.CertificateID, "template_id", c.TemplateID)
		return engine.DefaultLayout(), defaultLayoutVersion, nil
	}
	tmpl, err := a.compile(t)
	if err != nil {
		return nil, 0, err
	}
	return tmpl, t.Version, nil
}

// renderCertificate renders c in format, consulting the Valkey render cache
// first.
func (a *Admin) renderCertificate(ctx context.Context, c *models.Certificate, format engine.Format) ([]byte, error) {
	tmpl, version, err := a.certificateTemplate(c)
	if err != nil {
		return nil, err
	}

	key := cache.RenderKey(c.ID, c.TemplateID, version, string(format))
	if a.renderCache != nil {
		if data, ok := a.renderCache.Get(ctx, key); ok {
			return data, nil
		}
	}

	data, err := a.engine.Render(ctx, tmpl, certificateValues(c, a.cfg.BaseURL), format)
	if err != nil {
		return nil, fmt.Errorf("render certificate %s: %w", c.CertificateID, err)
	}
	if a.renderCache != nil {
		a.renderCache.Set(ctx, key, data)
	}
	return data, nil
}

// CertificateDownload renders a certificate in ?format= (PDF by default).
func (a *Admin) CertificateDownload(w http.ResponseWriter, r *http.Request) {
	c, ok := a.findCertificate(w, r)
	if !ok {
		return
	}
	format, err := a.format(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := a.renderCertificate(r.Context(), c, format)
	if err != nil {
		a.internalError(w, "render certificate", err)
		return
	}
	attachment(w, format.ContentType(), "certificate-"+c.CertificateID+format.Extension(), data)
}
