// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"certforge/internal/models"
	"certforge/internal/store"
)

// qrSize is the side of verification QR codes in pixels.
const qrSize = 256

// Public groups the unauthenticated certificate verification handlers.
type Public struct {
	certStore *store.CertificateStore
	baseURL   string
}

// NewPublic creates a new Public handler group.
func NewPublic(certStore *store.CertificateStore, baseURL string) *Public {
	return &Public{certStore: certStore, baseURL: baseURL}
}

// verification is the public view of a certificate. The issuer's email and
// internal IDs stay private.
type verification struct {
	Valid            bool                     `json:"valid"`
	CertificateID    string                   `json:"certificateId"`
	UserName         string                   `json:"userName"`
	Status           models.CertificateStatus `json:"status"`
	IssueDate        string                   `json:"issueDate"`
	CompletionDate   *string                  `json:"completionDate"`
	VerificationCode string                   `json:"verificationCode"`
	Organization     map[string]string        `json:"organization"`
	Program          map[string]string        `json:"program"`
	Issuer           map[string]string        `json:"issuer,omitempty"`
	VerificationURL  string                   `json:"verificationUrl"`
}

func (p *Public) verificationOf(c *models.Certificate) verification {
	v := verification{
		Valid:            c.IsValid(),
		CertificateID:    c.CertificateID,
		UserName:         c.UserName,
		Status:           c.Status,
		IssueDate:        c.IssueDate.Format("2006-01-02"),
		VerificationCode: c.VerificationCode,
		Organization:     map[string]string{"name": c.OrganizationName},
		Program:          map[string]string{"name": c.ProgramName},
		VerificationURL:  verifyURL(p.baseURL, c.CertificateID),
	}
	if c.CompletionDate != nil {
		d := c.CompletionDate.Format("2006-01-02")
		v.CompletionDate = &d
	}
	if c.IssuerName != "" {
		v.Issuer = map[string]string{"name": c.IssuerName}
	}
	return v
}

// Verify looks a code up as a certificate ID, then as a verification code.
// Revoked certificates are found but reported with valid=false.
func (p *Public) Verify(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, http.StatusBadRequest, "Certificate ID or verification code is required")
		return
	}

	c, err := p.certStore.Verify(code)
	if err != nil {
		slog.Error("certificate verification failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Certificate not found or invalid")
		return
	}

	slog.Info("certificate verified", "certificate_id", c.CertificateID, "valid", c.IsValid())
	writeJSON(w, http.StatusOK, p.verificationOf(c))
}

// VerifyQR returns a PNG QR code pointing at the verification page.
func (p *Public) VerifyQR(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	c, err := p.certStore.Verify(code)
	if err != nil {
		slog.Error("certificate lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Certificate not found or invalid")
		return
	}

	png, err := qrcode.Encode(verifyURL(p.baseURL, c.CertificateID), qrcode.Medium, qrSize)
	if err != nil {
		slog.Error("qr encode failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	inline(w, "image/png", c.CertificateID+".png", png)
}
