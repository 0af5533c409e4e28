// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"certforge/internal/models"
	"certforge/internal/store"
)

const (
	// recentLimit is how many certificates the dashboard shows.
	recentLimit = 10

	// maxCSVSize bounds bulk issue uploads (5 MB).
	maxCSVSize = 5 << 20
)

type certificateRequest struct {
	CertificateID  string `json:"certificateId" validate:"max=100"`
	UserName       string `json:"userName" validate:"max=200"`
	StudentName    string `json:"studentName" validate:"max=200"`
	UserEmail      string `json:"userEmail" validate:"omitempty,email,max=320"`
	CompletionDate string `json:"completionDate"`
	OrganizationID string `json:"organizationId" validate:"required"`
	ProgramID      string `json:"programId" validate:"required"`
	TemplateID     string `json:"templateId"`
}

// dateLayouts are the completion date spellings accepted from forms and CSV.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04",
	"01/02/2006",
	"January 2, 2006",
}

// parseDate parses an optional date. Empty input yields nil.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", s)
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// CertificatesList returns every certificate, newest first.
func (a *Admin) CertificatesList(w http.ResponseWriter, r *http.Request) {
	certs, err := a.certStore.List()
	if err != nil {
		a.internalError(w, "list certificates", err)
		return
	}
	if certs == nil {
		certs = []models.Certificate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"certificates": certs})
}

// CertificatesRecent returns the latest certificates.
func (a *Admin) CertificatesRecent(w http.ResponseWriter, r *http.Request) {
	certs, err := a.certStore.Recent(recentLimit)
	if err != nil {
		a.internalError(w, "list recent certificates", err)
		return
	}
	if certs == nil {
		certs = []models.Certificate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"certificates": certs})
}

// CertificatesStats returns the number of issued certificates.
func (a *Admin) CertificatesStats(w http.ResponseWriter, r *http.Request) {
	n, err := a.certStore.CountIssued()
	if err != nil {
		a.internalError(w, "count certificates", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total": n})
}

// findCertificate loads the {id} certificate, writing 400/404/500 itself.
func (a *Admin) findCertificate(w http.ResponseWriter, r *http.Request) (*models.Certificate, bool) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid certificate ID")
		return nil, false
	}
	c, err := a.certStore.FindByID(id)
	if err != nil {
		a.internalError(w, "find certificate", err)
		return nil, false
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Certificate not found")
		return nil, false
	}
	return c, true
}

// CertificateGet returns one certificate.
func (a *Admin) CertificateGet(w http.ResponseWriter, r *http.Request) {
	c, ok := a.findCertificate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CertificateCreate issues one certificate. Organization and program may be
// given by ID or by name.
func (a *Admin) CertificateCreate(w http.ResponseWriter, r *http.Request) {
	var req certificateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	userName := cleanText(req.UserName)
	if userName == "" {
		userName = cleanText(req.StudentName)
	}
	req.UserEmail = strings.TrimSpace(req.UserEmail)
	if err := validate.Struct(req); err != nil || userName == "" {
		writeError(w, http.StatusBadRequest, "User name, organization, and program are required")
		return
	}

	org, err := a.orgStore.Resolve(strings.TrimSpace(req.OrganizationID))
	if err != nil {
		a.internalError(w, "resolve organization", err)
		return
	}
	if org == nil {
		writeError(w, http.StatusBadRequest, "Organization not found")
		return
	}
	program, err := a.programStore.Resolve(org.ID, strings.TrimSpace(req.ProgramID))
	if err != nil {
		a.internalError(w, "resolve program", err)
		return
	}
	if program == nil || program.OrganizationID != org.ID {
		writeError(w, http.StatusBadRequest, "Program not found")
		return
	}
	templateID, ok := a.checkTemplateID(w, req.TemplateID)
	if !ok {
		return
	}
	completion, err := parseDate(req.CompletionDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid completion date")
		return
	}

	created, err := a.certStore.Create(&models.Certificate{
		CertificateID:  strings.TrimSpace(req.CertificateID),
		UserName:       userName,
		UserEmail:      optionalString(req.UserEmail),
		CompletionDate: completion,
		OrganizationID: org.ID,
		ProgramID:      program.ID,
		TemplateID:     templateID,
		IssuedBy:       sessionUserID(r),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "Certificate ID already exists")
			return
		}
		a.internalError(w, "create certificate", err)
		return
	}
	slog.Info("certificate issued", "certificate_id", created.CertificateID, "program", program.Name)
	writeJSON(w, http.StatusOK, created)
}

// checkTemplateID parses an optional template ID and verifies it exists.
func (a *Admin) checkTemplateID(w http.ResponseWriter, raw string) (*uuid.UUID, bool) {
	id, err := optionalID(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid template ID")
		return nil, false
	}
	if id == nil {
		return nil, true
	}
	t, err := a.templateStore.FindByID(*id)
	if err != nil {
		a.internalError(w, "find template", err)
		return nil, false
	}
	if t == nil {
		writeError(w, http.StatusBadRequest, "Template not found")
		return nil, false
	}
	return id, true
}

// csvRecord is one recipient row of a bulk issue upload.
type csvRecord struct {
	Name           string
	Email          string
	CompletionDate *time.Time
}

// csvColumns maps accepted header spellings to record fields.
var csvColumns = map[string]string{
	"studentname":    "name",
	"name":           "name",
	"username":       "name",
	"studentemail":   "email",
	"email":          "email",
	"useremail":      "email",
	"completiondate": "completionDate",
}

// parseRecipients reads a CSV with a header row. Rows without a name are
// skipped; a malformed completion date fails the whole upload with its line.
func parseRecipients(src io.Reader) ([]csvRecord, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := csvColumns[key]; ok {
			if _, dup := index[field]; !dup {
				index[field] = i
			}
		}
	}
	cell := func(row []string, field string) string {
		i, ok := index[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []csvRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		name := cleanText(cell(row, "name"))
		if name == "" {
			continue
		}
		date, err := parseDate(cell(row, "completionDate"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, csvRecord{Name: name, Email: cell(row, "email"), CompletionDate: date})
	}
	return out, nil
}

// CertificatesBulk issues one certificate per CSV row for a program.
func (a *Admin) CertificatesBulk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCSVSize+1024)
	if err := r.ParseMultipartForm(maxCSVSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 5 MB")
		return
	}
	file, _, err := r.FormFile("file")
	orgRef := strings.TrimSpace(r.FormValue("organizationId"))
	programRef := strings.TrimSpace(r.FormValue("programId"))
	if err != nil || orgRef == "" || programRef == "" {
		writeError(w, http.StatusBadRequest, "File, organization, and program are required")
		return
	}
	defer file.Close()

	org, err := a.orgStore.Resolve(orgRef)
	if err != nil {
		a.internalError(w, "resolve organization", err)
		return
	}
	if org == nil {
		writeError(w, http.StatusBadRequest, "Organization not found")
		return
	}
	program, err := a.programStore.Resolve(org.ID, programRef)
	if err != nil {
		a.internalError(w, "resolve program", err)
		return
	}
	if program == nil || program.OrganizationID != org.ID {
		writeError(w, http.StatusBadRequest, "Program not found")
		return
	}
	templateID, ok := a.checkTemplateID(w, r.FormValue("templateId"))
	if !ok {
		return
	}

	records, err := parseRecipients(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusBadRequest, "No valid student records found in CSV")
		return
	}

	issuer := sessionUserID(r)
	certs := make([]models.Certificate, len(records))
	for i, rec := range records {
		certs[i] = models.Certificate{
			UserName:       rec.Name,
			UserEmail:      optionalString(rec.Email),
			CompletionDate: rec.CompletionDate,
			OrganizationID: org.ID,
			ProgramID:      program.ID,
			TemplateID:     templateID,
			IssuedBy:       issuer,
		}
	}
	n, err := a.certStore.CreateMany(certs)
	if err != nil {
		a.internalError(w, "bulk create certificates", err)
		return
	}

	slog.Info("certificates issued in bulk", "count", n, "program", program.Name)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Successfully created %d certificates", n),
		"count":   n,
	})
}

// CertificateRevoke marks a certificate revoked. Verification reports it
// as invalid from then on.
func (a *Admin) CertificateRevoke(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid certificate ID")
		return
	}
	found, err := a.certStore.Revoke(id)
	if err != nil {
		a.internalError(w, "revoke certificate", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Certificate not found")
		return
	}
	a.invalidateCertificate(r.Context(), id, "revoke")
	slog.Info("certificate revoked", "id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Certificate revoked successfully"})
}

// CertificateDelete removes a certificate.
func (a *Admin) CertificateDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid certificate ID")
		return
	}
	if err := a.certStore.Delete(id); err != nil {
		a.internalError(w, "delete certificate", err)
		return
	}
	a.invalidateCertificate(r.Context(), id, "delete")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Certificate deleted successfully"})
}
