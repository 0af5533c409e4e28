// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"certforge/internal/cache"
	"certforge/internal/engine"
	"certforge/internal/models"
)

// --- CSV parsing ---

func TestParseRecipients(t *testing.T) {
	src := "studentName,studentEmail,completionDate\n" +
		"Ada Lovelace,ada@example.com,2025-03-14\n" +
		",nobody@example.com,\n" +
		"  Charles Babbage ,,\n"

	got, err := parseRecipients(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parseRecipients: %v", err)
	}
	done := time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)
	want := []csvRecord{
		{Name: "Ada Lovelace", Email: "ada@example.com", CompletionDate: &done},
		{Name: "Charles Babbage"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRecipients_AlternateHeaders(t *testing.T) {
	src := "\ufeffName,Email\nGrace Hopper,grace@example.com\n"
	got, err := parseRecipients(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parseRecipients: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Grace Hopper" || got[0].Email != "grace@example.com" {
		t.Errorf("records = %+v", got)
	}
}

func TestParseRecipients_BadDate(t *testing.T) {
	src := "name,completionDate\nAda,not-a-date\n"
	_, err := parseRecipients(strings.NewReader(src))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("err = %v, want line 2 error", err)
	}
}

func TestParseRecipients_Empty(t *testing.T) {
	got, err := parseRecipients(strings.NewReader(""))
	if err != nil || got != nil {
		t.Errorf("parseRecipients(empty) = %v, %v", got, err)
	}
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2025-03-14", "2025-03-14T00:00:00Z", "03/14/2025", "March 14, 2025"} {
		d, err := parseDate(in)
		if err != nil {
			t.Errorf("parseDate(%q): %v", in, err)
			continue
		}
		if d.Year() != 2025 || d.Month() != time.March || d.Day() != 14 {
			t.Errorf("parseDate(%q) = %v", in, d)
		}
	}
	if d, err := parseDate(""); d != nil || err != nil {
		t.Errorf("parseDate(empty) = %v, %v", d, err)
	}
}

// --- Field values ---

func TestCertificateValues(t *testing.T) {
	issued := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)
	c := &models.Certificate{
		CertificateID:    "CERT-9",
		UserName:         "Jane Smith",
		IssueDate:        issued,
		VerificationCode: "CODE12345678",
		OrganizationName: "Acme",
		ProgramName:      "Welding",
	}

	v := certificateValues(c, "https://certs.example.com/")
	if v["completionDate"] != "June 2, 2025" {
		t.Errorf("completionDate fallback = %q", v["completionDate"])
	}
	if v["userEmail"] != "" {
		t.Errorf("userEmail = %q, want empty", v["userEmail"])
	}
	if v["verificationUrl"] != "https://certs.example.com/verify?code=CERT-9" {
		t.Errorf("verificationUrl = %q", v["verificationUrl"])
	}

	done := time.Date(2025, time.May, 30, 0, 0, 0, 0, time.UTC)
	c.CompletionDate = &done
	if got := certificateValues(c, "")["completionDate"]; got != "May 30, 2025" {
		t.Errorf("completionDate = %q", got)
	}
}

func TestCertificateValues_FillTemplate(t *testing.T) {
	c := &models.Certificate{
		CertificateID: "CERT-1",
		UserName:      "Ada",
		ProgramName:   "Engines",
		IssueDate:     time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC),
	}
	got := engine.Resolve("{{userName}} completed {{programName}} on {{date}}",
		engine.WithAliases(certificateValues(c, "")))
	if got != "Ada completed Engines on January 5, 2025" {
		t.Errorf("resolved = %q", got)
	}
}

// --- Integration ---

func TestCertificateCreate_ResolvesByName(t *testing.T) {
	env := newTestEnv(t)
	org, prog := fixture(t, env)
	sess := adminSession(t, env.DB)

	req := jsonRequest(t, http.MethodPost, "/api/certificates", map[string]string{
		"studentName":    "Ada Lovelace",
		"userEmail":      "ada@example.com",
		"completionDate": "2025-03-14",
		"organizationId": org.Name,
		"programId":      prog.Name,
	}, sess)
	rec := httptest.NewRecorder()
	env.Admin.CertificateCreate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["userName"] != "Ada Lovelace" || body["organizationId"] != org.ID.String() {
		t.Errorf("body = %v", body)
	}
	if id, _ := body["certificateId"].(string); !strings.HasPrefix(id, "CERT-") {
		t.Errorf("certificateId = %v", body["certificateId"])
	}
}

func TestCertificateCreate_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	req := jsonRequest(t, http.MethodPost, "/api/certificates", map[string]string{
		"userName": "Nobody",
	}, adminSession(t, env.DB))
	rec := httptest.NewRecorder()
	env.Admin.CertificateCreate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCertificateCreate_UnknownProgram(t *testing.T) {
	env := newTestEnv(t)
	org, _ := fixture(t, env)

	req := jsonRequest(t, http.MethodPost, "/api/certificates", map[string]string{
		"userName":       "Ada",
		"organizationId": org.ID.String(),
		"programId":      "No Such Program",
	}, adminSession(t, env.DB))
	rec := httptest.NewRecorder()
	env.Admin.CertificateCreate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if msg := decodeBody(t, rec)["message"]; msg != "Program not found" {
		t.Errorf("message = %v", msg)
	}
}

func TestCertificatesBulk_CreatesRows(t *testing.T) {
	env := newTestEnv(t)
	org, prog := fixture(t, env)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "students.csv")
	fw.Write([]byte("studentName,studentEmail\nAda,ada@example.com\nCharles,\n,skip@example.com\n"))
	mw.WriteField("organizationId", org.ID.String())
	mw.WriteField("programId", prog.ID.String())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/certificates/bulk", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = req.WithContext(ctxWithSession(req.Context(), adminSession(t, env.DB)))
	rec := httptest.NewRecorder()
	env.Admin.CertificatesBulk(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["count"]; got != float64(2) {
		t.Errorf("count = %v, want 2", got)
	}
}

func TestCertificateRevoke_VerifyReportsInvalid(t *testing.T) {
	env := newTestEnv(t)
	org, prog := fixture(t, env)
	cert, err := env.CertStore.Create(&models.Certificate{
		UserName: "Ada", OrganizationID: org.ID, ProgramID: prog.ID,
	})
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	req := withChiURLParamAndSession(
		httptest.NewRequest(http.MethodPost, "/api/certificates/"+cert.ID.String()+"/revoke", nil),
		"id", cert.ID.String(), adminSession(t, env.DB))
	rec := httptest.NewRecorder()
	env.Admin.CertificateRevoke(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("revoke status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	env.Public.Verify(rec, httptest.NewRequest(http.MethodGet, "/api/certificates/verify?code="+cert.VerificationCode, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["valid"] != false || body["status"] != "revoked" {
		t.Errorf("verify body = %v", body)
	}
}

func TestCertificateRevoke_NotFound(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.NewString()
	req := withChiURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "id", id)
	rec := httptest.NewRecorder()
	env.Admin.CertificateRevoke(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCertificateDownload_CachesRender(t *testing.T) {
	env := newTestEnv(t)
	org, prog := fixture(t, env)
	cert, err := env.CertStore.Create(&models.Certificate{
		UserName: "Ada", OrganizationID: org.ID, ProgramID: prog.ID,
	})
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	download := func() *httptest.ResponseRecorder {
		req := withChiURLParam(
			httptest.NewRequest(http.MethodGet, "/api/certificates/"+cert.ID.String()+"/download?format=png", nil),
			"id", cert.ID.String())
		rec := httptest.NewRecorder()
		env.Admin.CertificateDownload(rec, req)
		return rec
	}

	first := download()
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", first.Code, first.Body.String())
	}
	if ct := first.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(first.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}

	if _, ok := env.RenderCache.Get(t.Context(), cache.RenderKey(cert.ID, nil, defaultLayoutVersion, string(engine.FormatPNG))); !ok {
		t.Error("render was not cached")
	}
	second := download()
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Error("cached render differs from the first render")
	}
}

func TestCertificateDownload_BadFormat(t *testing.T) {
	env := newTestEnv(t)
	org, prog := fixture(t, env)
	cert, err := env.CertStore.Create(&models.Certificate{
		UserName: "Ada", OrganizationID: org.ID, ProgramID: prog.ID,
	})
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	req := withChiURLParam(
		httptest.NewRequest(http.MethodGet, "/x?format=docx", nil), "id", cert.ID.String())
	rec := httptest.NewRecorder()
	env.Admin.CertificateDownload(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
