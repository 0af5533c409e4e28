// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"certforge/internal/models"
)

func sampleCertificates() []models.Certificate {
	email := "ada@example.com"
	done := time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)
	return []models.Certificate{
		{
			CertificateID:    "CERT-1",
			UserName:         "Ada Lovelace",
			UserEmail:        &email,
			CompletionDate:   &done,
			IssueDate:        time.Date(2025, time.March, 15, 9, 30, 0, 0, time.UTC),
			VerificationCode: "ABCDEF123456",
			Status:           models.CertificateStatusIssued,
			OrganizationName: "Analytical Society",
			ProgramName:      "Engines 101",
			TemplateName:     "Classic",
		},
		{
			CertificateID:    "CERT-2",
			UserName:         "Charles, \"Babbage\"",
			IssueDate:        time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
			VerificationCode: "0123456789AB",
			Status:           models.CertificateStatusRevoked,
			OrganizationName: "Analytical Society",
			ProgramName:      "Engines 101",
		},
	}
}

// readZip returns the archive entries by name.
func readZip(t *testing.T, data []byte) (map[string][]byte, []string) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	files := make(map[string][]byte)
	var names []string
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		files[f.Name] = b
		names = append(names, f.Name)
	}
	return files, names
}

// --- Summary rows ---

func TestSummaryRow(t *testing.T) {
	certs := sampleCertificates()

	want := []string{
		"CERT-1", "Ada Lovelace", "ada@example.com", "Analytical Society", "Engines 101",
		"Classic", "2025-03-15", "2025-03-14", "ABCDEF123456", "issued",
	}
	if diff := cmp.Diff(want, summaryRow(&certs[0])); diff != "" {
		t.Errorf("summaryRow mismatch (-want +got):\n%s", diff)
	}

	row := summaryRow(&certs[1])
	if row[2] != "" || row[5] != "N/A" || row[7] != "" {
		t.Errorf("missing values not defaulted: %q", row)
	}
}

func TestWriteSummaryCSV_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSummaryCSV(&buf, sampleCertificates()); err != nil {
		t.Fatalf("writeSummaryCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if diff := cmp.Diff(summaryHeader, rows[0]); diff != "" {
		t.Errorf("header mismatch:\n%s", diff)
	}
	if rows[2][1] != `Charles, "Babbage"` {
		t.Errorf("quoted name = %q", rows[2][1])
	}
}

func TestSummaryWorkbook(t *testing.T) {
	data, err := summaryWorkbook(sampleCertificates())
	if err != nil {
		t.Fatalf("summaryWorkbook: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(summarySheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "Certificate ID" || rows[1][0] != "CERT-1" || rows[2][9] != "revoked" {
		t.Errorf("unexpected cells: %v", rows)
	}
}

// --- Archive ---

func TestBuildArchive_SummariesOnly(t *testing.T) {
	data, err := buildArchive(sampleCertificates(), nil, nil)
	if err != nil {
		t.Fatalf("buildArchive: %v", err)
	}
	files, names := readZip(t, data)

	want := []string{summaryCSVName, summaryXLSXName, dataJSONName}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}

	var records []exportRecord
	if err := json.Unmarshal(files[dataJSONName], &records); err != nil {
		t.Fatalf("decode data json: %v", err)
	}
	if len(records) != 2 || records[0].Organization != "Analytical Society" || records[1].UserEmail != nil {
		t.Errorf("records = %+v", records)
	}
}

func TestBuildArchive_WithFilesAndErrors(t *testing.T) {
	rendered := []archiveFile{{Name: "CERT-1.png", Data: []byte("png-bytes")}}
	data, err := buildArchive(sampleCertificates(), rendered, []string{"CERT-2: boom"})
	if err != nil {
		t.Fatalf("buildArchive: %v", err)
	}
	files, _ := readZip(t, data)

	if got := string(files["certificates/CERT-1.png"]); got != "png-bytes" {
		t.Errorf("rendered file = %q", got)
	}
	if got := string(files[renderErrorName]); got != "CERT-2: boom\n" {
		t.Errorf("render errors = %q", got)
	}
}
