// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"certforge/internal/models"
)

// Export archive entry names.
const (
	summaryCSVName  = "certificates-summary.csv"
	summaryXLSXName = "certificates-summary.xlsx"
	dataJSONName    = "certificates-data.json"
	filesDir        = "certificates/"
	renderErrorName = "render-errors.txt"
	summarySheet    = "Certificates"
)

// summaryHeader is the column layout shared by the CSV and the workbook.
var summaryHeader = []string{
	"Certificate ID",
	"User Name",
	"User Email",
	"Organization",
	"Program",
	"Template",
	"Issue Date",
	"Completion Date",
	"Verification Code",
	"Status",
}

func isoDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// summaryRow flattens a certificate into summaryHeader order.
func summaryRow(c *models.Certificate) []string {
	tmpl := c.TemplateName
	if tmpl == "" {
		tmpl = "N/A"
	}
	return []string{
		c.CertificateID,
		c.UserName,
		c.Email(),
		c.OrganizationName,
		c.ProgramName,
		tmpl,
		isoDate(&c.IssueDate),
		isoDate(c.CompletionDate),
		c.VerificationCode,
		string(c.Status),
	}
}

// writeSummaryCSV writes the header and one row per certificate.
func writeSummaryCSV(w io.Writer, certs []models.Certificate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range certs {
		if err := cw.Write(summaryRow(&certs[i])); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// summaryWorkbook renders the same table as the CSV into an .xlsx file with
// a bold, frozen header row.
func summaryWorkbook(certs []models.Certificate) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	header := make([]any, len(summaryHeader))
	for i, h := range summaryHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}
	for i := range certs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := summaryRow(&certs[i])
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetRowStyle(summarySheet, 1, 1, bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(summarySheet, "A", "J", 22); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetPanes(summarySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// exportRecord is one entry of certificates-data.json.
type exportRecord struct {
	CertificateID    string     `json:"certificateId"`
	UserName         string     `json:"userName"`
	UserEmail        *string    `json:"userEmail"`
	Organization     string     `json:"organization"`
	Program          string     `json:"program"`
	Template         string     `json:"template,omitempty"`
	IssueDate        time.Time  `json:"issueDate"`
	CompletionDate   *time.Time `json:"completionDate"`
	VerificationCode string     `json:"verificationCode"`
	Status           string     `json:"status"`
}

func exportData(certs []models.Certificate) ([]byte, error) {
	records := make([]exportRecord, len(certs))
	for i, c := range certs {
		records[i] = exportRecord{
			CertificateID:    c.CertificateID,
			UserName:         c.UserName,
			UserEmail:        c.UserEmail,
			Organization:     c.OrganizationName,
			Program:          c.ProgramName,
			Template:         c.TemplateName,
			IssueDate:        c.IssueDate,
			CompletionDate:   c.CompletionDate,
			VerificationCode: c.VerificationCode,
			Status:           string(c.Status),
		}
	}
	return json.MarshalIndent(records, "", "  ")
}

// archiveFile is a rendered certificate to include in the archive.
type archiveFile struct {
	Name string
	Data []byte
}

// buildArchive assembles the export ZIP: summaries first, then rendered
// files under certificates/, then a list of renders that failed.
func buildArchive(certs []models.Certificate, files []archiveFile, renderErrors []string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	add := func(name string, data []byte) error {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		return nil
	}

	var csvBuf bytes.Buffer
	if err := writeSummaryCSV(&csvBuf, certs); err != nil {
		return nil, err
	}
	if err := add(summaryCSVName, csvBuf.Bytes()); err != nil {
		return nil, err
	}

	xlsx, err := summaryWorkbook(certs)
	if err != nil {
		return nil, err
	}
	if err := add(summaryXLSXName, xlsx); err != nil {
		return nil, err
	}

	data, err := exportData(certs)
	if err != nil {
		return nil, fmt.Errorf("encode certificate data: %w", err)
	}
	if err := add(dataJSONName, data); err != nil {
		return nil, err
	}

	for _, f := range files {
		if err := add(filesDir+f.Name, f.Data); err != nil {
			return nil, err
		}
	}
	if len(renderErrors) > 0 {
		var b bytes.Buffer
		for _, line := range renderErrors {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		if err := add(renderErrorName, b.Bytes()); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}
