// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"certforge/internal/cache"
	"certforge/internal/engine"
	"certforge/internal/models"
	"certforge/internal/storage"
)

const (
	// exportLogLimit is how many export logs the history shows.
	exportLogLimit = 50

	// exportLinkExpiry is how long the presigned archive link stays valid.
	exportLinkExpiry = 24 * time.Hour
)

// exportRequest selects certificates to export. "all" or an empty value
// disables a filter.
type exportRequest struct {
	Organization string `json:"organization"`
	Program      string `json:"program"`
	Status       string `json:"status"`
	IncludeFiles *bool  `json:"includeFiles,omitempty"`
	Format       string `json:"format,omitempty"`
}

func filterValue(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return ""
	}
	return s
}

// filter converts the request into a store filter.
func (req exportRequest) filter() (models.CertificateFilter, error) {
	var f models.CertificateFilter
	var err error
	if f.OrganizationID, err = optionalID(filterValue(req.Organization)); err != nil {
		return f, errors.New("invalid organization filter")
	}
	if f.ProgramID, err = optionalID(filterValue(req.Program)); err != nil {
		return f, errors.New("invalid program filter")
	}
	switch status := models.CertificateStatus(filterValue(req.Status)); status {
	case "":
	case models.CertificateStatusIssued, models.CertificateStatusRevoked:
		f.Status = &status
	default:
		return f, fmt.Errorf("invalid status filter %q", req.Status)
	}
	return f, nil
}

// exportFileName names an archive after its creation time.
func exportFileName(now time.Time) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(now.UTC().Format("2006-01-02T15:04:05.000Z"))
	return "certificates-export-" + ts + ".zip"
}

// ExportBulk builds a ZIP of the certificates matching the filters. Only one
// export runs at a time across all instances.
func (a *Admin) ExportBulk(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	filter, err := req.filter()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	includeFiles := a.cfg.ExportIncludeFiles
	if req.IncludeFiles != nil {
		includeFiles = *req.IncludeFiles
	}
	format := a.cfg.DefaultFormat
	if req.Format != "" {
		if format, err = engine.ParseFormat(req.Format); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if a.exportLock != nil {
		release, err := a.exportLock.Acquire(r.Context())
		if errors.Is(err, cache.ErrExportInProgress) {
			writeError(w, http.StatusConflict, "Another export is already running")
			return
		}
		if err != nil {
			a.internalError(w, "acquire export lock", err)
			return
		}
		defer release()
	}

	certs, err := a.certStore.ListForExport(filter)
	if err != nil {
		a.internalError(w, "list certificates for export", err)
		return
	}
	if len(certs) == 0 {
		writeError(w, http.StatusNotFound, "No certificates found matching the specified filters")
		return
	}

	fileName := exportFileName(time.Now())
	filters, _ := json.Marshal(req)
	exportLog, err := a.exportStore.Create(fileName, filters, sessionUserID(r))
	if err != nil {
		a.internalError(w, "create export log", err)
		return
	}
	start := time.Now()

	archive, err := a.exportArchive(r.Context(), certs, includeFiles, format)
	if err != nil {
		a.failExport(exportLog.ID, err)
		a.internalError(w, "build export archive", err)
		return
	}

	objectKey, link := a.storeExport(r.Context(), fileName, archive)
	if err := a.exportStore.Complete(exportLog.ID, len(certs), objectKey); err != nil {
		slog.Error("complete export log failed", "error", err, "export", exportLog.ID)
	}

	slog.Info("certificates exported",
		"file", fileName,
		"certificates", len(certs),
		"files", includeFiles,
		"bytes", len(archive),
		"duration", time.Since(start),
	)
	if link != "" {
		w.Header().Set("X-Export-URL", link)
	}
	attachment(w, "application/zip", fileName, archive)
}

// exportArchive renders the certificates when requested and builds the ZIP.
// A failed render is listed in the archive and does not abort the export.
func (a *Admin) exportArchive(ctx context.Context, certs []models.Certificate, includeFiles bool, format engine.Format) ([]byte, error) {
	if !includeFiles {
		return buildArchive(certs, nil, nil)
	}

	jobs := make([]engine.Job, 0, len(certs))
	var renderErrors []string
	for i := range certs {
		c := &certs[i]
		tmpl, _, err := a.certificateTemplate(c)
		if err != nil {
			renderErrors = append(renderErrors, c.CertificateID+": "+err.Error())
			continue
		}
		jobs = append(jobs, engine.Job{
			Key:      c.CertificateID,
			Template: tmpl,
			Values:   certificateValues(c, a.cfg.BaseURL),
		})
	}

	results, err := a.engine.RenderBatch(ctx, jobs, format)
	if err != nil {
		return nil, err
	}
	files := make([]archiveFile, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			slog.Warn("export render failed", "certificate_id", res.Key, "error", res.Err)
			renderErrors = append(renderErrors, res.Key+": "+res.Err.Error())
			continue
		}
		files = append(files, archiveFile{Name: res.Key + format.Extension(), Data: res.Data})
	}
	return buildArchive(certs, files, renderErrors)
}

// storeExport uploads the archive to the private bucket when storage is
// configured. Upload failures are logged; the client still receives the
// archive in the response.
func (a *Admin) storeExport(ctx context.Context, fileName string, archive []byte) (key, link string) {
	if a.storageClient == nil {
		return "", ""
	}
	key = storage.ExportKey(fileName)
	bucket := a.storageClient.PrivateBucket()
	if err := a.storageClient.Upload(ctx, bucket, key, "application/zip", bytes.NewReader(archive), int64(len(archive))); err != nil {
		slog.Error("export upload failed", "error", err, "key", key)
		return "", ""
	}
	link, err := a.storageClient.PresignedURL(ctx, bucket, key, exportLinkExpiry)
	if err != nil {
		slog.Warn("export presign failed", "error", err, "key", key)
		return key, ""
	}
	return key, link
}

func (a *Admin) failExport(id uuid.UUID, cause error) {
	if err := a.exportStore.Fail(id, cause.Error()); err != nil {
		slog.Error("fail export log failed", "error", err, "export", id)
	}
}

// ExportLogs returns the most recent exports.
func (a *Admin) ExportLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := a.exportStore.List(exportLogLimit)
	if err != nil {
		a.internalError(w, "list export logs", err)
		return
	}
	if logs == nil {
		logs = []models.ExportLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"exportLogs": logs})
}

// CertificatesBulkDownload returns a CSV summary of every issued
// certificate.
func (a *Admin) CertificatesBulkDownload(w http.ResponseWriter, r *http.Request) {
	issued := models.CertificateStatusIssued
	certs, err := a.certStore.ListForExport(models.CertificateFilter{Status: &issued})
	if err != nil {
		a.internalError(w, "list issued certificates", err)
		return
	}
	var buf bytes.Buffer
	if err := writeSummaryCSV(&buf, certs); err != nil {
		a.internalError(w, "write certificates csv", err)
		return
	}
	attachment(w, "text/csv; charset=utf-8", "certificates.csv", buf.Bytes())
}
