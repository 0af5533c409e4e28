// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"certforge/internal/models"
)

// ExportLogStore records bulk export runs.
type ExportLogStore struct {
	db *sql.DB
}

// NewExportLogStore creates a new ExportLogStore.
func NewExportLogStore(db *sql.DB) *ExportLogStore {
	return &ExportLogStore{db: db}
}

// Create inserts a pending export entry.
func (s *ExportLogStore) Create(fileName string, filters json.RawMessage, createdBy *uuid.UUID) (*models.ExportLog, error) {
	var raw any
	if len(filters) > 0 {
		raw = string(filters)
	}
	l := &models.ExportLog{FileName: fileName, Status: models.ExportStatusPending, Filters: filters, CreatedBy: createdBy}
	err := s.db.QueryRow(`
		INSERT INTO export_logs (file_name, status, filters, created_by)
		VALUES ($1, 'pending', $2::jsonb, $3)
		RETURNING id, created_at
	`, fileName, raw, createdBy).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create export log: %w", err)
	}
	return l, nil
}

// Complete marks an export finished with the number of certificates and
// the object key of the uploaded archive ("" when not uploaded).
func (s *ExportLogStore) Complete(id uuid.UUID, total int, objectKey string) error {
	_, err := s.db.Exec(`
		UPDATE export_logs
		SET status = 'completed', total_certificates = $1, object_key = $2, completed_at = NOW()
		WHERE id = $3
	`, total, objectKey, id)
	if err != nil {
		return fmt.Errorf("complete export log: %w", err)
	}
	return nil
}

// Fail marks an export failed with the error message.
func (s *ExportLogStore) Fail(id uuid.UUID, reason string) error {
	_, err := s.db.Exec(`
		UPDATE export_logs SET status = 'failed', error = $1, completed_at = NOW() WHERE id = $2
	`, reason, id)
	if err != nil {
		return fmt.Errorf("fail export log: %w", err)
	}
	return nil
}

// List returns the most recent exports, newest first, with creator details.
func (s *ExportLogStore) List(limit int) ([]models.ExportLog, error) {
	rows, err := s.db.Query(`
		SELECT e.id, e.file_name, e.status, e.total_certificates, e.filters, e.object_key,
			e.error, e.created_by, e.created_at, e.completed_at,
			COALESCE(u.display_name, ''), COALESCE(u.email, '')
		FROM export_logs e
		LEFT JOIN users u ON u.id = e.created_by
		ORDER BY e.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list export logs: %w", err)
	}
	defer rows.Close()

	var logs []models.ExportLog
	for rows.Next() {
		var (
			l       models.ExportLog
			filters []byte
		)
		if err := rows.Scan(
			&l.ID, &l.FileName, &l.Status, &l.TotalCertificates, &filters, &l.ObjectKey,
			&l.Error, &l.CreatedBy, &l.CreatedAt, &l.CompletedAt,
			&l.CreatorName, &l.CreatorEmail,
		); err != nil {
			return nil, fmt.Errorf("scan export log: %w", err)
		}
		if len(filters) > 0 {
			l.Filters = filters
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
