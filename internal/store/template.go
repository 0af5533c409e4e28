// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"certforge/internal/models"
)

// ErrDefaultTemplate is returned when deleting the default template.
var ErrDefaultTemplate = errors.New("cannot delete default template")

// TemplateStore handles certificate template database operations.
type TemplateStore struct {
	db *sql.DB
}

// NewTemplateStore creates a new TemplateStore with the given database connection.
func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

const templateColumns = `id, name, description, width, height, background_color, background_image,
	elements, is_default, version, created_by, created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }, t *models.CertificateTemplate) error {
	var elements []byte
	if err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.Width, &t.Height, &t.BackgroundColor, &t.BackgroundImage,
		&elements, &t.IsDefault, &t.Version, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return err
	}
	t.Elements = elements
	return nil
}

// List returns all templates, default first, then newest first.
func (s *TemplateStore) List() ([]models.CertificateTemplate, error) {
	rows, err := s.db.Query(`
		SELECT ` + templateColumns + `
		FROM certificate_templates
		ORDER BY is_default DESC, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []models.CertificateTemplate
	for rows.Next() {
		var t models.CertificateTemplate
		if err := scanTemplate(rows, &t); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// FindByID retrieves a template by its UUID. Returns nil if not found.
func (s *TemplateStore) FindByID(id uuid.UUID) (*models.CertificateTemplate, error) {
	t := &models.CertificateTemplate{}
	err := scanTemplate(s.db.QueryRow(`
		SELECT `+templateColumns+` FROM certificate_templates WHERE id = $1
	`, id), t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find template by id: %w", err)
	}
	return t, nil
}

// FindDefault returns the template flagged as default. Returns nil if none.
func (s *TemplateStore) FindDefault() (*models.CertificateTemplate, error) {
	t := &models.CertificateTemplate{}
	err := scanTemplate(s.db.QueryRow(`
		SELECT `+templateColumns+` FROM certificate_templates
		WHERE is_default ORDER BY created_at LIMIT 1
	`), t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find default template: %w", err)
	}
	return t, nil
}

// Create inserts a new template at version 1. Unset canvas fields take the
// model defaults.
func (s *TemplateStore) Create(t *models.CertificateTemplate) (*models.CertificateTemplate, error) {
	t.ApplyDefaults()
	created := &models.CertificateTemplate{}
	err := scanTemplate(s.db.QueryRow(`
		INSERT INTO certificate_templates
			(name, description, width, height, background_color, background_image, elements, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
		RETURNING `+templateColumns,
		t.Name, t.Description, t.Width, t.Height, t.BackgroundColor, t.BackgroundImage,
		string(t.Elements), t.CreatedBy,
	), created)
	if err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return created, nil
}

// Update saves the template and increments its version. Returns nil if not
// found.
func (s *TemplateStore) Update(t *models.CertificateTemplate) (*models.CertificateTemplate, error) {
	t.ApplyDefaults()
	updated := &models.CertificateTemplate{}
	err := scanTemplate(s.db.QueryRow(`
		UPDATE certificate_templates
		SET name = $1, description = $2, width = $3, height = $4, background_color = $5,
			background_image = $6, elements = $7::jsonb, version = version + 1, updated_at = NOW()
		WHERE id = $8
		RETURNING `+templateColumns,
		t.Name, t.Description, t.Width, t.Height, t.BackgroundColor, t.BackgroundImage,
		string(t.Elements), t.ID,
	), updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return updated, nil
}

// Delete removes a template. The default template cannot be deleted.
// Certificates using the template fall back to the default layout.
func (s *TemplateStore) Delete(id uuid.UUID) error {
	var isDefault bool
	err := s.db.QueryRow(`SELECT is_default FROM certificate_templates WHERE id = $1`, id).Scan(&isDefault)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if isDefault {
		return ErrDefaultTemplate
	}
	if _, err := s.db.Exec(`DELETE FROM certificate_templates WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

// Count returns the number of templates.
func (s *TemplateStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM certificate_templates`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count templates: %w", err)
	}
	return n, nil
}
