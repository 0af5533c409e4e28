// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"certforge/internal/models"
)

// OrganizationStore handles organization database operations.
type OrganizationStore struct {
	db *sql.DB
}

// NewOrganizationStore creates a new OrganizationStore.
func NewOrganizationStore(db *sql.DB) *OrganizationStore {
	return &OrganizationStore{db: db}
}

const orgColumns = `o.id, o.name, o.description, o.created_by, o.created_at, o.updated_at`

func scanOrganization(row interface{ Scan(...any) error }, o *models.Organization, extra ...any) error {
	return row.Scan(append([]any{
		&o.ID, &o.Name, &o.Description, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt,
	}, extra...)...)
}

// List returns all organizations, newest first, with program and
// certificate counts.
func (s *OrganizationStore) List() ([]models.Organization, error) {
	rows, err := s.db.Query(`
		SELECT ` + orgColumns + `,
			(SELECT COUNT(*) FROM programs p WHERE p.organization_id = o.id),
			(SELECT COUNT(*) FROM certificates c WHERE c.organization_id = o.id)
		FROM organizations o
		ORDER BY o.created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []models.Organization
	for rows.Next() {
		var o models.Organization
		if err := scanOrganization(rows, &o, &o.ProgramCount, &o.CertificateCount); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// ListWithPrograms returns organizations ordered by name, each with its
// programs ordered by name.
func (s *OrganizationStore) ListWithPrograms() ([]models.Organization, error) {
	rows, err := s.db.Query(`
		SELECT ` + orgColumns + `,
			p.id, p.name, p.description, p.created_by, p.created_at, p.updated_at
		FROM organizations o
		LEFT JOIN programs p ON p.organization_id = o.id
		ORDER BY o.name, o.id, p.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list organizations with programs: %w", err)
	}
	defer rows.Close()

	var orgs []models.Organization
	for rows.Next() {
		var (
			o        models.Organization
			pID      *uuid.UUID
			pName    sql.NullString
			pDesc    sql.NullString
			pCreator *uuid.UUID
			pCreated sql.NullTime
			pUpdated sql.NullTime
		)
		if err := scanOrganization(rows, &o, &pID, &pName, &pDesc, &pCreator, &pCreated, &pUpdated); err != nil {
			return nil, fmt.Errorf("scan organization with programs: %w", err)
		}
		if n := len(orgs); n == 0 || orgs[n-1].ID != o.ID {
			o.Programs = []models.Program{}
			orgs = append(orgs, o)
		}
		if pID == nil {
			continue
		}
		last := &orgs[len(orgs)-1]
		last.Programs = append(last.Programs, models.Program{
			ID:               *pID,
			Name:             pName.String,
			Description:      pDesc.String,
			OrganizationID:   o.ID,
			OrganizationName: o.Name,
			CreatedBy:        pCreator,
			CreatedAt:        pCreated.Time,
			UpdatedAt:        pUpdated.Time,
		})
		last.ProgramCount = len(last.Programs)
	}
	return orgs, rows.Err()
}

// FindByID retrieves an organization by UUID. Returns nil if not found.
func (s *OrganizationStore) FindByID(id uuid.UUID) (*models.Organization, error) {
	o := &models.Organization{}
	err := scanOrganization(s.db.QueryRow(`
		SELECT `+orgColumns+` FROM organizations o WHERE o.id = $1
	`, id), o)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find organization by id: %w", err)
	}
	return o, nil
}

// FindByName retrieves the oldest organization with the exact name.
// Returns nil if not found.
func (s *OrganizationStore) FindByName(name string) (*models.Organization, error) {
	o := &models.Organization{}
	err := scanOrganization(s.db.QueryRow(`
		SELECT `+orgColumns+` FROM organizations o
		WHERE o.name = $1 ORDER BY o.created_at LIMIT 1
	`, name), o)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find organization by name: %w", err)
	}
	return o, nil
}

// Resolve finds an organization by UUID and, failing that, by name. The
// certificate forms accept either.
func (s *OrganizationStore) Resolve(ref string) (*models.Organization, error) {
	if id, err := uuid.Parse(ref); err == nil {
		o, err := s.FindByID(id)
		if err != nil || o != nil {
			return o, err
		}
	}
	return s.FindByName(ref)
}

// Create inserts a new organization.
func (s *OrganizationStore) Create(o *models.Organization) (*models.Organization, error) {
	created := &models.Organization{}
	err := scanOrganization(s.db.QueryRow(`
		INSERT INTO organizations AS o (name, description, created_by)
		VALUES ($1, $2, $3)
		RETURNING `+orgColumns,
		o.Name, o.Description, o.CreatedBy,
	), created)
	if err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}
	return created, nil
}

// Update saves the name and description. Returns nil if not found.
func (s *OrganizationStore) Update(o *models.Organization) (*models.Organization, error) {
	updated := &models.Organization{}
	err := scanOrganization(s.db.QueryRow(`
		UPDATE organizations AS o SET name = $1, description = $2, updated_at = NOW()
		WHERE o.id = $3
		RETURNING `+orgColumns,
		o.Name, o.Description, o.ID,
	), updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update organization: %w", err)
	}
	return updated, nil
}

// Delete removes an organization and its programs. Organizations that have
// issued certificates are refused with ErrInUse.
func (s *OrganizationStore) Delete(id uuid.UUID) error {
	if _, err := s.db.Exec(`DELETE FROM organizations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete organization: %w", translate(err))
	}
	return nil
}

// Count returns the number of organizations.
func (s *OrganizationStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM organizations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count organizations: %w", err)
	}
	return n, nil
}
