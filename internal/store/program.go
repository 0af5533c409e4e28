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

// ProgramStore handles program database operations.
type ProgramStore struct {
	db *sql.DB
}

// NewProgramStore creates a new ProgramStore.
func NewProgramStore(db *sql.DB) *ProgramStore {
	return &ProgramStore{db: db}
}

const programSelect = `
	SELECT p.id, p.name, p.description, p.organization_id, p.created_by, p.created_at, p.updated_at,
		o.name,
		(SELECT COUNT(*) FROM certificates c WHERE c.program_id = p.id)
	FROM programs p
	JOIN organizations o ON o.id = p.organization_id`

func scanProgram(row interface{ Scan(...any) error }, p *models.Program) error {
	return row.Scan(
		&p.ID, &p.Name, &p.Description, &p.OrganizationID, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
		&p.OrganizationName, &p.CertificateCount,
	)
}

// List returns programs newest first. A non-nil orgID restricts the list to
// that organization and orders it by name.
func (s *ProgramStore) List(orgID *uuid.UUID) ([]models.Program, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if orgID != nil {
		rows, err = s.db.Query(programSelect+` WHERE p.organization_id = $1 ORDER BY p.name`, *orgID)
	} else {
		rows, err = s.db.Query(programSelect + ` ORDER BY p.created_at DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	var programs []models.Program
	for rows.Next() {
		var p models.Program
		if err := scanProgram(rows, &p); err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

// FindByID retrieves a program by UUID. Returns nil if not found.
func (s *ProgramStore) FindByID(id uuid.UUID) (*models.Program, error) {
	p := &models.Program{}
	err := scanProgram(s.db.QueryRow(programSelect+` WHERE p.id = $1`, id), p)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find program by id: %w", err)
	}
	return p, nil
}

// FindByName retrieves a program by exact name within an organization.
// Returns nil if not found.
func (s *ProgramStore) FindByName(orgID uuid.UUID, name string) (*models.Program, error) {
	p := &models.Program{}
	err := scanProgram(s.db.QueryRow(
		programSelect+` WHERE p.organization_id = $1 AND p.name = $2 ORDER BY p.created_at LIMIT 1`,
		orgID, name,
	), p)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find program by name: %w", err)
	}
	return p, nil
}

// Resolve finds a program by UUID and, failing that, by name within orgID.
func (s *ProgramStore) Resolve(orgID uuid.UUID, ref string) (*models.Program, error) {
	if id, err := uuid.Parse(ref); err == nil {
		p, err := s.FindByID(id)
		if err != nil || p != nil {
			return p, err
		}
	}
	return s.FindByName(orgID, ref)
}

// Create inserts a new program and returns it with its organization name.
func (s *ProgramStore) Create(p *models.Program) (*models.Program, error) {
	var id uuid.UUID
	err := s.db.QueryRow(`
		INSERT INTO programs (name, description, organization_id, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, p.Name, p.Description, p.OrganizationID, p.CreatedBy).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create program: %w", translate(err))
	}
	return s.FindByID(id)
}

// Update saves name, description and organization. Returns nil if not found.
func (s *ProgramStore) Update(p *models.Program) (*models.Program, error) {
	res, err := s.db.Exec(`
		UPDATE programs SET name = $1, description = $2, organization_id = $3, updated_at = NOW()
		WHERE id = $4
	`, p.Name, p.Description, p.OrganizationID, p.ID)
	if err != nil {
		return nil, fmt.Errorf("update program: %w", translate(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.FindByID(p.ID)
}

// Delete removes a program. Programs with certificates are refused with
// ErrInUse.
func (s *ProgramStore) Delete(id uuid.UUID) error {
	if _, err := s.db.Exec(`DELETE FROM programs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete program: %w", translate(err))
	}
	return nil
}

// Count returns the number of programs.
func (s *ProgramStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM programs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count programs: %w", err)
	}
	return n, nil
}
