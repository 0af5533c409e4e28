// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"certforge/internal/models"
)

// CertificateStore handles certificate database operations.
type CertificateStore struct {
	db *sql.DB
}

// NewCertificateStore creates a new CertificateStore.
func NewCertificateStore(db *sql.DB) *CertificateStore {
	return &CertificateStore{db: db}
}

const certificateSelect = `
	SELECT c.id, c.certificate_id, c.user_name, c.user_email, c.completion_date, c.issue_date,
		c.verification_code, c.status, c.organization_id, c.program_id, c.template_id,
		c.issued_by, c.created_at, c.updated_at,
		o.name, p.name, COALESCE(t.name, ''), COALESCE(u.display_name, '')
	FROM certificates c
	JOIN organizations o ON o.id = c.organization_id
	JOIN programs p ON p.id = c.program_id
	LEFT JOIN certificate_templates t ON t.id = c.template_id
	LEFT JOIN users u ON u.id = c.issued_by`

func scanCertificate(row interface{ Scan(...any) error }, c *models.Certificate) error {
	return row.Scan(
		&c.ID, &c.CertificateID, &c.UserName, &c.UserEmail, &c.CompletionDate, &c.IssueDate,
		&c.VerificationCode, &c.Status, &c.OrganizationID, &c.ProgramID, &c.TemplateID,
		&c.IssuedBy, &c.CreatedAt, &c.UpdatedAt,
		&c.OrganizationName, &c.ProgramName, &c.TemplateName, &c.IssuerName,
	)
}

func (s *CertificateStore) query(q string, args ...any) ([]models.Certificate, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var certs []models.Certificate
	for rows.Next() {
		var c models.Certificate
		if err := scanCertificate(rows, &c); err != nil {
			return nil, fmt.Errorf("scan certificate: %w", err)
		}
		certs = append(certs, c)
	}
	return certs, rows.Err()
}

func (s *CertificateStore) findOne(where string, arg any) (*models.Certificate, error) {
	c := &models.Certificate{}
	err := scanCertificate(s.db.QueryRow(certificateSelect+` WHERE `+where, arg), c)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns all certificates newest first with organization, program,
// template and issuer names.
func (s *CertificateStore) List() ([]models.Certificate, error) {
	certs, err := s.query(certificateSelect + ` ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return certs, nil
}

// Recent returns the n most recently created certificates.
func (s *CertificateStore) Recent(n int) ([]models.Certificate, error) {
	certs, err := s.query(certificateSelect+` ORDER BY c.created_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("recent certificates: %w", err)
	}
	return certs, nil
}

// ListForExport returns the certificates matching filter, newest first.
func (s *CertificateStore) ListForExport(filter models.CertificateFilter) ([]models.Certificate, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.OrganizationID != nil {
		add("c.organization_id = $%d", *filter.OrganizationID)
	}
	if filter.ProgramID != nil {
		add("c.program_id = $%d", *filter.ProgramID)
	}
	if filter.Status != nil {
		add("c.status = $%d", string(*filter.Status))
	}

	q := certificateSelect
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	certs, err := s.query(q+` ORDER BY c.created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list certificates for export: %w", err)
	}
	return certs, nil
}

// FindByID retrieves a certificate by its row UUID. Returns nil if not found.
func (s *CertificateStore) FindByID(id uuid.UUID) (*models.Certificate, error) {
	c, err := s.findOne(`c.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("find certificate by id: %w", err)
	}
	return c, nil
}

// FindByCertificateID retrieves a certificate by its printed identifier.
// Returns nil if not found.
func (s *CertificateStore) FindByCertificateID(certID string) (*models.Certificate, error) {
	c, err := s.findOne(`c.certificate_id = $1`, certID)
	if err != nil {
		return nil, fmt.Errorf("find certificate by certificate id: %w", err)
	}
	return c, nil
}

// FindByVerificationCode retrieves a certificate by verification code.
// Returns nil if not found.
func (s *CertificateStore) FindByVerificationCode(code string) (*models.Certificate, error) {
	c, err := s.findOne(`c.verification_code = $1`, code)
	if err != nil {
		return nil, fmt.Errorf("find certificate by verification code: %w", err)
	}
	return c, nil
}

// Verify looks a code up as a certificate identifier first and then as a
// verification code. Returns nil if neither matches.
func (s *CertificateStore) Verify(code string) (*models.Certificate, error) {
	c, err := s.FindByCertificateID(code)
	if err != nil || c != nil {
		return c, err
	}
	return s.FindByVerificationCode(code)
}

// Create inserts a certificate. CertificateID and VerificationCode are
// generated when empty. Returns ErrDuplicate if the certificate identifier
// is taken.
func (s *CertificateStore) Create(c *models.Certificate) (*models.Certificate, error) {
	fillIdentifiers(c)
	var id uuid.UUID
	err := s.db.QueryRow(`
		INSERT INTO certificates
			(certificate_id, user_name, user_email, completion_date, verification_code,
			 organization_id, program_id, template_id, issued_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, c.CertificateID, c.UserName, c.UserEmail, c.CompletionDate, c.VerificationCode,
		c.OrganizationID, c.ProgramID, c.TemplateID, c.IssuedBy,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", translate(err))
	}
	return s.FindByID(id)
}

// CreateMany inserts certificates in one transaction. Either all rows are
// written or none.
func (s *CertificateStore) CreateMany(certs []models.Certificate) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("create certificates begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO certificates
			(certificate_id, user_name, user_email, completion_date, verification_code,
			 organization_id, program_id, template_id, issued_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return 0, fmt.Errorf("create certificates prepare: %w", err)
	}
	defer stmt.Close()

	for i := range certs {
		c := &certs[i]
		fillIdentifiers(c)
		if _, err := stmt.Exec(
			c.CertificateID, c.UserName, c.UserEmail, c.CompletionDate, c.VerificationCode,
			c.OrganizationID, c.ProgramID, c.TemplateID, c.IssuedBy,
		); err != nil {
			return 0, fmt.Errorf("create certificate %d: %w", i+1, translate(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("create certificates commit: %w", err)
	}
	return len(certs), nil
}

func fillIdentifiers(c *models.Certificate) {
	if c.CertificateID == "" {
		c.CertificateID = models.NewCertificateID(time.Now())
	}
	if c.VerificationCode == "" {
		c.VerificationCode = models.NewVerificationCode()
	}
}

// Revoke marks a certificate revoked. Returns false if it does not exist.
func (s *CertificateStore) Revoke(id uuid.UUID) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE certificates SET status = 'revoked', updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return false, fmt.Errorf("revoke certificate: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Delete removes a certificate.
func (s *CertificateStore) Delete(id uuid.UUID) error {
	if _, err := s.db.Exec(`DELETE FROM certificates WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete certificate: %w", err)
	}
	return nil
}

// CountIssued returns the number of certificates that are not revoked.
func (s *CertificateStore) CountIssued() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM certificates WHERE status = 'issued'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count issued certificates: %w", err)
	}
	return n, nil
}
