package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Well-known IDs of seeded rows. Seeding upserts by these IDs so it can run
// on every start.
var (
	DefaultTemplateID = uuid.MustParse("00000000-0000-4000-8000-000000000001")
	SampleOrgID       = uuid.MustParse("00000000-0000-4000-8000-000000000002")
	SampleProgramID   = uuid.MustParse("00000000-0000-4000-8000-000000000003")
)

// defaultTemplateElements is a bordered 800x600 certificate with a centered
// stack of title, recipient, program, organization and date.
const defaultTemplateElements = `[
  {"id": "title", "type": "text", "content": "Certificate of Completion", "x": 400, "y": 100, "fontSize": 32, "fontWeight": "bold", "textAlign": "center", "color": "#1f2937"},
  {"id": "subtitle", "type": "text", "content": "This is to certify that", "x": 400, "y": 200, "fontSize": 18, "textAlign": "center", "color": "#4b5563"},
  {"id": "studentName", "type": "dynamic-field", "fieldName": "userName", "content": "{{userName}}", "x": 400, "y": 250, "fontSize": 24, "fontWeight": "bold", "textAlign": "center", "color": "#1f2937"},
  {"id": "programText", "type": "text", "content": "has successfully completed the", "x": 400, "y": 320, "fontSize": 18, "textAlign": "center", "color": "#4b5563"},
  {"id": "programName", "type": "dynamic-field", "fieldName": "programName", "content": "{{programName}}", "x": 400, "y": 350, "fontSize": 20, "fontWeight": "bold", "textAlign": "center", "color": "#1f2937"},
  {"id": "organizationName", "type": "dynamic-field", "fieldName": "organizationName", "content": "{{organizationName}}", "x": 400, "y": 420, "fontSize": 16, "textAlign": "center", "color": "#6b7280"},
  {"id": "date", "type": "dynamic-field", "fieldName": "completionDate", "content": "{{completionDate}}", "x": 400, "y": 480, "fontSize": 14, "textAlign": "center", "color": "#6b7280"},
  {"id": "border", "type": "rectangle", "x": 50, "y": 50, "width": 700, "height": 500, "strokeColor": "#d1d5db", "strokeWidth": 2, "fill": "transparent"}
]`

// Seed populates the database with the administrator account, the default
// certificate template and a sample organization with one program. Existing
// rows are left untouched apart from the admin role, so Seed is safe to run
// on every start.
func Seed(db *sql.DB, adminEmail, adminPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	var adminID uuid.UUID
	err = tx.QueryRow(`
		INSERT INTO users (email, password_hash, display_name, role)
		VALUES ($1, $2, 'Administrator', 'admin')
		ON CONFLICT (email) DO UPDATE SET role = 'admin', updated_at = NOW()
		RETURNING id
	`, adminEmail, string(hash)).Scan(&adminID)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO certificate_templates
			(id, name, description, width, height, background_color, elements, is_default, created_by)
		VALUES ($1, 'Default Certificate Template',
			'A professional certificate template with standard layout',
			800, 600, '#ffffff', $2::jsonb, TRUE, $3)
		ON CONFLICT (id) DO NOTHING
	`, DefaultTemplateID, defaultTemplateElements, adminID); err != nil {
		return fmt.Errorf("seed default template: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO organizations (id, name, description, created_by)
		VALUES ($1, 'Sample Education Institute',
			'A sample organization for demonstration purposes', $2)
		ON CONFLICT (id) DO NOTHING
	`, SampleOrgID, adminID); err != nil {
		return fmt.Errorf("seed sample organization: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO programs (id, name, description, organization_id, created_by)
		VALUES ($1, 'Web Development Fundamentals',
			'Learn the basics of modern web development', $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, SampleProgramID, SampleOrgID, adminID); err != nil {
		return fmt.Errorf("seed sample program: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded", "admin", adminEmail)
	return nil
}
