// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"errors"
	"testing"
	"time"

	"certforge/internal/models"
)

func TestCertificateStoreCreateAndLookup(t *testing.T) {
	db := testDB(t)
	s := NewCertificateStore(db)
	org, prog := fixture(t, db)

	email := "ada@example.com"
	done := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	cert, err := s.Create(&models.Certificate{
		UserName:       "Ada Lovelace",
		UserEmail:      &email,
		CompletionDate: &done,
		OrganizationID: org.ID,
		ProgramID:      prog.ID,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if cert.CertificateID == "" || len(cert.VerificationCode) != 12 {
		t.Errorf("identifiers: certificateId=%q code=%q", cert.CertificateID, cert.VerificationCode)
	}
	if cert.Status != models.CertificateStatusIssued {
		t.Errorf("status: got %q, want issued", cert.Status)
	}
	if cert.OrganizationName != org.Name || cert.ProgramName != prog.Name {
		t.Errorf("joined names: got %q / %q", cert.OrganizationName, cert.ProgramName)
	}
	if cert.CompletionDate == nil || !cert.CompletionDate.Equal(done) {
		t.Errorf("completion date: got %v, want %v", cert.CompletionDate, done)
	}

	for name, lookup := range map[string]func() (*models.Certificate, error){
		"by certificate id":     func() (*models.Certificate, error) { return s.FindByCertificateID(cert.CertificateID) },
		"by verification code":  func() (*models.Certificate, error) { return s.FindByVerificationCode(cert.VerificationCode) },
		"verify certificate id": func() (*models.Certificate, error) { return s.Verify(cert.CertificateID) },
		"verify with code":      func() (*models.Certificate, error) { return s.Verify(cert.VerificationCode) },
	} {
		t.Run(name, func(t *testing.T) {
			got, err := lookup()
			if err != nil || got == nil || got.ID != cert.ID {
				t.Errorf("got %v, %v", got, err)
			}
		})
	}

	if got, _ := s.Verify("NOPE-NOT-REAL"); got != nil {
		t.Error("Verify(unknown) should return nil")
	}

	// Explicit identifiers must be unique.
	_, err = s.Create(&models.Certificate{
		CertificateID: cert.CertificateID, UserName: "Copy", OrganizationID: org.ID, ProgramID: prog.ID,
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate certificate id: got %v, want ErrDuplicate", err)
	}
}

func TestCertificateStoreRevokeAndCount(t *testing.T) {
	db := testDB(t)
	s := NewCertificateStore(db)
	org, prog := fixture(t, db)

	cert, err := s.Create(&models.Certificate{UserName: "Grace", OrganizationID: org.ID, ProgramID: prog.ID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	before, err := s.CountIssued()
	if err != nil {
		t.Fatalf("CountIssued: %v", err)
	}

	ok, err := s.Revoke(cert.ID)
	if err != nil || !ok {
		t.Fatalf("Revoke: %v, %v", ok, err)
	}
	after, _ := s.CountIssued()
	if after != before-1 {
		t.Errorf("CountIssued after revoke: got %d, want %d", after, before-1)
	}

	got, _ := s.FindByID(cert.ID)
	if got.IsValid() {
		t.Error("revoked certificate should not be valid")
	}

	ok, err = s.Revoke(org.ID)
	if err != nil || ok {
		t.Errorf("Revoke(unknown): %v, %v", ok, err)
	}
}

func TestCertificateStoreCreateManyAndExportFilter(t *testing.T) {
	db := testDB(t)
	s := NewCertificateStore(db)
	org, prog := fixture(t, db)

	batch := []models.Certificate{
		{UserName: "One", OrganizationID: org.ID, ProgramID: prog.ID},
		{UserName: "Two", OrganizationID: org.ID, ProgramID: prog.ID},
		{UserName: "Three", OrganizationID: org.ID, ProgramID: prog.ID},
	}
	n, err := s.CreateMany(batch)
	if err != nil || n != 3 {
		t.Fatalf("CreateMany: %d, %v", n, err)
	}

	all, err := s.ListForExport(models.CertificateFilter{OrganizationID: &org.ID})
	if err != nil || len(all) != 3 {
		t.Fatalf("ListForExport(org): %d, %v", len(all), err)
	}
	if _, err := s.Revoke(all[0].ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	revoked := models.CertificateStatusRevoked
	onlyRevoked, err := s.ListForExport(models.CertificateFilter{
		OrganizationID: &org.ID, ProgramID: &prog.ID, Status: &revoked,
	})
	if err != nil || len(onlyRevoked) != 1 || onlyRevoked[0].ID != all[0].ID {
		t.Errorf("ListForExport(revoked): %d, %v", len(onlyRevoked), err)
	}

	recent, err := s.Recent(2)
	if err != nil || len(recent) != 2 {
		t.Errorf("Recent(2): %d, %v", len(recent), err)
	}

	// A failing row rolls back the whole batch.
	dup := []models.Certificate{
		{CertificateID: "CERT-DUP-" + org.ID.String()[:8], UserName: "A", OrganizationID: org.ID, ProgramID: prog.ID},
		{CertificateID: "CERT-DUP-" + org.ID.String()[:8], UserName: "B", OrganizationID: org.ID, ProgramID: prog.ID},
	}
	if _, err := s.CreateMany(dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("CreateMany duplicate: got %v, want ErrDuplicate", err)
	}
	if c, _ := s.FindByCertificateID(dup[0].CertificateID); c != nil {
		t.Error("failed batch should not leave rows behind")
	}
}
