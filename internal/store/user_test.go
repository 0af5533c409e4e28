// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"certforge/internal/models"
)

func TestUserStoreCreate(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)

	email := "test-create@store-test.local"
	t.Cleanup(func() { cleanUsers(t, db, email) })

	user, err := s.Create(email, "testpass123", "Test User", models.RoleAdmin)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if user.ID == uuid.Nil {
		t.Error("expected non-nil UUID")
	}
	if user.Email != email {
		t.Errorf("email: got %q, want %q", user.Email, email)
	}
	if user.Role != models.RoleAdmin {
		t.Errorf("role: got %q, want %q", user.Role, models.RoleAdmin)
	}
	if user.PasswordHash == "" || user.PasswordHash == "testpass123" {
		t.Error("expected a bcrypt password hash")
	}

	// Same email again.
	if _, err := s.Create(email, "x", "Dup", models.RoleUser); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate create: got %v, want ErrDuplicate", err)
	}
}

func TestUserStoreFind(t *testing.T) {
	db := testDB(t)
	s := NewUserStore(db)

	email := "test-find@store-test.local"
	t.Cleanup(func() { cleanUsers(t, db, email) })

	// Not found case.
	user, err := s.FindByEmail(email)
	if err != nil {
		t.Fatalf("FindByEmail (not found): %v", err)
	}
	if user != nil {
		t.Fatal("expected nil for unknown email")
	}

	created, err := s.Create(email, "secret-pass", "Finder", models.RoleUser)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	byEmail, err := s.FindByEmail(email)
	if err != nil || byEmail == nil {
		t.Fatalf("FindByEmail: %v, %v", byEmail, err)
	}
	byID, err := s.FindByID(created.ID)
	if err != nil || byID == nil {
		t.Fatalf("FindByID: %v, %v", byID, err)
	}
	if byID.Email != email {
		t.Errorf("FindByID email: got %q, want %q", byID.Email, email)
	}

	if !s.CheckPassword(byEmail, "secret-pass") {
		t.Error("CheckPassword rejected the correct password")
	}
	if s.CheckPassword(byEmail, "wrong") {
		t.Error("CheckPassword accepted a wrong password")
	}
}
