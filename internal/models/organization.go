// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization issues certificates through its programs.
type Organization struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CreatedBy   *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// Populated by list queries only.
	ProgramCount     int       `json:"programCount"`
	CertificateCount int       `json:"certificateCount"`
	Programs         []Program `json:"programs,omitempty"`
}

// Program is a course or track within an organization.
type Program struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	CreatedBy      *uuid.UUID `json:"createdBy,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	// Populated by joined queries only.
	OrganizationName string `json:"organizationName,omitempty"`
	CertificateCount int    `json:"certificateCount"`
}
