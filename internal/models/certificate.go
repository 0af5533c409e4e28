// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CertificateStatus is the lifecycle state of an issued certificate.
type CertificateStatus string

const (
	CertificateStatusIssued  CertificateStatus = "issued"
	CertificateStatusRevoked CertificateStatus = "revoked"
)

// Certificate is an issued credential. CertificateID is the human-facing
// identifier printed on the certificate; VerificationCode is the short code
// used by the public verification endpoint.
type Certificate struct {
	ID               uuid.UUID         `json:"id"`
	CertificateID    string            `json:"certificateId"`
	UserName         string            `json:"userName"`
	UserEmail        *string           `json:"userEmail"`
	CompletionDate   *time.Time        `json:"completionDate"`
	IssueDate        time.Time         `json:"issueDate"`
	VerificationCode string            `json:"verificationCode"`
	Status           CertificateStatus `json:"status"`
	OrganizationID   uuid.UUID         `json:"organizationId"`
	ProgramID        uuid.UUID         `json:"programId"`
	TemplateID       *uuid.UUID        `json:"templateId"`
	IssuedBy         *uuid.UUID        `json:"issuedBy,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`

	// Populated by joined queries only.
	OrganizationName string `json:"organizationName,omitempty"`
	ProgramName      string `json:"programName,omitempty"`
	TemplateName     string `json:"templateName,omitempty"`
	IssuerName       string `json:"issuerName,omitempty"`
}

// IsValid reports whether the certificate has not been revoked.
func (c *Certificate) IsValid() bool {
	return c.Status == CertificateStatusIssued
}

// Email returns the recipient email or "" when none was recorded.
func (c *Certificate) Email() string {
	if c.UserEmail == nil {
		return ""
	}
	return *c.UserEmail
}

// NewVerificationCode returns a 12 character upper-case hex code.
func NewVerificationCode() string {
	id := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:12])
}

// NewCertificateID returns a "CERT-<unix millis>-<random>" identifier.
func NewCertificateID(now time.Time) string {
	var b [5]byte
	_, _ = rand.Read(b[:])
	return fmt.Sprintf("CERT-%d-%x", now.UnixMilli(), b)
}

// CertificateFilter narrows certificate listings. Nil fields match all.
type CertificateFilter struct {
	OrganizationID *uuid.UUID
	ProgramID      *uuid.UUID
	Status         *CertificateStatus
}
