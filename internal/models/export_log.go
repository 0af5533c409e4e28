// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExportStatus tracks a bulk export.
type ExportStatus string

const (
	ExportStatusPending   ExportStatus = "pending"
	ExportStatusCompleted ExportStatus = "completed"
	ExportStatusFailed    ExportStatus = "failed"
)

// ExportLog records one bulk export run.
type ExportLog struct {
	ID                uuid.UUID       `json:"id"`
	FileName          string          `json:"fileName"`
	Status            ExportStatus    `json:"status"`
	TotalCertificates int             `json:"totalCertificates"`
	Filters           json.RawMessage `json:"filters"`
	ObjectKey         string          `json:"objectKey,omitempty"`
	Error             string          `json:"error,omitempty"`
	CreatedBy         *uuid.UUID      `json:"createdBy,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	CompletedAt       *time.Time      `json:"completedAt"`

	// Populated by List only.
	CreatorName  string `json:"creatorName,omitempty"`
	CreatorEmail string `json:"creatorEmail,omitempty"`
}
