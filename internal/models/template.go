// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Canvas defaults applied when a template is created without dimensions.
const (
	DefaultTemplateWidth      = 1123
	DefaultTemplateHeight     = 794
	DefaultTemplateBackground = "#ffffff"
)

// CertificateTemplate is a designed certificate layout. Elements holds the
// designer's element array verbatim; the rendering engine normalizes it.
// Version increases on every update and keys the render caches.
type CertificateTemplate struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Width           float64         `json:"width"`
	Height          float64         `json:"height"`
	BackgroundColor string          `json:"backgroundColor"`
	BackgroundImage string          `json:"backgroundImage"`
	Elements        json.RawMessage `json:"elements"`
	IsDefault       bool            `json:"isDefault"`
	Version         int             `json:"version"`
	CreatedBy       *uuid.UUID      `json:"createdBy,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ApplyDefaults fills in the canvas size and background when unset.
func (t *CertificateTemplate) ApplyDefaults() {
	if t.Width <= 0 {
		t.Width = DefaultTemplateWidth
	}
	if t.Height <= 0 {
		t.Height = DefaultTemplateHeight
	}
	if t.BackgroundColor == "" {
		t.BackgroundColor = DefaultTemplateBackground
	}
	if len(t.Elements) == 0 {
		t.Elements = json.RawMessage("[]")
	}
}
