// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"certforge/internal/models"
	"certforge/internal/store"
)

type programRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	Description    string `json:"description" validate:"max=2000"`
	OrganizationID string `json:"organizationId" validate:"required,uuid"`
}

// bindProgram validates the request and verifies the organization. It writes the
// error response itself and reports whether the caller may continue.
func (a *Admin) bindProgram(w http.ResponseWriter, r *http.Request) (*models.Program, bool) {
	var req programRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	req.Name = cleanText(req.Name)
	req.Description = cleanText(req.Description)
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Name and organization are required")
		return nil, false
	}

	orgID := uuid.MustParse(req.OrganizationID)
	org, err := a.orgStore.FindByID(orgID)
	if err != nil {
		a.internalError(w, "find organization", err)
		return nil, false
	}
	if org == nil {
		writeError(w, http.StatusNotFound, "Organization not found")
		return nil, false
	}
	return &models.Program{
		Name:           req.Name,
		Description:    req.Description,
		OrganizationID: orgID,
	}, true
}

// ProgramsList returns programs, optionally filtered by ?organizationId=.
func (a *Admin) ProgramsList(w http.ResponseWriter, r *http.Request) {
	orgID, err := optionalID(r.URL.Query().Get("organizationId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid organization ID")
		return
	}
	programs, err := a.programStore.List(orgID)
	if err != nil {
		a.internalError(w, "list programs", err)
		return
	}
	if programs == nil {
		programs = []models.Program{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"programs": programs})
}

// ProgramsStats returns the number of programs.
func (a *Admin) ProgramsStats(w http.ResponseWriter, r *http.Request) {
	n, err := a.programStore.Count()
	if err != nil {
		a.internalError(w, "count programs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total": n})
}

// ProgramGet returns one program.
func (a *Admin) ProgramGet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid program ID")
		return
	}
	p, err := a.programStore.FindByID(id)
	if err != nil {
		a.internalError(w, "find program", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Program not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"program": p})
}

// ProgramCreate creates a program under an existing organization.
func (a *Admin) ProgramCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := a.bindProgram(w, r)
	if !ok {
		return
	}
	p.CreatedBy = sessionUserID(r)

	created, err := a.programStore.Create(p)
	if err != nil {
		a.internalError(w, "create program", err)
		return
	}
	slog.Info("program created", "program_id", created.ID, "organization_id", created.OrganizationID)
	writeJSON(w, http.StatusCreated, map[string]any{"program": created})
}

// ProgramUpdate saves a program.
func (a *Admin) ProgramUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid program ID")
		return
	}
	p, ok := a.bindProgram(w, r)
	if !ok {
		return
	}
	p.ID = id

	updated, err := a.programStore.Update(p)
	if err != nil {
		a.internalError(w, "update program", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "Program not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"program": updated})
}

// ProgramDelete removes a program that has no certificates.
func (a *Admin) ProgramDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid program ID")
		return
	}
	if err := a.programStore.Delete(id); err != nil {
		if errors.Is(err, store.ErrInUse) {
			writeError(w, http.StatusBadRequest, "Cannot delete program with existing certificates")
			return
		}
		a.internalError(w, "delete program", err)
		return
	}
	slog.Info("program deleted", "program_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Program deleted successfully"})
}
