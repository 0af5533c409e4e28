// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"certforge/internal/models"
	"certforge/internal/store"
)

type organizationRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

func (req *organizationRequest) clean() {
	req.Name = cleanText(req.Name)
	req.Description = cleanText(req.Description)
}

// OrganizationsList returns all organizations with their counts.
func (a *Admin) OrganizationsList(w http.ResponseWriter, r *http.Request) {
	orgs, err := a.orgStore.List()
	if err != nil {
		a.internalError(w, "list organizations", err)
		return
	}
	if orgs == nil {
		orgs = []models.Organization{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

// OrganizationsWithPrograms returns organizations with their programs
// nested, for the certificate issue form.
func (a *Admin) OrganizationsWithPrograms(w http.ResponseWriter, r *http.Request) {
	orgs, err := a.orgStore.ListWithPrograms()
	if err != nil {
		a.internalError(w, "list organizations with programs", err)
		return
	}
	if orgs == nil {
		orgs = []models.Organization{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

// OrganizationGet returns one organization.
func (a *Admin) OrganizationGet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid organization ID")
		return
	}
	org, err := a.orgStore.FindByID(id)
	if err != nil {
		a.internalError(w, "find organization", err)
		return
	}
	if org == nil {
		writeError(w, http.StatusNotFound, "Organization not found")
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// OrganizationCreate creates an organization.
func (a *Admin) OrganizationCreate(w http.ResponseWriter, r *http.Request) {
	var req organizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.clean()
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Organization name is required")
		return
	}

	org, err := a.orgStore.Create(&models.Organization{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   sessionUserID(r),
	})
	if err != nil {
		a.internalError(w, "create organization", err)
		return
	}
	slog.Info("organization created", "organization_id", org.ID, "name", org.Name)
	writeJSON(w, http.StatusCreated, org)
}

// OrganizationUpdate replaces an organization's name and description.
func (a *Admin) OrganizationUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid organization ID")
		return
	}
	var req organizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.clean()
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Organization name is required")
		return
	}

	org, err := a.orgStore.Update(&models.Organization{ID: id, Name: req.Name, Description: req.Description})
	if err != nil {
		a.internalError(w, "update organization", err)
		return
	}
	if org == nil {
		writeError(w, http.StatusNotFound, "Organization not found")
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// OrganizationDelete removes an organization and its programs. Refused
// while certificates reference it.
func (a *Admin) OrganizationDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid organization ID")
		return
	}
	if err := a.orgStore.Delete(id); err != nil {
		if errors.Is(err, store.ErrInUse) {
			writeError(w, http.StatusBadRequest, "Cannot delete organization with existing certificates")
			return
		}
		a.internalError(w, "delete organization", err)
		return
	}
	slog.Info("organization deleted", "organization_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Organization deleted successfully"})
}

// OrganizationPrograms lists the programs of one organization.
func (a *Admin) OrganizationPrograms(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid organization ID")
		return
	}
	programs, err := a.programStore.List(&id)
	if err != nil {
		a.internalError(w, "list organization programs", err)
		return
	}
	if programs == nil {
		programs = []models.Program{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"programs": programs})
}
