// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"certforge/internal/engine"
	"certforge/internal/models"
	"certforge/internal/store"
)

type templateRequest struct {
	Name            string          `json:"name" validate:"required,max=200"`
	Description     string          `json:"description" validate:"max=2000"`
	Width           float64         `json:"width" validate:"gte=0,lte=5000"`
	Height          float64         `json:"height" validate:"gte=0,lte=5000"`
	BackgroundColor string          `json:"backgroundColor" validate:"max=64"`
	BackgroundImage string          `json:"backgroundImage"`
	Elements        json.RawMessage `json:"elements" validate:"required"`
}

// normalizeElements accepts the element list as a JSON array or as a JSON
// string holding one, and returns the array form stored in the database.
func normalizeElements(raw json.RawMessage) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decode elements: %w", err)
		}
		raw = json.RawMessage(inner)
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, errors.New("elements must be a JSON array")
	}
	if list == nil {
		return json.RawMessage("[]"), nil
	}
	return raw, nil
}

// bindTemplate decodes and validates a template body. It writes the error
// response itself and reports whether the caller may continue.
func bindTemplate(w http.ResponseWriter, r *http.Request) (*models.CertificateTemplate, bool) {
	var req templateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	req.Name = cleanText(req.Name)
	req.Description = cleanText(req.Description)
	if err := validate.Struct(req); err != nil {
		fields := validationErrors(err)
		if fields["width"] != "" || fields["height"] != "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Canvas width and height must be between 0 and %d", engine.MaxCanvasSide))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "Name and elements are required")
		return nil, false
	}
	elements, err := normalizeElements(req.Elements)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if req.BackgroundColor != "" {
		if _, ok := engine.ParseColor(req.BackgroundColor); !ok {
			writeError(w, http.StatusBadRequest, "Invalid background color")
			return nil, false
		}
	}
	return &models.CertificateTemplate{
		Name:            req.Name,
		Description:     req.Description,
		Width:           req.Width,
		Height:          req.Height,
		BackgroundColor: req.BackgroundColor,
		BackgroundImage: req.BackgroundImage,
		Elements:        elements,
	}, true
}

// compile turns a stored template into an engine template, reusing the
// engine's cache for the same id and version.
func (a *Admin) compile(t *models.CertificateTemplate) (*engine.Template, error) {
	return a.engine.Load(engine.Source{
		ID:              t.ID.String(),
		Version:         t.Version,
		Width:           t.Width,
		Height:          t.Height,
		BackgroundColor: t.BackgroundColor,
		BackgroundImage: t.BackgroundImage,
		Elements:        t.Elements,
	})
}

// findTemplate loads the {id} template, writing 400/404/500 itself.
func (a *Admin) findTemplate(w http.ResponseWriter, r *http.Request) (*models.CertificateTemplate, bool) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid template ID")
		return nil, false
	}
	t, err := a.templateStore.FindByID(id)
	if err != nil {
		a.internalError(w, "find template", err)
		return nil, false
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "Template not found")
		return nil, false
	}
	return t, true
}

// TemplatesList returns all templates, the default first.
func (a *Admin) TemplatesList(w http.ResponseWriter, r *http.Request) {
	templates, err := a.templateStore.List()
	if err != nil {
		a.internalError(w, "list templates", err)
		return
	}
	if templates == nil {
		templates = []models.CertificateTemplate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

// TemplateGet returns one template with its elements.
func (a *Admin) TemplateGet(w http.ResponseWriter, r *http.Request) {
	t, ok := a.findTemplate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// TemplateCreate stores a new template at version 1.
func (a *Admin) TemplateCreate(w http.ResponseWriter, r *http.Request) {
	t, ok := bindTemplate(w, r)
	if !ok {
		return
	}
	t.CreatedBy = sessionUserID(r)

	created, err := a.templateStore.Create(t)
	if err != nil {
		a.internalError(w, "create template", err)
		return
	}
	slog.Info("template created", "template_id", created.ID, "name", created.Name)
	writeJSON(w, http.StatusCreated, created)
}

// TemplateUpdate saves a template, bumps its version and drops every cached
// render made from the previous version.
func (a *Admin) TemplateUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid template ID")
		return
	}
	t, ok := bindTemplate(w, r)
	if !ok {
		return
	}
	t.ID = id

	updated, err := a.templateStore.Update(t)
	if err != nil {
		a.internalError(w, "update template", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "Template not found")
		return
	}
	a.invalidateTemplate(r.Context(), id, "update")
	writeJSON(w, http.StatusOK, updated)
}

// TemplateDelete removes a template. The default template is protected.
func (a *Admin) TemplateDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid template ID")
		return
	}
	if err := a.templateStore.Delete(id); err != nil {
		if errors.Is(err, store.ErrDefaultTemplate) {
			writeError(w, http.StatusBadRequest, "Cannot delete default template")
			return
		}
		a.internalError(w, "delete template", err)
		return
	}
	a.invalidateTemplate(r.Context(), id, "delete")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Template deleted successfully"})
}

// TemplatePreview renders a template with sample values in ?format=.
func (a *Admin) TemplatePreview(w http.ResponseWriter, r *http.Request) {
	t, ok := a.findTemplate(w, r)
	if !ok {
		return
	}
	format, err := a.format(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, ok := a.renderSample(w, r, t, format)
	if !ok {
		return
	}
	inline(w, format.ContentType(), "template-preview-"+t.ID.String()+format.Extension(), data)
}

// TemplateDownload returns the template as a standalone HTML page filled
// with sample values, for printing from a browser.
func (a *Admin) TemplateDownload(w http.ResponseWriter, r *http.Request) {
	t, ok := a.findTemplate(w, r)
	if !ok {
		return
	}
	data, ok := a.renderSample(w, r, t, engine.FormatHTML)
	if !ok {
		return
	}
	attachment(w, engine.FormatHTML.ContentType(), "certificate-template-"+t.ID.String()+".html", data)
}

func (a *Admin) renderSample(w http.ResponseWriter, r *http.Request, t *models.CertificateTemplate, format engine.Format) ([]byte, bool) {
	tmpl, err := a.compile(t)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return nil, false
	}
	values, err := sampleValues(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	data, err := a.engine.Render(r.Context(), tmpl, values, format)
	if err != nil {
		a.internalError(w, "render template preview", err)
		return nil, false
	}
	return data, true
}

// sampleValues returns the preview field values. A POST body of the form
// {"values": {...}} overrides individual sample values.
func sampleValues(w http.ResponseWriter, r *http.Request) (engine.FieldValues, error) {
	values := engine.SampleValues(time.Now())
	if r.Method != http.MethodPost || r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return values, nil
	}

	var body struct {
		Values map[string]string `json:"values"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		return nil, err
	}
	for k, v := range body.Values {
		values[k] = v
	}
	return values, nil
}

// TemplateValidate parses a template document without saving it and
// reports the fields it references.
func (a *Admin) TemplateValidate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	t, err := engine.ParseTemplate(body)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	hidden := len(t.Elements) - len(t.Visible())
	fields := engine.TemplateFields(t)
	if fields == nil {
		fields = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":          true,
		"width":          t.Width,
		"height":         t.Height,
		"elementCount":   len(t.Elements),
		"hiddenElements": hidden,
		"fields":         fields,
	})
}
