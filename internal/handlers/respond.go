// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the JSON API: authentication, organizations,
// programs, certificate templates, certificates, verification and bulk export.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// maxJSONBody caps JSON request bodies. Templates carry their element list,
// which can embed data: URIs, so the cap is generous.
const maxJSONBody = 10 << 20

var (
	validate   = newValidator()
	textPolicy = bluemonday.StrictPolicy()
)

// newValidator reports fields by their JSON names so messages match what
// the client sent.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

// writeError sends the API error shape {"message": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// validationErrors maps each failing field to the rule it broke.
func validationErrors(err error) map[string]string {
	out := make(map[string]string)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// validationMessage turns validator errors into one readable sentence, e.g.
// "name is required".
func validationMessage(err error) string {
	fields := validationErrors(err)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch tag := fields[k]; tag {
		case "required":
			parts = append(parts, k+" is required")
		case "max":
			parts = append(parts, k+" is too long")
		case "email":
			parts = append(parts, k+" must be a valid email")
		case "uuid":
			parts = append(parts, k+" must be a valid id")
		default:
			parts = append(parts, k+" is invalid ("+tag+")")
		}
	}
	return strings.Join(parts, ", ")
}

// cleanText strips markup from free text and trims it. Entities escaped by
// the sanitizer are restored since values are stored as plain text.
func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

// idParam parses the named chi URL parameter as a UUID.
func idParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// optionalID parses s as a UUID. Empty input yields nil.
func optionalID(s string) (*uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// attachment sends data as a download.
func attachment(w http.ResponseWriter, contentType, fileName string, data []byte) {
	sendBytes(w, "attachment", contentType, fileName, data)
}

// inline sends data for display in the browser.
func inline(w http.ResponseWriter, contentType, fileName string, data []byte) {
	sendBytes(w, "inline", contentType, fileName, data)
}

func sendBytes(w http.ResponseWriter, disposition, contentType, fileName string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, fileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
