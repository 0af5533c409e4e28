// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"certforge/internal/imaging"
	"certforge/internal/storage"
)

// maxUploadSize is the maximum allowed asset upload size (20 MB).
const maxUploadSize = 20 << 20

// TemplateAssetUpload stores a background or logo image in the public
// bucket and returns the URL to put in a template. Oversized bitmaps are
// downscaled first.
func (a *Admin) TemplateAssetUpload(w http.ResponseWriter, r *http.Request) {
	if a.storageClient == nil {
		writeError(w, http.StatusServiceUnavailable, "Object storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1024)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 20 MB")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	asset, err := imaging.Prepare(data, imaging.DefaultMaxSide)
	if errors.Is(err, imaging.ErrUnsupportedType) {
		writeError(w, http.StatusBadRequest, "Only JPEG, PNG, GIF and WebP images are allowed")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	base := strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	key := storage.AssetKey(base + asset.Ext)
	bucket := a.storageClient.PublicBucket()
	if err := a.storageClient.Upload(r.Context(), bucket, key, asset.ContentType, bytes.NewReader(asset.Data), int64(len(asset.Data))); err != nil {
		slog.Error("s3 upload failed", "error", err, "key", key)
		writeError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	slog.Info("template asset uploaded", "key", key, "bytes", len(asset.Data), "resized", asset.Resized)
	writeJSON(w, http.StatusCreated, map[string]any{
		"url":      a.storageClient.FileURL(key),
		"uri":      storage.ObjectURI(bucket, key),
		"key":      key,
		"filename": header.Filename,
		"type":     asset.ContentType,
		"size":     len(asset.Data),
		"width":    asset.Width,
		"height":   asset.Height,
	})
}
