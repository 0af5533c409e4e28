// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imaging prepares uploaded template assets (backgrounds, logos,
// signatures) for storage. Accepted bitmaps keep their original bytes unless
// their longest side exceeds the limit, in which case they are downscaled
// with Lanczos resampling and re-encoded. Images are never upscaled.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/http"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/webp" // register webp decoding
)

const (
	// DefaultMaxSide caps the longest side of a stored asset. Certificates
	// are at most a few thousand pixels wide.
	DefaultMaxSide = 4000

	// maxPixels rejects decompression bombs before decoding.
	maxPixels = 100_000_000

	jpegQuality = 90
)

// ErrUnsupportedType is returned for uploads that are not an accepted
// bitmap type.
var ErrUnsupportedType = errors.New("unsupported image type")

// Kind describes an accepted upload type and how it is re-encoded when it
// has to be downscaled.
type Kind struct {
	ContentType string
	Ext         string
	format      imaging.Format
}

// kinds are the image types templates can draw. There is no WebP encoder,
// so downscaled WebP uploads are stored as PNG.
var kinds = map[string]Kind{
	"image/jpeg": {"image/jpeg", ".jpg", imaging.JPEG},
	"image/png":  {"image/png", ".png", imaging.PNG},
	"image/gif":  {"image/gif", ".gif", imaging.GIF},
	"image/webp": {"image/webp", ".webp", imaging.PNG},
}

// Asset is an upload ready to be stored.
type Asset struct {
	Data        []byte
	ContentType string
	Ext         string // with the dot
	Width       int
	Height      int
	Resized     bool
}

// Detect sniffs the content type of data and reports whether it is an
// accepted asset type.
func Detect(data []byte) (Kind, bool) {
	k, ok := kinds[http.DetectContentType(data)]
	return k, ok
}

// Prepare validates an uploaded image and downscales it to fit within
// maxSide x maxSide. A maxSide of zero uses DefaultMaxSide.
func Prepare(data []byte, maxSide int) (*Asset, error) {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	kind, ok := Detect(data)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, http.DetectContentType(data))
	}

	// Read dimensions without fully decoding.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: read header: %w", err)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("imaging: image too large: %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Width <= maxSide && cfg.Height <= maxSide {
		return &Asset{
			Data:        data,
			ContentType: kind.ContentType,
			Ext:         kind.Ext,
			Width:       cfg.Width,
			Height:      cfg.Height,
		}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}
	fitted := imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, kind.format, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("imaging: encode: %w", err)
	}
	out := &Asset{
		Data:    buf.Bytes(),
		Width:   fitted.Bounds().Dx(),
		Height:  fitted.Bounds().Dy(),
		Resized: true,
	}
	if kind.format == imaging.PNG {
		out.ContentType, out.Ext = "image/png", ".png"
	} else {
		out.ContentType, out.Ext = kind.ContentType, kind.Ext
	}
	return out, nil
}
