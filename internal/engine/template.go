// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidTemplate is returned when a template cannot be rendered at all.
// Element-level problems never produce this error; they degrade instead.
var ErrInvalidTemplate = errors.New("invalid template")

// MaxCanvasSide bounds each canvas dimension so a raster page stays within
// roughly 100 MB of NRGBA pixels. Infinite sizes fail the same check.
const MaxCanvasSide = 5000

// ElementType discriminates the element variants a template may contain.
type ElementType string

const (
	ElementText         ElementType = "text"
	ElementDynamicField ElementType = "dynamic-field"
	ElementDynamicText  ElementType = "dynamic-text" // legacy alias of dynamic-field
	ElementRectangle    ElementType = "rectangle"
	ElementImage        ElementType = "image"
	ElementQRCode       ElementType = "qrcode"
)

// Align is the horizontal anchor of a text run relative to the element's x.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Defaults applied at the JSON boundary.
const (
	DefaultWidth       = 794
	DefaultHeight      = 1123
	DefaultFontSize    = 12
	defaultRectWidth   = 100
	defaultRectHeight  = 50
	defaultImageWidth  = 100
	defaultImageHeight = 100
	lineHeightFactor   = 1.2
)

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	black = color.NRGBA{A: 255}
)

// Template is a normalized canvas ready for composition.
type Template struct {
	ID              string
	Version         int
	Width           float64
	Height          float64
	Background      color.NRGBA
	BackgroundImage string
	Elements        []Element
}

// TextStyle holds the font parameters of text-bearing elements.
type TextStyle struct {
	FontSize  float64
	Family    Family
	Bold      bool
	Italic    bool
	Underline bool
	Align     Align
	Color     color.NRGBA
}

// Element is one fully-normalized element. Variant-specific fields are zero
// for variants that do not use them.
type Element struct {
	ID        string
	Type      ElementType
	X, Y      float64
	Width     float64
	Height    float64
	Hidden    bool
	Content   string
	FieldName string
	Text      TextStyle

	// Rectangle paint. A zero-alpha Fill means no fill.
	Fill        color.NRGBA
	BorderColor color.NRGBA
	BorderWidth float64

	ImageURL string
}

// IsDynamic reports whether the element is a dynamic field (either spelling).
func (e Element) IsDynamic() bool {
	return e.Type == ElementDynamicField || e.Type == ElementDynamicText
}

// IsText reports whether the element renders a text run.
func (e Element) IsText() bool {
	return e.Type == ElementText || e.IsDynamic()
}

// Validate rejects templates that cannot produce a page.
func (t *Template) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil template", ErrInvalidTemplate)
	}
	if math.IsInf(t.Width, 0) || math.IsInf(t.Height, 0) {
		return fmt.Errorf("%w: canvas must be finite, got %gx%g", ErrInvalidTemplate, t.Width, t.Height)
	}
	if !(t.Width > 0) || !(t.Height > 0) {
		return fmt.Errorf("%w: canvas must be positive, got %gx%g", ErrInvalidTemplate, t.Width, t.Height)
	}
	if t.Width > MaxCanvasSide || t.Height > MaxCanvasSide {
		return fmt.Errorf("%w: canvas %gx%g exceeds %d px per side", ErrInvalidTemplate, t.Width, t.Height, MaxCanvasSide)
	}
	return nil
}

// Visible returns the elements that take part in composition, in paint order.
func (t *Template) Visible() []Element {
	out := make([]Element, 0, len(t.Elements))
	for _, el := range t.Elements {
		if !el.Hidden {
			out = append(out, el)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// JSON boundary
// ---------------------------------------------------------------------------

// flexFloat accepts JSON numbers, numeric strings and null. Anything else
// leaves the value unset instead of failing the decode.
type flexFloat struct {
	v   float64
	set bool

	// nonFinite marks a NaN or ±Inf input; set stays false for it.
	nonFinite bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		f.nonFinite = true
		return nil
	}
	f.v, f.set = v, true
	return nil
}

func (f flexFloat) or(fallback float64) float64 {
	if f.set {
		return f.v
	}
	return fallback
}

// positiveOr treats zero and negative sizes as missing.
func (f flexFloat) positiveOr(fallback float64) float64 {
	if f.set && f.v > 0 {
		return f.v
	}
	return fallback
}

// flexBool accepts true/false as JSON booleans or strings.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	switch strings.Trim(strings.ToLower(string(bytes.TrimSpace(b))), `"`) {
	case "true", "1", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

// wireTemplate mirrors what the designer stores. Elements may arrive as an
// array or as a JSON string holding an array.
type wireTemplate struct {
	ID              string          `json:"id"`
	Width           flexFloat       `json:"width"`
	Height          flexFloat       `json:"height"`
	BackgroundColor string          `json:"backgroundColor"`
	BackgroundImage string          `json:"backgroundImage"`
	Elements        json.RawMessage `json:"elements"`
}

type wireElement struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	X         flexFloat `json:"x"`
	Y         flexFloat `json:"y"`
	Width     flexFloat `json:"width"`
	Height    flexFloat `json:"height"`
	Hidden    flexBool  `json:"hidden"`
	Content   string    `json:"content"`
	FieldName string    `json:"fieldName"`

	FontSize       flexFloat `json:"fontSize"`
	FontWeight     any       `json:"fontWeight"`
	FontFamily     string    `json:"fontFamily"`
	FontStyle      string    `json:"fontStyle"`
	TextDecoration string    `json:"textDecoration"`
	TextAlign      string    `json:"textAlign"`
	Color          string    `json:"color"`

	BackgroundColor string    `json:"backgroundColor"`
	Fill            string    `json:"fill"`
	BorderColor     string    `json:"borderColor"`
	StrokeColor     string    `json:"strokeColor"`
	BorderWidth     flexFloat `json:"borderWidth"`
	StrokeWidth     flexFloat `json:"strokeWidth"`

	ImageURL string `json:"imageUrl"`
	Src      string `json:"src"`
}

// ParseTemplate decodes a full template document. Only a document that is
// not JSON at all, or whose canvas is not a positive finite size within
// MaxCanvasSide, is rejected.
func ParseTemplate(data []byte) (*Template, error) {
	var w wireTemplate
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: decode template: %v", ErrInvalidTemplate, err)
	}
	if w.Width.nonFinite || w.Height.nonFinite {
		return nil, fmt.Errorf("%w: canvas size must be finite", ErrInvalidTemplate)
	}
	t := &Template{
		ID:              w.ID,
		Width:           w.Width.or(DefaultWidth),
		Height:          w.Height.or(DefaultHeight),
		Background:      parseColorOr(w.BackgroundColor, white),
		BackgroundImage: strings.TrimSpace(w.BackgroundImage),
		Elements:        ParseElements(w.Elements),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseElements decodes an element list. Elements that fail to decode are
// kept as hidden placeholders so the indices of their siblings stay stable.
func ParseElements(data []byte) []Element {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	// Stored templates keep the array as a string column.
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			slog.Warn("template elements are not decodable", "error", err)
			return nil
		}
		data = []byte(inner)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Warn("template elements are not a list", "error", err)
		return nil
	}

	elements := make([]Element, 0, len(raw))
	for i, r := range raw {
		var w wireElement
		if err := json.Unmarshal(r, &w); err != nil {
			slog.Warn("skipping undecodable element", "index", i, "error", err)
			elements = append(elements, Element{ID: elementID("", i), Hidden: true})
			continue
		}
		elements = append(elements, normalizeElement(w, i))
	}
	return elements
}

func elementID(id string, index int) string {
	if id != "" {
		return id
	}
	return "el-" + strconv.Itoa(index)
}

// normalizeElement resolves aliases and fills per-variant defaults.
func normalizeElement(w wireElement, index int) Element {
	el := Element{
		ID:        elementID(w.ID, index),
		Type:      ElementType(strings.ToLower(strings.TrimSpace(w.Type))),
		X:         w.X.or(0),
		Y:         w.Y.or(0),
		Hidden:    bool(w.Hidden),
		Content:   w.Content,
		FieldName: strings.TrimSpace(w.FieldName),
	}

	switch el.Type {
	case ElementText, ElementDynamicField, ElementDynamicText:
		el.Width = w.Width.positiveOr(0)
		el.Height = w.Height.positiveOr(0)
		el.Text = TextStyle{
			FontSize:  w.FontSize.positiveOr(DefaultFontSize),
			Family:    ResolveFamily(w.FontFamily),
			Bold:      isBold(w.FontWeight),
			Italic:    isItalic(w.FontStyle),
			Underline: strings.Contains(strings.ToLower(w.TextDecoration), "underline"),
			Align:     parseAlign(w.TextAlign),
			Color:     parseColorOr(w.Color, black),
		}
		if el.Text.Color.A == 0 {
			el.Text.Color = black
		}

	case ElementRectangle:
		el.Width = w.Width.positiveOr(defaultRectWidth)
		el.Height = w.Height.positiveOr(defaultRectHeight)
		el.Fill = parseColorOr(firstNonEmpty(w.BackgroundColor, w.Fill), color.NRGBA{})
		el.BorderColor = parseColorOr(firstNonEmpty(w.BorderColor, w.StrokeColor), black)
		bw := w.BorderWidth
		if !bw.set {
			bw = w.StrokeWidth
		}
		el.BorderWidth = bw.positiveOr(0)

	case ElementImage, ElementQRCode:
		el.Width = w.Width.positiveOr(defaultImageWidth)
		el.Height = w.Height.positiveOr(defaultImageHeight)
		el.ImageURL = strings.TrimSpace(firstNonEmpty(w.ImageURL, w.Src))
		if el.Type == ElementQRCode {
			el.Text.Color = parseColorOr(w.Color, black)
			el.Fill = parseColorOr(firstNonEmpty(w.BackgroundColor, w.Fill), white)
		}

	default:
		slog.Warn("unknown element type, skipping", "id", el.ID, "type", w.Type)
		el.Hidden = true
	}
	return el
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseAlign(s string) Align {
	switch Align(strings.ToLower(strings.TrimSpace(s))) {
	case AlignCenter:
		return AlignCenter
	case AlignRight:
		return AlignRight
	default:
		return AlignLeft
	}
}

// isBold accepts CSS keywords and numeric weights (600 and above are bold).
func isBold(v any) bool {
	switch w := v.(type) {
	case string:
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "bold" || w == "bolder" {
			return true
		}
		n, err := strconv.Atoi(w)
		return err == nil && n >= 600
	case float64:
		return w >= 600
	case bool:
		return w
	}
	return false
}

func isItalic(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "italic" || s == "oblique"
}

// withDefaults repairs an element built in code rather than decoded, so the
// renderer can rely on sane sizes.
func (e Element) withDefaults() Element {
	if e.IsText() {
		if !(e.Text.FontSize > 0) {
			e.Text.FontSize = DefaultFontSize
		}
		if e.Text.Color.A == 0 {
			e.Text.Color = black
		}
		if e.Text.Align == "" {
			e.Text.Align = AlignLeft
		}
		if e.Text.Family == "" {
			e.Text.Family = FamilySans
		}
	}
	if e.X != e.X {
		e.X = 0
	}
	if e.Y != e.Y {
		e.Y = 0
	}
	return e
}
