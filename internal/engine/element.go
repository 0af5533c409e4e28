package engine

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/skip2/go-qrcode"
)

// Kind identifies a draw instruction.
type Kind int

const (
	KindFillRect Kind = iota + 1
	KindStrokeRect
	KindText
	KindLine
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindFillRect:
		return "fill-rect"
	case KindStrokeRect:
		return "stroke-rect"
	case KindText:
		return "text"
	case KindLine:
		return "line"
	case KindImage:
		return "image"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Instruction is one backend-neutral drawing command in canvas pixels.
//
// For KindText, (X, Y) is the top-left of the line box, W is the measured
// advance, H the line height and Baseline the absolute baseline y. For
// KindLine, (X, Y, W) is the rule and LineWidth its thickness. KindImage
// carries a bitmap already resampled to W x H.
type Instruction struct {
	Kind      Kind
	Element   string
	X, Y      float64
	W, H      float64
	Color     color.NRGBA
	LineWidth float64

	Text      string
	Face      FaceKey
	Size      float64
	Baseline  float64
	Underline bool

	Image       image.Image
	Placeholder bool
}

var (
	placeholderFill   = color.NRGBA{R: 0xf3, G: 0xf4, B: 0xf6, A: 0xff}
	placeholderBorder = color.NRGBA{R: 0xd1, G: 0xd5, B: 0xdb, A: 0xff}
	placeholderLabel  = color.NRGBA{R: 0x9c, G: 0xa3, B: 0xaf, A: 0xff}
)

// elementRenderer turns normalized elements into instructions for one page.
type elementRenderer struct {
	faces  *faceCache
	images ImageSource
	values FieldValues
}

func (r *elementRenderer) render(ctx context.Context, el Element) []Instruction {
	el = el.withDefaults()
	switch el.Type {
	case ElementText, ElementDynamicField, ElementDynamicText:
		return r.text(el, ResolveElement(el, r.values))
	case ElementRectangle:
		return r.rectangle(el)
	case ElementImage:
		return r.image(ctx, el)
	case ElementQRCode:
		return r.qrcode(el)
	}
	return nil
}

// text lays out one run per line. Lines step down by fontSize*1.2 and each
// line is anchored individually according to the alignment.
func (r *elementRenderer) text(el Element, content string) []Instruction {
	if content == "" {
		return nil
	}
	style := el.Text
	key := r.faces.fonts.Resolve(FaceKey{Family: style.Family, Bold: style.Bold, Italic: style.Italic})
	face := r.faces.face(key, style.FontSize)
	ascent := fromFixed(face.Metrics().Ascent)
	lineHeight := style.FontSize * lineHeightFactor

	var out []Instruction
	for i, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		top := el.Y + float64(i)*lineHeight
		if line == "" {
			continue
		}
		width := measure(face, line)
		x := anchorX(el.X, width, style.Align)
		baseline := top + ascent
		out = append(out, Instruction{
			Kind:      KindText,
			Element:   el.ID,
			X:         x,
			Y:         top,
			W:         width,
			H:         lineHeight,
			Color:     style.Color,
			Text:      line,
			Face:      key,
			Size:      style.FontSize,
			Baseline:  baseline,
			Underline: style.Underline,
		})
		if style.Underline {
			thickness := math.Max(1, style.FontSize/16)
			out = append(out, Instruction{
				Kind:      KindLine,
				Element:   el.ID,
				X:         x,
				Y:         baseline + thickness*1.5,
				W:         width,
				Color:     style.Color,
				LineWidth: thickness,
			})
		}
	}
	return out
}

// anchorX converts the element x into the left edge of a run of width w.
func anchorX(x, w float64, align Align) float64 {
	switch align {
	case AlignCenter:
		return x - w/2
	case AlignRight:
		return x - w
	}
	return x
}

func (r *elementRenderer) rectangle(el Element) []Instruction {
	var out []Instruction
	if el.Fill.A > 0 {
		out = append(out, Instruction{
			Kind: KindFillRect, Element: el.ID,
			X: el.X, Y: el.Y, W: el.Width, H: el.Height,
			Color: el.Fill,
		})
	}
	if el.BorderWidth > 0 {
		out = append(out, Instruction{
			Kind: KindStrokeRect, Element: el.ID,
			X: el.X, Y: el.Y, W: el.Width, H: el.Height,
			Color: el.BorderColor, LineWidth: el.BorderWidth,
		})
	}
	return out
}

func (r *elementRenderer) image(ctx context.Context, el Element) []Instruction {
	if el.ImageURL == "" {
		slog.Warn("image element has no url, drawing placeholder", "id", el.ID)
		return r.placeholder(el, "Image")
	}
	img, err := r.images.Load(ctx, el.ImageURL)
	if err != nil {
		slog.Warn("image unavailable, drawing placeholder", "id", el.ID, "url", el.ImageURL, "error", err)
		return r.placeholder(el, "Image")
	}
	return []Instruction{containImage(el.ID, img, el.X, el.Y, el.Width, el.Height)}
}

// qrcode encodes the resolved content and draws it square, centered in the box.
func (r *elementRenderer) qrcode(el Element) []Instruction {
	content := ResolveElement(el, r.values)
	side := int(math.Min(el.Width, el.Height))
	if content == "" || side <= 0 {
		return r.placeholder(el, "QR")
	}
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		slog.Warn("qr code not encodable, drawing placeholder", "id", el.ID, "error", err)
		return r.placeholder(el, "QR")
	}
	q.ForegroundColor = el.Text.Color
	q.BackgroundColor = el.Fill
	return []Instruction{containImage(el.ID, q.Image(side), el.X, el.Y, el.Width, el.Height)}
}

// placeholder draws a neutral box with a centered label.
func (r *elementRenderer) placeholder(el Element, label string) []Instruction {
	out := []Instruction{
		{
			Kind: KindFillRect, Element: el.ID,
			X: el.X, Y: el.Y, W: el.Width, H: el.Height,
			Color: placeholderFill, Placeholder: true,
		},
		{
			Kind: KindStrokeRect, Element: el.ID,
			X: el.X, Y: el.Y, W: el.Width, H: el.Height,
			Color: placeholderBorder, LineWidth: 1, Placeholder: true,
		},
	}

	size := math.Max(6, math.Min(14, el.Height/3))
	key := r.faces.fonts.Resolve(FaceKey{Family: FamilySans})
	face := r.faces.face(key, size)
	m := face.Metrics()
	ascent, descent := fromFixed(m.Ascent), fromFixed(m.Descent)
	width := measure(face, label)
	baseline := el.Y + el.Height/2 + (ascent-descent)/2

	return append(out, Instruction{
		Kind:        KindText,
		Element:     el.ID,
		X:           el.X + (el.Width-width)/2,
		Y:           baseline - ascent,
		W:           width,
		H:           size * lineHeightFactor,
		Color:       placeholderLabel,
		Text:        label,
		Face:        key,
		Size:        size,
		Baseline:    baseline,
		Placeholder: true,
	})
}

// containImage scales img up or down to fit inside the box, keeping its
// aspect ratio, and centers it.
func containImage(id string, img image.Image, x, y, w, h float64) Instruction {
	src := img.Bounds()
	scale := math.Min(w/float64(src.Dx()), h/float64(src.Dy()))
	fitted := imaging.Resize(img, pixels(float64(src.Dx())*scale), pixels(float64(src.Dy())*scale), imaging.Lanczos)
	fb := fitted.Bounds()
	return Instruction{
		Kind:    KindImage,
		Element: id,
		X:       x + (w-float64(fb.Dx()))/2,
		Y:       y + (h-float64(fb.Dy()))/2,
		W:       float64(fb.Dx()),
		H:       float64(fb.Dy()),
		Image:   fitted,
	}
}

// coverImage scales and crops img so it fills the whole box.
func coverImage(id string, img image.Image, w, h float64) Instruction {
	filled := imaging.Fill(img, pixels(w), pixels(h), imaging.Center, imaging.Lanczos)
	return Instruction{
		Kind:    KindImage,
		Element: id,
		W:       float64(filled.Bounds().Dx()),
		H:       float64(filled.Bounds().Dy()),
		Image:   filled,
	}
}

func pixels(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	return n
}
