package engine

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
)

// documentDate is stamped into every PDF so identical pages produce
// identical bytes.
var documentDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// newDocument starts a single-page PDF whose page matches the canvas. The
// unit is the point and the canvas is laid out at 72 DPI, so one canvas
// pixel maps to one point.
func newDocument(page *Page) *fpdf.Fpdf {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: page.Width, Ht: page.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreationDate(documentDate)
	pdf.SetCatalogSort(true)
	pdf.SetCreator("certforge", true)
	if page.Title != "" {
		pdf.SetTitle(page.Title, true)
	}
	pdf.AddPage()
	return pdf
}

func finishDocument(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeRasterPDF embeds the rasterized page as one full-page image.
func encodeRasterPDF(page *Page, fonts *FontSet) ([]byte, error) {
	var png bytes.Buffer
	if err := imaging.Encode(&png, Rasterize(page, fonts), imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode page bitmap: %w", err)
	}

	pdf := newDocument(page)
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("page", opts, &png)
	pdf.ImageOptions("page", 0, 0, page.Width, page.Height, false, opts, 0, "")
	return finishDocument(pdf)
}

// encodeVectorPDF re-expresses each instruction as native PDF drawing
// operators, embedding the same TrueType fonts used for measurement.
func encodeVectorPDF(page *Page, fonts *FontSet) ([]byte, error) {
	pdf := newDocument(page)
	registered := make(map[FaceKey]bool)

	for i, in := range page.Instructions {
		switch in.Kind {
		case KindFillRect:
			withAlpha(pdf, in.Color, func() {
				pdf.SetFillColor(int(in.Color.R), int(in.Color.G), int(in.Color.B))
				pdf.Rect(in.X, in.Y, in.W, in.H, "F")
			})

		case KindStrokeRect:
			withAlpha(pdf, in.Color, func() {
				pdf.SetDrawColor(int(in.Color.R), int(in.Color.G), int(in.Color.B))
				pdf.SetLineWidth(in.LineWidth)
				pdf.Rect(in.X, in.Y, in.W, in.H, "D")
			})

		case KindLine:
			withAlpha(pdf, in.Color, func() {
				pdf.SetFillColor(int(in.Color.R), int(in.Color.G), int(in.Color.B))
				pdf.Rect(in.X, in.Y-in.LineWidth/2, in.W, in.LineWidth, "F")
			})

		case KindText:
			family := string(in.Face.Family)
			if !registered[in.Face] {
				ttf := fonts.TTF(in.Face)
				if ttf == nil {
					return nil, fmt.Errorf("font %s/%s not registered", in.Face.Family, in.Face.Style())
				}
				pdf.AddUTF8FontFromBytes(family, in.Face.Style(), ttf)
				registered[in.Face] = true
			}
			withAlpha(pdf, in.Color, func() {
				pdf.SetFont(family, in.Face.Style(), in.Size)
				pdf.SetTextColor(int(in.Color.R), int(in.Color.G), int(in.Color.B))
				pdf.Text(in.X, in.Baseline, in.Text)
			})

		case KindImage:
			if in.Image == nil {
				continue
			}
			if err := embedImage(pdf, fmt.Sprintf("img-%d", i), in.Image, in.X, in.Y, in.W, in.H); err != nil {
				return nil, err
			}
		}
		if pdf.Err() {
			return nil, fmt.Errorf("draw %s: %w", in.Kind, pdf.Error())
		}
	}
	return finishDocument(pdf)
}

func embedImage(pdf *fpdf.Fpdf, name string, img image.Image, x, y, w, h float64) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return fmt.Errorf("encode image %s: %w", name, err)
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, &buf)
	pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	return nil
}

// withAlpha applies translucency around fn when the color is not opaque.
func withAlpha(pdf *fpdf.Fpdf, c color.NRGBA, fn func()) {
	if c.A == 255 {
		fn()
		return
	}
	pdf.SetAlpha(float64(c.A)/255, "Normal")
	fn()
	pdf.SetAlpha(1, "Normal")
}
