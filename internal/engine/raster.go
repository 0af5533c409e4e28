package engine

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

const jpegQuality = 92

// Rasterize paints the page onto a bitmap of the canvas size.
func Rasterize(page *Page, fonts *FontSet) *image.NRGBA {
	dst := imaging.New(pixels(page.Width), pixels(page.Height), color.NRGBA{})
	faces := newFaceCache(fonts)
	defer faces.close()

	for _, in := range page.Instructions {
		switch in.Kind {
		case KindFillRect:
			fillRect(dst, in.X, in.Y, in.W, in.H, in.Color)
		case KindStrokeRect:
			strokeRect(dst, in.X, in.Y, in.W, in.H, in.LineWidth, in.Color)
		case KindLine:
			fillRect(dst, in.X, in.Y-in.LineWidth/2, in.W, in.LineWidth, in.Color)
		case KindText:
			d := &font.Drawer{
				Dst:  dst,
				Src:  image.NewUniform(in.Color),
				Face: faces.face(in.Face, in.Size),
				Dot:  fixed.Point26_6{X: toFixed(in.X), Y: toFixed(in.Baseline)},
			}
			d.DrawString(in.Text)
		case KindImage:
			if in.Image == nil {
				continue
			}
			pt := image.Pt(int(math.Round(in.X)), int(math.Round(in.Y)))
			b := in.Image.Bounds()
			draw.Draw(dst, image.Rectangle{Min: pt, Max: pt.Add(b.Size())}, in.Image, b.Min, draw.Over)
		}
	}
	return dst
}

// pixelRect rounds a float box to whole pixels. draw.Draw clips it against
// the destination.
func pixelRect(x, y, w, h float64) image.Rectangle {
	return image.Rect(
		int(math.Round(x)), int(math.Round(y)),
		int(math.Round(x+w)), int(math.Round(y+h)),
	)
}

func fillRect(dst draw.Image, x, y, w, h float64, c color.NRGBA) {
	if c.A == 0 || w <= 0 || h <= 0 {
		return
	}
	draw.Draw(dst, pixelRect(x, y, w, h), image.NewUniform(c), image.Point{}, draw.Over)
}

// strokeRect draws a border of width lw centered on the box edges.
func strokeRect(dst draw.Image, x, y, w, h, lw float64, c color.NRGBA) {
	if lw <= 0 {
		return
	}
	half := lw / 2
	ox, oy, ow, oh := x-half, y-half, w+lw, h+lw
	fillRect(dst, ox, oy, ow, lw, c)         // top
	fillRect(dst, ox, oy+oh-lw, ow, lw, c)   // bottom
	fillRect(dst, ox, oy+lw, lw, oh-2*lw, c) // left
	fillRect(dst, ox+ow-lw, oy+lw, lw, oh-2*lw, c)
}

func encodePNG(page *Page, fonts *FontSet) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, Rasterize(page, fonts), imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeJPEG(page *Page, fonts *FontSet) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, Rasterize(page, fonts), imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
