package engine

import (
	"context"
	"log/slog"
)

// Page is a composed canvas: a flat, ordered list of draw instructions.
// Instructions outside the canvas bounds are kept; adapters clip them.
type Page struct {
	Title        string
	Width        float64
	Height       float64
	Instructions []Instruction
}

// compose paints the background color, then the background image scaled to
// cover the canvas, then every visible element in list order.
func compose(ctx context.Context, t *Template, values FieldValues, fonts *FontSet, images ImageSource) (*Page, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	faces := newFaceCache(fonts)
	defer faces.close()

	page := &Page{
		Title:  t.ID,
		Width:  t.Width,
		Height: t.Height,
	}
	if t.Background.A > 0 {
		page.Instructions = append(page.Instructions, Instruction{
			Kind:  KindFillRect,
			W:     t.Width,
			H:     t.Height,
			Color: t.Background,
		})
	}
	if t.BackgroundImage != "" {
		img, err := images.Load(ctx, t.BackgroundImage)
		if err != nil {
			slog.Warn("background image unavailable, skipping", "template", t.ID, "url", t.BackgroundImage, "error", err)
		} else {
			page.Instructions = append(page.Instructions, coverImage("", img, t.Width, t.Height))
		}
	}

	r := &elementRenderer{faces: faces, images: images, values: values}
	for _, el := range t.Visible() {
		page.Instructions = append(page.Instructions, r.render(ctx, el)...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return page, nil
}
