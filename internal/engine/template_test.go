package engine

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseTemplateDefaults(t *testing.T) {
	tmpl, err := ParseTemplate([]byte(`{"elements": []}`))
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}
	if tmpl.Width != DefaultWidth || tmpl.Height != DefaultHeight {
		t.Errorf("canvas: got %gx%g, want %dx%d", tmpl.Width, tmpl.Height, DefaultWidth, DefaultHeight)
	}
	if tmpl.Background != white {
		t.Errorf("background: got %v, want white", tmpl.Background)
	}
	if len(tmpl.Elements) != 0 {
		t.Errorf("expected no elements, got %d", len(tmpl.Elements))
	}
}

func TestParseTemplateRejectsEmptyCanvas(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"zero width", `{"width": 0, "height": 600}`},
		{"negative height", `{"width": 800, "height": -1}`},
		{"not json", `{"width": 800,`},
		{"infinite width", `{"width": "Infinity", "height": 100}`},
		{"infinite height", `{"width": 100, "height": "-Inf"}`},
		{"nan width", `{"width": "NaN", "height": 100}`},
		{"oversized canvas", `{"width": 20000, "height": 20000}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTemplate([]byte(tt.json))
			if !errors.Is(err, ErrInvalidTemplate) {
				t.Errorf("expected ErrInvalidTemplate, got %v", err)
			}
		})
	}
}

func TestValidateRejectsNonFiniteCanvas(t *testing.T) {
	for _, tmpl := range []*Template{
		{Width: math.Inf(1), Height: 100},
		{Width: 100, Height: math.Inf(-1)},
		{Width: MaxCanvasSide + 1, Height: 100},
	} {
		if err := tmpl.Validate(); !errors.Is(err, ErrInvalidTemplate) {
			t.Errorf("Validate(%gx%g) = %v, want ErrInvalidTemplate", tmpl.Width, tmpl.Height, err)
		}
	}
	if err := (&Template{Width: MaxCanvasSide, Height: MaxCanvasSide}).Validate(); err != nil {
		t.Errorf("Validate at the limit: %v", err)
	}
}

func TestNonFiniteElementSizesAreIgnored(t *testing.T) {
	els := ParseElements([]byte(`[{"type": "rectangle", "width": "Infinity", "height": "NaN"}]`))
	if len(els) != 1 || els[0].Width != defaultRectWidth || els[0].Height != defaultRectHeight {
		t.Errorf("rectangle = %+v, want default size", els)
	}
}

// ---------------------------------------------------------------------------
// TestParseElements: loose designer JSON is normalized at the boundary
// ---------------------------------------------------------------------------

func TestParseElements(t *testing.T) {
	els := ParseElements([]byte(`[
		{"id": "t1", "type": "text", "x": "120", "y": 40.5, "content": "Hi",
		 "fontSize": "18px", "fontWeight": "700", "fontStyle": "italic",
		 "textDecoration": "underline", "textAlign": "CENTER",
		 "fontFamily": "Times New Roman", "color": "#f00"},
		{"type": "rectangle", "x": 50, "y": 50, "fill": "#eeeeee", "strokeColor": "#d1d5db", "strokeWidth": 2},
		{"type": "rectangle", "backgroundColor": "transparent", "borderColor": "navy", "borderWidth": "3", "width": 0},
		{"type": "image", "src": "https://example.com/logo.png", "width": 200},
		{"type": "hologram", "content": "future"},
		{"type": "text", "content": 42},
		{"type": "text", "fontSize": "huge", "color": "not-a-color", "x": null}
	]`))

	if len(els) != 7 {
		t.Fatalf("expected 7 elements, got %d", len(els))
	}

	text := els[0]
	wantStyle := TextStyle{
		FontSize:  18,
		Family:    FamilySerif,
		Bold:      true,
		Italic:    true,
		Underline: true,
		Align:     AlignCenter,
		Color:     color.NRGBA{R: 255, A: 255},
	}
	if diff := cmp.Diff(wantStyle, text.Text); diff != "" {
		t.Errorf("text style mismatch (-want +got):\n%s", diff)
	}
	if text.X != 120 || text.Y != 40.5 {
		t.Errorf("text position: got (%g,%g), want (120,40.5)", text.X, text.Y)
	}

	rect := els[1]
	if rect.ID != "el-1" {
		t.Errorf("generated id: got %q, want el-1", rect.ID)
	}
	if rect.Width != 100 || rect.Height != 50 {
		t.Errorf("rect defaults: got %gx%g, want 100x50", rect.Width, rect.Height)
	}
	if rect.Fill != (color.NRGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}) {
		t.Errorf("fill alias: got %v", rect.Fill)
	}
	if rect.BorderColor != (color.NRGBA{R: 0xd1, G: 0xd5, B: 0xdb, A: 0xff}) || rect.BorderWidth != 2 {
		t.Errorf("stroke alias: got %v width %g", rect.BorderColor, rect.BorderWidth)
	}

	clear := els[2]
	if clear.Fill.A != 0 {
		t.Errorf("transparent fill should have zero alpha, got %v", clear.Fill)
	}
	if clear.BorderWidth != 3 || clear.Width != 100 {
		t.Errorf("border width %g width %g, want 3 and 100", clear.BorderWidth, clear.Width)
	}

	if img := els[3]; img.ImageURL != "https://example.com/logo.png" || img.Width != 200 || img.Height != 100 {
		t.Errorf("image: got url %q size %gx%g", img.ImageURL, img.Width, img.Height)
	}

	if !els[4].Hidden {
		t.Error("unknown element type should be hidden")
	}
	if !els[5].Hidden {
		t.Error("undecodable element should be hidden")
	}

	degraded := els[6]
	if degraded.Text.FontSize != DefaultFontSize || degraded.Text.Color != black || degraded.X != 0 {
		t.Errorf("degraded element: size %g color %v x %g", degraded.Text.FontSize, degraded.Text.Color, degraded.X)
	}
	if degraded.Hidden {
		t.Error("malformed values must not hide the element")
	}
}

func TestParseElementsStringEncoded(t *testing.T) {
	els := ParseElements([]byte(`"[{\"type\":\"text\",\"content\":\"{{userName}}\"}]"`))
	if len(els) != 1 || els[0].Content != "{{userName}}" {
		t.Fatalf("string-encoded elements not decoded: %+v", els)
	}
	if got := ParseElements([]byte(`{"not": "a list"}`)); got != nil {
		t.Errorf("expected nil for non-list, got %+v", got)
	}
	if got := ParseElements(nil); got != nil {
		t.Errorf("expected nil for empty input, got %+v", got)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in     string
		want   color.NRGBA
		wantOK bool
	}{
		{"#ffffff", color.NRGBA{255, 255, 255, 255}, true},
		{"#FFF", color.NRGBA{255, 255, 255, 255}, true},
		{"#1f2937", color.NRGBA{0x1f, 0x29, 0x37, 255}, true},
		{"#00000080", color.NRGBA{0, 0, 0, 0x80}, true},
		{"rgb(255, 0, 0)", color.NRGBA{255, 0, 0, 255}, true},
		{"rgba(0,0,255,0.5)", color.NRGBA{0, 0, 255, 128}, true},
		{"transparent", color.NRGBA{}, true},
		{"Navy", color.NRGBA{0, 0, 128, 255}, true},
		{"#12345", color.NRGBA{}, false},
		{"#zzzzzz", color.NRGBA{}, false},
		{"blurple", color.NRGBA{}, false},
		{"", color.NRGBA{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseColor(tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseColor(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestResolveFamily(t *testing.T) {
	tests := map[string]Family{
		"":                           FamilySans,
		"Arial, sans-serif":          FamilySans,
		"Helvetica":                  FamilySans,
		"Georgia":                    FamilySerif,
		"'Times New Roman', serif":   FamilySerif,
		"Courier New":                FamilyMono,
		"ui-monospace":               FamilyMono,
		"Comic Sans MS":              FamilySans,
		"Some Future Display Family": FamilySans,
	}
	for name, want := range tests {
		if got := ResolveFamily(name); got != want {
			t.Errorf("ResolveFamily(%q) = %q, want %q", name, got, want)
		}
	}
}
