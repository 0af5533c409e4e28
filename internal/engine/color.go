package engine

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

var namedColors = map[string]color.NRGBA{
	"black":   black,
	"white":   white,
	"red":     {R: 255, A: 255},
	"green":   {G: 128, A: 255},
	"blue":    {B: 255, A: 255},
	"gray":    {R: 128, G: 128, B: 128, A: 255},
	"grey":    {R: 128, G: 128, B: 128, A: 255},
	"silver":  {R: 192, G: 192, B: 192, A: 255},
	"navy":    {B: 128, A: 255},
	"maroon":  {R: 128, A: 255},
	"gold":    {R: 255, G: 215, A: 255},
	"orange":  {R: 255, G: 165, A: 255},
	"purple":  {R: 128, B: 128, A: 255},
	"yellow":  {R: 255, G: 255, A: 255},
	"teal":    {G: 128, B: 128, A: 255},
	"crimson": {R: 220, G: 20, B: 60, A: 255},

	"transparent": {},
}

// ParseColor understands #rgb, #rgba, #rrggbb, #rrggbbaa, rgb(), rgba() and
// a handful of CSS names.
func ParseColor(s string) (color.NRGBA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return color.NRGBA{}, false
	}
	if c, ok := namedColors[s]; ok {
		return c, true
	}
	if strings.HasPrefix(s, "#") {
		return parseHex(s[1:])
	}
	if strings.HasPrefix(s, "rgb") {
		return parseRGBFunc(s)
	}
	return color.NRGBA{}, false
}

func parseColorOr(s string, fallback color.NRGBA) color.NRGBA {
	if c, ok := ParseColor(s); ok {
		return c
	}
	return fallback
}

func parseHex(h string) (color.NRGBA, bool) {
	switch len(h) {
	case 3, 4:
		var expanded strings.Builder
		for _, r := range h {
			expanded.WriteRune(r)
			expanded.WriteRune(r)
		}
		h = expanded.String()
	case 6, 8:
	default:
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	if len(h) == 6 {
		return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
}

func parseRGBFunc(s string) (color.NRGBA, bool) {
	open, close := strings.IndexByte(s, '('), strings.LastIndexByte(s, ')')
	if open < 0 || close < open {
		return color.NRGBA{}, false
	}
	parts := strings.FieldsFunc(s[open+1:close], func(r rune) bool { return r == ',' || r == ' ' || r == '/' })
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, false
	}
	var ch [4]uint8
	ch[3] = 255
	for i, p := range parts {
		if i == 3 {
			a, err := parseAlpha(p)
			if err != nil {
				return color.NRGBA{}, false
			}
			ch[3] = a
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
		if err != nil {
			return color.NRGBA{}, false
		}
		if strings.HasSuffix(p, "%") {
			n = n * 255 / 100
		}
		ch[i] = clampByte(n)
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, true
}

func parseAlpha(p string) (uint8, error) {
	if strings.HasSuffix(p, "%") {
		n, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
		return clampByte(n * 255 / 100), err
	}
	n, err := strconv.ParseFloat(p, 64)
	return clampByte(n * 255), err
}

func clampByte(n float64) uint8 {
	switch {
	case n <= 0:
		return 0
	case n >= 255:
		return 255
	}
	return uint8(n + 0.5)
}

// cssColor formats a color for markup output.
func cssColor(c color.NRGBA) string {
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("rgba(%d,%d,%d,%.3f)", c.R, c.G, c.B, float64(c.A)/255)
}
