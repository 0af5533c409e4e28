package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Family is one of the small set of font families the renderers support.
type Family string

const (
	FamilySans  Family = "sans"
	FamilySerif Family = "serif"
	FamilyMono  Family = "mono"
)

// FaceKey identifies a typeface within a FontSet.
type FaceKey struct {
	Family Family
	Bold   bool
	Italic bool
}

// Style returns the fpdf style string for the key ("", "B", "I", "BI").
func (k FaceKey) Style() string {
	s := ""
	if k.Bold {
		s += "B"
	}
	if k.Italic {
		s += "I"
	}
	return s
}

// ResolveFamily maps an arbitrary CSS font-family list to a supported family.
// Unknown names fall back to sans.
func ResolveFamily(name string) Family {
	n := strings.ToLower(name)
	switch {
	case n == "":
		return FamilySans
	case strings.Contains(n, "mono"), strings.Contains(n, "courier"),
		strings.Contains(n, "consolas"), strings.Contains(n, "menlo"):
		return FamilyMono
	case strings.Contains(n, "sans"):
		return FamilySans
	case strings.Contains(n, "serif"), strings.Contains(n, "times"),
		strings.Contains(n, "georgia"), strings.Contains(n, "garamond"),
		strings.Contains(n, "playfair"), strings.Contains(n, "baskerville"):
		return FamilySerif
	}
	return FamilySans
}

// FontSet holds parsed TrueType fonts. It is read-only after setup and safe
// for concurrent use; faces are created per render.
type FontSet struct {
	mu    sync.RWMutex
	fonts map[FaceKey]*opentype.Font
	ttf   map[FaceKey][]byte
}

// NewFontSet returns a FontSet preloaded with the Go font family.
func NewFontSet() (*FontSet, error) {
	fs := &FontSet{
		fonts: make(map[FaceKey]*opentype.Font),
		ttf:   make(map[FaceKey][]byte),
	}
	builtin := []struct {
		key FaceKey
		ttf []byte
	}{
		{FaceKey{FamilySans, false, false}, goregular.TTF},
		{FaceKey{FamilySans, true, false}, gobold.TTF},
		{FaceKey{FamilySans, false, true}, goitalic.TTF},
		{FaceKey{FamilySans, true, true}, gobolditalic.TTF},
		{FaceKey{FamilyMono, false, false}, gomono.TTF},
		{FaceKey{FamilyMono, true, false}, gomonobold.TTF},
		{FaceKey{FamilyMono, false, true}, gomonoitalic.TTF},
		{FaceKey{FamilyMono, true, true}, gomonobolditalic.TTF},
	}
	for _, b := range builtin {
		if err := fs.Register(b.key, b.ttf); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

var defaultFonts = sync.OnceValue(func() *FontSet {
	fs, err := NewFontSet()
	if err != nil {
		panic(fmt.Sprintf("engine: builtin fonts: %v", err))
	}
	return fs
})

// Register adds or replaces the font for key.
func (fs *FontSet) Register(key FaceKey, ttf []byte) error {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return fmt.Errorf("parse font %s/%s: %w", key.Family, key.Style(), err)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.fonts[key] = f
	fs.ttf[key] = ttf
	return nil
}

// LoadDir registers TrueType files named <family>[-bold|-italic|-bolditalic].ttf
// from dir. Unknown file names are ignored.
func (fs *FontSet) LoadDir(dir string) error {
	if dir == "" {
		return nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.ttf"))
	if err != nil {
		return fmt.Errorf("list fonts: %w", err)
	}
	for _, p := range paths {
		key, ok := faceKeyFromFile(filepath.Base(p))
		if !ok {
			slog.Debug("ignoring font file", "path", p)
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read font %s: %w", p, err)
		}
		if err := fs.Register(key, data); err != nil {
			return err
		}
		slog.Info("font registered", "family", key.Family, "style", key.Style(), "path", p)
	}
	return nil
}

func faceKeyFromFile(name string) (FaceKey, bool) {
	base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	family, style, _ := strings.Cut(base, "-")
	key := FaceKey{Family: Family(family)}
	switch key.Family {
	case FamilySans, FamilySerif, FamilyMono:
	default:
		return FaceKey{}, false
	}
	switch style {
	case "", "regular":
	case "bold":
		key.Bold = true
	case "italic":
		key.Italic = true
	case "bolditalic":
		key.Bold, key.Italic = true, true
	default:
		return FaceKey{}, false
	}
	return key, true
}

// Resolve returns the closest registered key: the same family with fewer
// style flags first, then sans.
func (fs *FontSet) Resolve(key FaceKey) FaceKey {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	candidates := []FaceKey{
		key,
		{key.Family, key.Bold, false},
		{key.Family, false, key.Italic},
		{key.Family, false, false},
		{FamilySans, key.Bold, key.Italic},
		{FamilySans, key.Bold, false},
		{FamilySans, false, false},
	}
	for _, c := range candidates {
		if _, ok := fs.fonts[c]; ok {
			return c
		}
	}
	return key
}

// TTF returns the raw font bytes for an already resolved key.
func (fs *FontSet) TTF(key FaceKey) []byte {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.ttf[key]
}

func (fs *FontSet) font(key FaceKey) *opentype.Font {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.fonts[key]
}

// faceCache creates font faces for a single render. font.Face values are not
// safe for concurrent use, so a cache never outlives its render call.
type faceCache struct {
	fonts *FontSet
	faces map[faceSize]font.Face
}

type faceSize struct {
	key  FaceKey
	size float64
}

func newFaceCache(fs *FontSet) *faceCache {
	return &faceCache{fonts: fs, faces: make(map[faceSize]font.Face)}
}

// face returns a face at size px (72 DPI, so px equals pt). It falls back to
// basicfont when the font cannot be instantiated.
func (c *faceCache) face(key FaceKey, size float64) font.Face {
	k := faceSize{key: key, size: size}
	if f, ok := c.faces[k]; ok {
		return f
	}
	var face font.Face = basicfont.Face7x13
	if f := c.fonts.font(key); f != nil {
		nf, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingNone,
		})
		if err != nil {
			slog.Warn("font face unavailable, using fallback", "family", key.Family, "size", size, "error", err)
		} else {
			face = nf
		}
	}
	c.faces[k] = face
	return face
}

func (c *faceCache) close() {
	for _, f := range c.faces {
		f.Close()
	}
}

// measure returns the advance width of s in px.
func measure(face font.Face, s string) float64 {
	return fromFixed(font.MeasureString(face, s))
}

func fromFixed(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}
