package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(w, h, color.NRGBA{R: 1, G: 2, B: 3, A: 255})); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type fakeObjects struct {
	bucket, key string
	data        []byte
}

func (f *fakeObjects) Download(_ context.Context, bucket, key string) ([]byte, error) {
	f.bucket, f.key = bucket, key
	if f.data == nil {
		return nil, errors.New("not found")
	}
	return f.data, nil
}

func TestImageLoader(t *testing.T) {
	payload := pngBytes(t, 7, 5)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(payload)
		case "/slow.png":
			time.Sleep(300 * time.Millisecond)
			w.Write(payload)
		case "/garbage.png":
			w.Write([]byte("definitely not an image"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	objects := &fakeObjects{data: payload}
	loader := NewImageLoader(100*time.Millisecond, objects)
	ctx := context.Background()

	tests := []struct {
		name    string
		uri     string
		wantErr bool
	}{
		{"http ok", srv.URL + "/ok.png", false},
		{"http 404", srv.URL + "/missing.png", true},
		{"http timeout", srv.URL + "/slow.png", true},
		{"not an image", srv.URL + "/garbage.png", true},
		{"data uri", "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload), false},
		{"malformed data uri", "data:image/png;base64", true},
		{"s3 object", "s3://certificates/assets/seal.png", false},
		{"unsupported scheme", "ftp://example.com/x.png", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := loader.Load(ctx, tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 7 || b.Dy() != 5 {
				t.Errorf("size: got %v, want 7x5", b)
			}
		})
	}

	if objects.bucket != "certificates" || objects.key != "assets/seal.png" {
		t.Errorf("s3 uri split: bucket %q key %q", objects.bucket, objects.key)
	}

	noStorage := NewImageLoader(0, nil)
	if _, err := noStorage.Load(ctx, "s3://bucket/key.png"); err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Errorf("expected storage not configured error, got %v", err)
	}
}

func TestImageMemo(t *testing.T) {
	src := &stubImages{images: map[string]image.Image{"a": solid(2, 2, white)}}
	memo := newImageMemo(src)
	for i := 0; i < 5; i++ {
		if _, err := memo.Load(context.Background(), "a"); err != nil {
			t.Fatalf("Load: %v", err)
		}
		if _, err := memo.Load(context.Background(), "b"); err == nil {
			t.Fatal("expected error for missing image")
		}
	}
	if n := src.loads.Load(); n != 2 {
		t.Errorf("underlying loads: got %d, want 2", n)
	}
}

func TestFontSetFallback(t *testing.T) {
	fs, err := NewFontSet()
	if err != nil {
		t.Fatalf("NewFontSet: %v", err)
	}
	tests := []struct {
		in, want FaceKey
	}{
		{FaceKey{FamilySans, true, true}, FaceKey{FamilySans, true, true}},
		{FaceKey{FamilyMono, true, false}, FaceKey{FamilyMono, true, false}},
		{FaceKey{FamilySerif, true, false}, FaceKey{FamilySans, true, false}},
		{FaceKey{FamilySerif, false, false}, FaceKey{FamilySans, false, false}},
	}
	for _, tt := range tests {
		if got := fs.Resolve(tt.in); got != tt.want {
			t.Errorf("Resolve(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}

	if err := fs.Register(FaceKey{Family: FamilySerif}, []byte("not a font")); err == nil {
		t.Error("expected error registering garbage font")
	}
	if err := fs.LoadDir(t.TempDir()); err != nil {
		t.Errorf("LoadDir on empty dir: %v", err)
	}
}

func TestFaceKeyFromFile(t *testing.T) {
	tests := []struct {
		name string
		want FaceKey
		ok   bool
	}{
		{"serif.ttf", FaceKey{Family: FamilySerif}, true},
		{"Serif-Bold.ttf", FaceKey{Family: FamilySerif, Bold: true}, true},
		{"mono-bolditalic.ttf", FaceKey{Family: FamilyMono, Bold: true, Italic: true}, true},
		{"sans-regular.ttf", FaceKey{Family: FamilySans}, true},
		{"script.ttf", FaceKey{}, false},
		{"serif-condensed.ttf", FaceKey{}, false},
	}
	for _, tt := range tests {
		got, ok := faceKeyFromFile(tt.name)
		if ok != tt.ok || got != tt.want {
			t.Errorf("faceKeyFromFile(%q) = %+v, %v", tt.name, got, ok)
		}
	}
}
