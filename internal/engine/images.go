package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/webp" // register webp decoding for uploaded assets
)

// DefaultFetchTimeout bounds a single image fetch.
const DefaultFetchTimeout = 5 * time.Second

// maxImageBytes caps how much of a remote image is read.
const maxImageBytes = 20 << 20

// ObjectFetcher reads objects from a bucket. It is satisfied by the S3
// storage client and lets templates reference s3://bucket/key images.
type ObjectFetcher interface {
	Download(ctx context.Context, bucket, key string) ([]byte, error)
}

// ImageSource loads an image by URI.
type ImageSource interface {
	Load(ctx context.Context, uri string) (image.Image, error)
}

// ImageLoader fetches images over HTTP(S), from data: URIs and, when an
// ObjectFetcher is configured, from s3:// URIs. Each fetch is time-bounded.
type ImageLoader struct {
	client  *http.Client
	timeout time.Duration
	objects ObjectFetcher
}

// NewImageLoader creates a loader. A zero timeout uses DefaultFetchTimeout;
// objects may be nil.
func NewImageLoader(timeout time.Duration, objects ObjectFetcher) *ImageLoader {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &ImageLoader{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		objects: objects,
	}
}

// Load fetches and decodes the image at uri.
func (l *ImageLoader) Load(ctx context.Context, uri string) (image.Image, error) {
	data, err := l.fetch(ctx, uri)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, errors.New("decode image: empty bitmap")
	}
	return img, nil
}

func (l *ImageLoader) fetch(ctx context.Context, uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "data:") {
		return decodeDataURI(uri)
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse image url: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	switch u.Scheme {
	case "http", "https":
		return l.fetchHTTP(ctx, u.String())
	case "s3":
		if l.objects == nil {
			return nil, errors.New("s3 image requested but storage is not configured")
		}
		data, err := l.objects.Download(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
		if err != nil {
			return nil, fmt.Errorf("download image object: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported image url scheme %q", u.Scheme)
	}
}

func (l *ImageLoader) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, errors.New("image exceeds size limit")
	}
	return data, nil
}

func decodeDataURI(uri string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data uri")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data uri: %w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data uri: %w", err)
	}
	return []byte(s), nil
}

// imageMemo shares decoded images across the renders of one batch so a
// background used by every certificate is fetched once.
type imageMemo struct {
	src ImageSource

	mu      sync.Mutex
	entries map[string]*memoEntry
}

type memoEntry struct {
	once sync.Once
	img  image.Image
	err  error
}

func newImageMemo(src ImageSource) *imageMemo {
	return &imageMemo{src: src, entries: make(map[string]*memoEntry)}
}

func (m *imageMemo) Load(ctx context.Context, uri string) (image.Image, error) {
	m.mu.Lock()
	e, ok := m.entries[uri]
	if !ok {
		e = &memoEntry{}
		m.entries[uri] = e
	}
	m.mu.Unlock()

	e.once.Do(func() {
		e.img, e.err = m.src.Load(ctx, uri)
	})
	return e.img, e.err
}
