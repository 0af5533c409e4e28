// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package engine renders certificate templates. A template is a canvas of
// positioned elements (text, dynamic fields, rectangles, images, QR codes);
// rendering resolves {{field}} tokens against caller-supplied values,
// composes a backend-neutral list of draw instructions and hands it to an
// output adapter (raster PDF, vector PDF, PNG, JPEG or HTML).
//
// Rendering never fails because of a single bad element. Unknown element
// types are skipped, missing fields render empty, and unreachable images
// are replaced by a placeholder. Only a template with a non-positive
// canvas is rejected.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// Engine renders templates. It holds no per-render state and is safe for
// concurrent use.
type Engine struct {
	fonts       *FontSet
	images      ImageSource
	adapters    map[Format]Adapter
	cache       *templateCache
	concurrency int
}

// Option configures an Engine.
type Option func(*Engine)

// WithFonts replaces the builtin Go font set.
func WithFonts(fs *FontSet) Option {
	return func(e *Engine) { e.fonts = fs }
}

// WithImageSource sets where element and background images are read from.
func WithImageSource(src ImageSource) Option {
	return func(e *Engine) { e.images = src }
}

// WithConcurrency bounds how many renders RenderBatch runs at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithAdapter registers or overrides the adapter for a format.
func WithAdapter(f Format, a Adapter) Option {
	return func(e *Engine) { e.adapters[f] = a }
}

// New creates an engine with the builtin adapters, the Go fonts and an HTTP
// image loader using DefaultFetchTimeout.
func New(opts ...Option) *Engine {
	e := &Engine{
		adapters:    builtinAdapters(),
		cache:       newTemplateCache(),
		concurrency: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fonts == nil {
		e.fonts = defaultFonts()
	}
	if e.images == nil {
		e.images = NewImageLoader(DefaultFetchTimeout, nil)
	}
	return e
}

// Fonts returns the font set used for measurement and embedding.
func (e *Engine) Fonts() *FontSet {
	return e.fonts
}

// Compose resolves fields and lays out the page without serializing it.
func (e *Engine) Compose(ctx context.Context, t *Template, values FieldValues) (*Page, error) {
	return compose(ctx, t, WithAliases(values), e.fonts, e.images)
}

// Render composes the template with values and serializes it in format.
func (e *Engine) Render(ctx context.Context, t *Template, values FieldValues, format Format) ([]byte, error) {
	return e.render(ctx, t, values, format, e.images)
}

func (e *Engine) render(ctx context.Context, t *Template, values FieldValues, format Format, images ImageSource) ([]byte, error) {
	adapter, ok := e.adapters[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	start := time.Now()
	page, err := compose(ctx, t, WithAliases(values), e.fonts, images)
	if err != nil {
		return nil, fmt.Errorf("compose page: %w", err)
	}
	out, err := adapter.Encode(page, e.fonts)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	logRender(t, format, len(page.Instructions), len(out), time.Since(start))
	return out, nil
}

// Source is a template as persisted: canvas columns plus the raw element
// JSON written by the designer.
type Source struct {
	ID              string
	Version         int
	Width           float64
	Height          float64
	BackgroundColor string
	BackgroundImage string
	Elements        []byte
}

// Load parses a stored template, consulting the L1 cache by ID and version.
func (e *Engine) Load(src Source) (*Template, error) {
	if src.ID != "" {
		if t := e.cache.get(src.ID, src.Version); t != nil {
			return t, nil
		}
	}

	t := &Template{
		ID:              src.ID,
		Version:         src.Version,
		Width:           src.Width,
		Height:          src.Height,
		Background:      parseColorOr(src.BackgroundColor, white),
		BackgroundImage: src.BackgroundImage,
		Elements:        ParseElements(src.Elements),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if src.ID != "" {
		e.cache.put(src.ID, src.Version, t)
	}
	return t, nil
}

// InvalidateTemplate drops every cached version of a template. Called by
// handlers after a template is updated or deleted.
func (e *Engine) InvalidateTemplate(id string) {
	e.cache.invalidate(id)
}

// InvalidateAllTemplates clears the L1 cache.
func (e *Engine) InvalidateAllTemplates() {
	e.cache.invalidateAll()
}

// Job is one render in a batch.
type Job struct {
	Key      string
	Template *Template
	Values   FieldValues
}

// Result is the outcome of one Job. Err is per job; a failed job does not
// cancel its siblings.
type Result struct {
	Key  string
	Data []byte
	Err  error
}

// RenderBatch renders jobs in parallel, bounded by the engine concurrency.
// Results keep the order of jobs. Images are fetched at most once per batch.
// The returned error is non-nil only when ctx is cancelled.
func (e *Engine) RenderBatch(ctx context.Context, jobs []Job, format Format) ([]Result, error) {
	results := make([]Result, len(jobs))
	images := newImageMemo(e.images)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := e.render(gctx, job.Template, job.Values, format, images)
			results[i] = Result{Key: job.Key, Data: data, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("render batch: %w", err)
	}
	return results, nil
}

func logRender(t *Template, format Format, instructions, size int, elapsed time.Duration) {
	slog.Debug("template rendered",
		"template", t.ID,
		"version", t.Version,
		"format", format,
		"instructions", instructions,
		"bytes", size,
		"duration", elapsed,
	)
}
