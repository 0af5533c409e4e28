// Command certrender renders a certificate template file offline, without
// the database or the HTTP server.
//
//	certrender -template t.json -values v.yaml -format png -out out.png
//
// Values are a flat YAML (or JSON) map of field name to value. Without
// -values the preview sample values are used.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"certforge/internal/engine"
)

func main() {
	// Logs go to stderr so stdout can carry the rendered document.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(context.Background(), os.Args[1:], os.Stdout, logger); err != nil {
		slog.Error("render failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("certrender", flag.ContinueOnError)
	templatePath := fs.String("template", "", "template JSON file (required)")
	valuesPath := fs.String("values", "", "YAML or JSON field values (sample values if empty)")
	formatName := fs.String("format", "pdf", "output format: pdf, pdf-vector, png, jpeg, html")
	output := fs.String("out", "", "output file (stdout if empty)")
	fontDir := fs.String("fonts", "", "directory of extra TTF fonts")
	timeout := fs.Duration("image-timeout", engine.DefaultFetchTimeout, "per-image fetch timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *templatePath == "" {
		fs.Usage()
		return fmt.Errorf("-template is required")
	}

	format, err := engine.ParseFormat(*formatName)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(*templatePath)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	tmpl, err := engine.ParseTemplate(data)
	if err != nil {
		return err
	}

	values := engine.SampleValues(time.Now())
	if *valuesPath != "" {
		raw, err := os.ReadFile(*valuesPath)
		if err != nil {
			return fmt.Errorf("read values: %w", err)
		}
		if values, err = parseValues(raw); err != nil {
			return err
		}
	}

	fonts, err := engine.NewFontSet()
	if err != nil {
		return fmt.Errorf("load fonts: %w", err)
	}
	if *fontDir != "" {
		if err := fonts.LoadDir(*fontDir); err != nil {
			return fmt.Errorf("load fonts from %s: %w", *fontDir, err)
		}
	}
	eng := engine.New(
		engine.WithFonts(fonts),
		engine.WithImageSource(engine.NewImageLoader(*timeout, nil)),
	)

	out, err := eng.Render(ctx, tmpl, values, format)
	if err != nil {
		return err
	}

	if *output == "" {
		_, err = stdout.Write(out)
		return err
	}
	if err := os.WriteFile(*output, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	logger.Info("certificate written", "format", format, "path", *output, "bytes", len(out))
	return nil
}

// parseValues decodes a flat field map. Scalars are stringified; dates
// take the certificate date layout.
func parseValues(data []byte) (engine.FieldValues, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode values: %w", err)
	}
	values := make(engine.FieldValues, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case nil:
			values[k] = ""
		case string:
			values[k] = v
		case time.Time:
			values[k] = engine.FormatDate(v)
		case map[string]any, []any:
			return nil, fmt.Errorf("value %q must be a scalar", k)
		default:
			values[k] = fmt.Sprint(v)
		}
	}
	return values, nil
}
