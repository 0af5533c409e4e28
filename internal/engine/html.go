package engine

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"

	"github.com/disintegration/imaging"
)

// markupTmpl is a standalone printable document. Styles are generated from
// numeric instruction data, never from user input, and are passed as
// template.CSS.
var markupTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
@page { size: {{.PageSize}}; margin: 0; }
html, body { margin: 0; padding: 0; }
.page { position: relative; overflow: hidden; {{.PageStyle}} }
.el { position: absolute; margin: 0; padding: 0; white-space: pre; }
@media print { body { -webkit-print-color-adjust: exact; print-color-adjust: exact; } }
</style>
</head>
<body>
<div class="page">
{{- range .Items}}
{{- if .Src}}
<img class="el" alt="" src="{{.Src}}" style="{{.Style}}">
{{- else if .Text}}
<div class="el" style="{{.Style}}">{{.Text}}</div>
{{- else}}
<div class="el" style="{{.Style}}"></div>
{{- end}}
{{- end}}
</div>
</body>
</html>
`))

type markupPage struct {
	Title     string
	PageSize  template.CSS
	PageStyle template.CSS
	Items     []markupItem
}

type markupItem struct {
	Style template.CSS
	Text  string
	Src   template.URL
}

var cssFamilies = map[Family]string{
	FamilySans:  `"Go", Arial, Helvetica, sans-serif`,
	FamilySerif: `Georgia, "Times New Roman", serif`,
	FamilyMono:  `"Go Mono", "Courier New", monospace`,
}

// encodeHTML writes the page as absolutely positioned markup for manual
// print-to-PDF.
func encodeHTML(page *Page, _ *FontSet) ([]byte, error) {
	title := page.Title
	if title == "" {
		title = "Certificate"
	}
	data := markupPage{
		Title:     title,
		PageSize:  template.CSS(fmt.Sprintf("%spx %spx", num(page.Width), num(page.Height))),
		PageStyle: template.CSS(fmt.Sprintf("width: %spx; height: %spx;", num(page.Width), num(page.Height))),
	}

	for _, in := range page.Instructions {
		var st strings.Builder
		box := func(x, y, w, h float64) {
			fmt.Fprintf(&st, "left: %spx; top: %spx; width: %spx; height: %spx;", num(x), num(y), num(w), num(h))
		}

		switch in.Kind {
		case KindFillRect:
			box(in.X, in.Y, in.W, in.H)
			fmt.Fprintf(&st, " background: %s;", cssColor(in.Color))
			data.Items = append(data.Items, markupItem{Style: template.CSS(st.String())})

		case KindStrokeRect:
			half := in.LineWidth / 2
			box(in.X-half, in.Y-half, in.W+in.LineWidth, in.H+in.LineWidth)
			fmt.Fprintf(&st, " box-sizing: border-box; border: %spx solid %s;", num(in.LineWidth), cssColor(in.Color))
			data.Items = append(data.Items, markupItem{Style: template.CSS(st.String())})

		case KindText:
			fmt.Fprintf(&st, "left: %spx; top: %spx; height: %spx; line-height: %spx;",
				num(in.X), num(in.Y), num(in.H), num(in.H))
			fmt.Fprintf(&st, " font-family: %s; font-size: %spx; color: %s;",
				cssFamilies[in.Face.Family], num(in.Size), cssColor(in.Color))
			if in.Face.Bold {
				st.WriteString(" font-weight: bold;")
			}
			if in.Face.Italic {
				st.WriteString(" font-style: italic;")
			}
			if in.Underline {
				st.WriteString(" text-decoration: underline;")
			}
			data.Items = append(data.Items, markupItem{Style: template.CSS(st.String()), Text: in.Text})

		case KindImage:
			if in.Image == nil {
				continue
			}
			var buf bytes.Buffer
			if err := imaging.Encode(&buf, in.Image, imaging.PNG); err != nil {
				return nil, fmt.Errorf("encode inline image: %w", err)
			}
			box(in.X, in.Y, in.W, in.H)
			data.Items = append(data.Items, markupItem{
				Style: template.CSS(st.String()),
				Src:   template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())),
			})

		case KindLine:
			// Underlines are expressed with text-decoration on the run.
		}
	}

	var out bytes.Buffer
	if err := markupTmpl.Execute(&out, data); err != nil {
		return nil, fmt.Errorf("execute markup template: %w", err)
	}
	return out.Bytes(), nil
}

// num formats a coordinate without trailing zeros.
func num(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
