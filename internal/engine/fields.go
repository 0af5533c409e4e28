package engine

import (
	"regexp"
	"strings"
)

// FieldValues maps a field name to its display string for one render.
type FieldValues map[string]string

// tokenPattern matches {{fieldName}} placeholders. Surrounding whitespace
// inside the braces is tolerated.
var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// legacyAliases map old placeholder names to the canonical field they read.
var legacyAliases = map[string]string{
	"date":         "completionDate",
	"studentName":  "userName",
	"studentEmail": "userEmail",
}

// Resolve substitutes every token in content. Tokens without a value become
// the empty string so placeholder syntax never reaches the output.
func Resolve(content string, values FieldValues) string {
	if !strings.Contains(content, "{{") {
		return content
	}
	return tokenPattern.ReplaceAllStringFunc(content, func(tok string) string {
		name := tokenPattern.FindStringSubmatch(tok)[1]
		return values[name]
	})
}

// Tokens lists the distinct field names referenced by content, in order of
// first appearance.
func Tokens(content string) []string {
	matches := tokenPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// FieldName returns the field a dynamic element is bound to: the explicit
// fieldName when set, otherwise the first token found in its content.
func FieldName(e Element) string {
	if e.FieldName != "" {
		return e.FieldName
	}
	if toks := Tokens(e.Content); len(toks) > 0 {
		return toks[0]
	}
	return ""
}

// ResolveElement returns the text an element displays. Content is always
// scanned for tokens; an explicit fieldName on a dynamic field replaces the
// content wholesale. Without a value for that field, token content is still
// resolved and literal content renders empty.
func ResolveElement(e Element, values FieldValues) string {
	if e.IsDynamic() && e.FieldName != "" {
		if v, ok := values[e.FieldName]; ok {
			return v
		}
		if len(Tokens(e.Content)) == 0 {
			return ""
		}
	}
	return Resolve(e.Content, values)
}

// WithAliases returns a copy of values that also answers the legacy
// placeholder names. Explicit values for an alias are never overwritten.
func WithAliases(values FieldValues) FieldValues {
	out := make(FieldValues, len(values)+len(legacyAliases))
	for k, v := range values {
		out[k] = v
	}
	for alias, canonical := range legacyAliases {
		if _, ok := out[alias]; ok {
			continue
		}
		if v, ok := values[canonical]; ok {
			out[alias] = v
		}
	}
	return out
}

// TemplateFields lists every field referenced by the template's visible
// elements.
func TemplateFields(t *Template) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, el := range t.Visible() {
		if el.IsDynamic() {
			add(el.FieldName)
		}
		for _, n := range Tokens(el.Content) {
			add(n)
		}
	}
	return names
}
