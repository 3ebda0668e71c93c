package util

import (
	"bytes"
	"strings"
	"text/template"
)

// RenderTemplate substitutes template variables in prompt text using Go's
// text/template package over the session state map. This lives in internal to
// avoid committing to public API stability prematurely.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return text, nil
	}

	tmpl, err := template.New("prompt").Option("missingkey=zero").Funcs(template.FuncMap{
		"default": func(defaultVal any, val any) any {
			if val == nil || val == "" {
				return defaultVal
			}
			return val
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
	}).Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, state); err != nil {
		return "", err
	}

	// missingkey=zero leaves "<no value>" for nil map entries; prompts want
	// absent variables to render empty instead.
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}
