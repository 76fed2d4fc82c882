// Package prompt provides typed prompt-template descriptors. A template
// declares its placeholder fields up front; rendering rejects any value for
// an undeclared field before a single external call is made, and fails when
// a required field is absent.
package prompt

import (
	"strings"
)

// Template is a prompt template with a declared field set.
type Template struct {
	// Name identifies the template in errors and logs.
	Name string

	// Text is the template body. Placeholders are written {field}.
	Text string

	// Fields maps each declared placeholder name to whether it is required.
	Fields map[string]bool
}

// Render substitutes values into the template.
// A value key not declared in Fields fails with UnknownKeyError; a missing
// required field fails with MissingKeyError.
func (t Template) Render(values map[string]string) (string, error) {
	for key := range values {
		if _, ok := t.Fields[key]; !ok {
			return "", UnknownKeyError{Template: t.Name, Key: key}
		}
	}

	for field, required := range t.Fields {
		if !required {
			continue
		}
		if _, ok := values[field]; !ok {
			return "", MissingKeyError{Template: t.Name, Key: field}
		}
	}

	pairs := make([]string, 0, 2*len(values))
	for key, value := range values {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(t.Text), nil
}
