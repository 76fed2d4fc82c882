package prompt

import "fmt"

// UnknownKeyError is returned when a render value targets a field the
// template does not declare. The render is rejected before any external
// call is made.
type UnknownKeyError struct {
	Template string
	Key      string
}

func (e UnknownKeyError) Error() string {
	return fmt.Sprintf("template %s: unknown field %q", e.Template, e.Key)
}

// MissingKeyError is returned when a required template field has no value.
type MissingKeyError struct {
	Template string
	Key      string
}

func (e MissingKeyError) Error() string {
	return fmt.Sprintf("template %s: missing required field %q", e.Template, e.Key)
}
