// Package validate wraps go-playground/validator for the handful of
// format checks the domain delegates to a standard library.
package validate

import "github.com/go-playground/validator/v10"

var v = validator.New(validator.WithRequiredStructEnabled())

// Email reports whether addr is a syntactically valid email address.
func Email(addr string) bool {
	return v.Var(addr, "required,email") == nil
}
