// Package validate turns request-binding decorator pattern
// (gin's `binding:"..."` struct tags, resolved implicitly on every bound
// request) into a pure function callable outside an HTTP request: the
// batch manager validates structs that didn't arrive via gin, and the
// POST /page handler calls the same function after binding. It is grounded in the same underlying library
// gin uses transitively, go-playground/validator/v10, invoked directly
// instead of through gin's binding layer.
package validate

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var v = validator.New(validator.WithRequiredStructEnabled())

// Struct validates x against its `validate:"..."` tags and returns a
// human-readable violation per failed field, plus the first structural
// error verbatim (for callers that want the raw *validator.ValidationErrors).
func Struct(x any) ([]string, error) {
	err := v.Struct(x)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) {
		return []string{err.Error()}, err
	}

	violations := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		violations = append(violations, strings.ToLower(fe.Field())+" "+describe(fe))
	}
	return violations, err
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	*target = ve
	return true
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid absolute URL"
	case "min":
		return "must be >= " + fe.Param()
	case "max":
		return "must be <= " + fe.Param()
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	case "gtefield":
		return "must be >= " + strings.ToLower(fe.Param())
	default:
		return "failed validation: " + fe.Tag()
	}
}
