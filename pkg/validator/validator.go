// Package validator configures go-playground/validator the way request
// structs expect: field errors are named after their JSON keys.
package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// New returns a validator that reports JSON field names.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(JSONFieldName)
	return v
}

// JSONFieldName names struct fields by their json tag.
func JSONFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

// Fields flattens validation errors into field -> failing tag.
func Fields(err error) map[string]string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[e.Namespace()] = e.Tag()
	}
	return out
}
