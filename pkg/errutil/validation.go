package errutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FromBinding converts a gin binding failure into a 400 carrying one detail
// per offending field.
func FromBinding(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]Detail, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, Detail{
				Field:   lowerFirst(fe.Field()),
				Message: fieldMessage(fe),
			})
		}
		return ValidationFailed("invalid input body", err, WithDetails(details...))
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return BadRequest("invalid input body", err, WithDetails(Detail{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("must be %s", typeErr.Type.String()),
		}))
	case errors.As(err, &syntaxErr):
		return BadRequest("invalid input body", err)
	}

	return BadRequest("invalid input body", err)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "email":
		return "must be a valid email"
	case "e164":
		return "must be an E.164 phone number"
	default:
		return "failed " + fe.Tag()
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
