package apperror

import (
	stderrors "errors"
	"net/http"
	"regexp"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var errorCodePattern = regexp.MustCompile(`^[A-Z_.]*[0-9]*$`)

// Violation describes one failed field. Constraints maps a rule name to its
// message. Codes, when present, take precedence over constraint messages
// when resolving the representative sub status.
type Violation struct {
	Field       string            `json:"field"`
	Value       any               `json:"value,omitempty"`
	Constraints map[string]string `json:"constraints,omitempty"`
	Codes       []string          `json:"codes,omitempty"`
	Children    []Violation       `json:"children,omitempty"`
}

// Validation builds a 400 error whose code is the representative sub status
// of the violations.
func Validation(violations []Violation, message ...string) *Error {
	subStatus := SolveErrorCode(violations)
	if violations == nil {
		violations = []Violation{}
	}
	return New("ValidationError", messageOr(message, CodeValidation), http.StatusBadRequest, subStatus,
		WithContext(map[string]any{
			"subStatus": subStatus,
			"errors":    violations,
		}),
	)
}

// SolveErrorCode picks the lexicographically smallest constraint message that
// looks like an error code, falling back to VALIDATION_ERROR.
func SolveErrorCode(violations []Violation) string {
	var candidates []string
	for _, msg := range collectMessages(violations) {
		if msg != "" && errorCodePattern.MatchString(msg) {
			candidates = append(candidates, msg)
		}
	}
	if len(candidates) == 0 {
		return CodeValidation
	}
	sort.Strings(candidates)
	return candidates[0]
}

func collectMessages(violations []Violation) []string {
	var out []string
	for _, v := range violations {
		if len(v.Codes) > 0 {
			out = append(out, v.Codes...)
		} else {
			for _, msg := range v.Constraints {
				out = append(out, msg)
			}
		}
		if len(v.Children) > 0 {
			out = append(out, collectMessages(v.Children)...)
		}
	}
	return out
}

// FromValidation converts ozzo validation errors into a Validation error.
// It returns false when err is not a validation failure, including ozzo
// internal errors which signal a broken rule rather than bad input.
func FromValidation(err error, message ...string) (*Error, bool) {
	if err == nil {
		return nil, false
	}

	var internal validation.InternalError
	if stderrors.As(err, &internal) {
		return nil, false
	}

	var errs validation.Errors
	if stderrors.As(err, &errs) {
		return Validation(violationsFrom(errs), message...), true
	}

	var single validation.Error
	if stderrors.As(err, &single) {
		return Validation([]Violation{leafViolation("", single)}, message...), true
	}

	return nil, false
}

func violationsFrom(errs validation.Errors) []Violation {
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	out := make([]Violation, 0, len(fields))
	for _, field := range fields {
		err := errs[field]
		if err == nil {
			continue
		}

		var nested validation.Errors
		if stderrors.As(err, &nested) {
			out = append(out, Violation{Field: field, Children: violationsFrom(nested)})
			continue
		}

		var verr validation.Error
		if stderrors.As(err, &verr) {
			out = append(out, leafViolation(field, verr))
			continue
		}

		out = append(out, Violation{
			Field:       field,
			Constraints: map[string]string{"invalid": err.Error()},
		})
	}
	return out
}

func leafViolation(field string, verr validation.Error) Violation {
	rule := verr.Code()
	if rule == "" {
		rule = "invalid"
	}
	return Violation{
		Field:       field,
		Constraints: map[string]string{rule: verr.Error()},
	}
}
