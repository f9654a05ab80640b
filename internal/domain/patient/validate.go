package patient

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Issue is one field-level problem, shaped like the messages the web client
// already renders: {"path": ["email"], "message": "Invalid email"}.
type Issue struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, strings.Join(is.Path, ".")+": "+is.Message)
	}
	return "invalid patient: " + strings.Join(parts, "; ")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// dobLayouts are tried in order; a bare date is read as midnight UTC.
var dobLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

func parseDOB(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// check validates in. When create is true every field except medicalNotes
// must be present.
func check(v *validator.Validate, in Input, create bool) error {
	var issues []Issue

	if create {
		required := []struct {
			name  string
			value *string
		}{
			{"name", in.Name}, {"email", in.Email}, {"phone", in.Phone}, {"dob", in.DOB},
		}
		for _, r := range required {
			if r.value == nil {
				issues = append(issues, Issue{Path: []string{r.name}, Message: "Required"})
			}
		}
	}

	if err := v.Struct(in); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("validate patient: %w", err)
		}
		for _, fe := range verrs {
			issues = append(issues, Issue{Path: []string{fe.Field()}, Message: issueMessage(fe)})
		}
	}

	if in.DOB != nil {
		if _, ok := parseDOB(*in.DOB); !ok {
			issues = append(issues, Issue{Path: []string{"dob"}, Message: "Invalid date"})
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

func issueMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return "Invalid email"
	case "min":
		return fmt.Sprintf("String must contain at least %s character(s)", fe.Param())
	default:
		return "Invalid value"
	}
}
