package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

type Issue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Error carries field-level issues back to the transport layer.
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Field+": "+issue.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *Error) Add(field, reason string) {
	e.Issues = append(e.Issues, Issue{Field: field, Reason: reason})
}

// OrNil returns nil when no issue was collected.
func (e *Error) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	sort.SliceStable(e.Issues, func(i, j int) bool {
		if e.Issues[i].Field == e.Issues[j].Field {
			return e.Issues[i].Reason < e.Issues[j].Reason
		}
		return e.Issues[i].Field < e.Issues[j].Field
	})
	return e
}

var (
	once     sync.Once
	instance *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
		instance = v
	})
	return instance
}

// Struct validates struct tags and returns an *Error listing every failing field.
func Struct(payload any) *Error {
	out := &Error{}
	err := engine().Struct(payload)
	if err == nil {
		return out
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		out.Add("", err.Error())
		return out
	}
	for _, fe := range fieldErrs {
		out.Add(fe.Field(), reason(fe))
	}
	return out
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "uuid", "uuid4":
		return "must be a valid id"
	case "email":
		return "must be a valid email address"
	case "datetime":
		if fe.Param() == "15:04" {
			return "must be a valid time in HH:MM format"
		}
		return "must be a valid date in YYYY-MM-DD format"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return "is invalid"
	}
}
