package handler

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"taskboard/internal/apperr"
)

var registerValidatorsOnce sync.Once

// registerValidators adds the custom tags used by request structs to gin's
// validator engine.
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("duedate", func(fl validator.FieldLevel) bool {
			_, err := parseDueDate(fl.Field().String())
			return err == nil
		})
	})
}

var dueDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

// parseDueDate accepts a calendar date or a full timestamp.
func parseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("invalid due date")
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}

// bindingError turns a binding failure into a validation error reporting
// every failing field. messages is keyed by "Field.tag".
func bindingError(err error, messages map[string]string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Validation("Request body too large", nil)
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperr.Validation("Invalid input", nil)
	}

	fields := make(map[string]string, len(ve))
	first := ""
	for _, fe := range ve {
		key := lowerFirst(fe.Field())
		if _, seen := fields[key]; seen {
			continue
		}
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = "Invalid " + key
		}
		fields[key] = msg
		if first == "" {
			first = msg
		}
	}
	return apperr.Validation(first, fields)
}
