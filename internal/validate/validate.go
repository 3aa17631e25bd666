// Package validate provides typed input-constraint checks used by the
// command dispatcher and the message router. Every failure carries a
// message suitable for direct user-facing output.
package validate

import (
	"fmt"
	"strconv"
	"strings"
)

// Error is a validation failure. Its message is safe to return to users.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func fail(field, format string, args ...any) error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// String checks a string value against length bounds. When required is
// false an empty value is vacuously valid.
func String(field, value string, minLen, maxLen int, required bool) error {
	if value == "" {
		if required {
			return fail(field, "is required")
		}
		return nil
	}
	if len(value) < minLen {
		return fail(field, "must be at least %d characters", minLen)
	}
	if maxLen > 0 && len(value) > maxLen {
		return fail(field, "must be at most %d characters", maxLen)
	}
	return nil
}

// Number coerces raw to a float and checks range. Coercion failure is a
// validation error, not a panic.
func Number(field, raw string, min, max float64, required bool) (float64, error) {
	if raw == "" {
		if required {
			return 0, fail(field, "is required")
		}
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fail(field, "must be a number, got %q", raw)
	}
	if v < min || v > max {
		return 0, fail(field, "must be between %g and %g", min, max)
	}
	return v, nil
}

// Int coerces raw to an integer and checks range.
func Int(field, raw string, min, max int, required bool) (int, error) {
	if raw == "" {
		if required {
			return 0, fail(field, "is required")
		}
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fail(field, "must be an integer, got %q", raw)
	}
	if v < min || v > max {
		return 0, fail(field, "must be between %d and %d", min, max)
	}
	return v, nil
}

// Enum checks membership of value in allowed, case-insensitively.
func Enum(field, value string, allowed []string, required bool) error {
	if value == "" {
		if required {
			return fail(field, "is required")
		}
		return nil
	}
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return nil
		}
	}
	return fail(field, "must be one of: %s", strings.Join(allowed, ", "))
}

// Blob checks a binary payload against a size cap.
func Blob(field string, data []byte, maxBytes int, required bool) error {
	if len(data) == 0 {
		if required {
			return fail(field, "is required")
		}
		return nil
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return fail(field, "exceeds maximum size of %d bytes", maxBytes)
	}
	return nil
}
