package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransient     = errors.New("transient failure")
	ErrAuth          = errors.New("authentication error")
	ErrValidation    = errors.New("validation error")
	ErrPrinter       = errors.New("printer error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTerminal reports whether a submission error should stop processing and
// route the work item to the error directory. Only transient failures are
// retryable; by the time a transient error surfaces here the carrier client
// has already exhausted its retry budget, so the caller treats it as terminal
// too but records the distinct kind.
func IsTerminal(err error) bool {
	return !errors.Is(err, ErrTransient)
}

// Kind returns the short taxonomy name for an error, used in journal rows and
// error sidecar files.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPrinter):
		return "printer"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
