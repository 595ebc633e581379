package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers classifying how a per-archive pass ended. ErrValidationSkip
// is not a failure: the archive was bypassed on purpose. ErrStoreCorrupt is
// logged at the store boundary and never propagated to callers.
var (
	ErrValidationSkip = errors.New("validation skip")
	ErrExtraction     = errors.New("extraction failure")
	ErrPacking        = errors.New("packing failure")
	ErrReplace        = errors.New("replace failure")
	ErrBreakerAbort   = errors.New("circuit breaker abort")
	ErrStoreCorrupt   = errors.New("store corruption")
	ErrExternalTool   = errors.New("external tool error")
	ErrTransient      = errors.New("transient failure")
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

// IsSkip reports whether err represents a deliberate bypass rather than a
// failure.
func IsSkip(err error) bool {
	return errors.Is(err, ErrValidationSkip)
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
