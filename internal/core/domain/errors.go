package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrValidation             = errors.New("validation failed")
	ErrStoreUnavailable       = errors.New("document store unavailable")
	ErrToolUnavailable        = errors.New("tool unavailable")
	ErrTimeout                = errors.New("operation timed out")
	ErrPlanningFailed         = errors.New("query planning failed")
	ErrInvalidProjectionInput = errors.New("invalid projection input")
	ErrIngestionPartial       = errors.New("ingestion partially failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IngestionPartialError reports how many chunks were durably stored before a
// mid-batch failure. Chunks stored before the failure point are never rolled back.
type IngestionPartialError struct {
	StoredChunks int
	Cause        error
}

func (e *IngestionPartialError) Error() string {
	return fmt.Sprintf("ingestion stopped after storing %d chunks: %v", e.StoredChunks, e.Cause)
}

func (e *IngestionPartialError) Unwrap() error { return e.Cause }

func (e *IngestionPartialError) Is(target error) bool { return target == ErrIngestionPartial }
