package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameDetached signals that the review frame was replaced by a navigation.
	ErrFrameDetached = errors.New("review frame detached")
	// ErrExtractionEmpty signals that no selector strategy matched any review node.
	ErrExtractionEmpty = errors.New("no review nodes matched")
	// ErrNotFound signals that the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrQuotaExhausted signals a tenant with no remaining reviews or credits.
	ErrQuotaExhausted = errors.New("quota exhausted")
)

// NavigationError is returned when neither the embedded frame nor the mobile
// fallback page could be reached.
type NavigationError struct {
	PlaceID  string
	Primary  error
	Fallback error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate place %s: primary: %v; fallback: %v", e.PlaceID, e.Primary, e.Fallback)
}

// Unwrap exposes both causes to errors.Is/As.
func (e *NavigationError) Unwrap() []error {
	var errs []error
	if e.Primary != nil {
		errs = append(errs, e.Primary)
	}
	if e.Fallback != nil {
		errs = append(errs, e.Fallback)
	}
	return errs
}
