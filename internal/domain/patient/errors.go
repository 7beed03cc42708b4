package patient

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no record matches the predicates.
	ErrNotFound = errors.New("patient not found")
	// ErrAmbiguous is returned when a single-record operation matches more
	// than one record.
	ErrAmbiguous = errors.New("multiple patients found")
)

// ValidationError reports a request that cannot be applied as given.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// StorageError wraps a failure to read, parse or write the backing document.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("patient store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
