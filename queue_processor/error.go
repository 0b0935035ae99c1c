package queue_processor

import "fmt"

// PersistenceError is returned when the snapshot of a pass could not be saved.
// Transfers made during the pass may have happened anyway.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist sync queue: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
