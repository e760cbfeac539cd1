package pipeline

import "fmt"

// InputError: empty or unreadable source text. Nothing is written.
type InputError struct{ Err error }

func (e *InputError) Error() string { return fmt.Sprintf("input error: %v", e.Err) }
func (e *InputError) Unwrap() error { return e.Err }

// ClassifierError: the classification backend was unreachable or answered
// garbage. The run dies without a partial table.
type ClassifierError struct{ Err error }

func (e *ClassifierError) Error() string { return fmt.Sprintf("classifier error: %v", e.Err) }
func (e *ClassifierError) Unwrap() error { return e.Err }

// StorageError: local write or remote transfer failed. Remote reports whether
// it was the best-effort upload leg (non-terminal for the run).
type StorageError struct {
	Err    error
	Remote bool
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage error: %v", e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }
