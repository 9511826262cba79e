package store

import "fmt"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = fmt.Errorf("not found")

// ErrConflict is returned when a unique constraint is violated.
var ErrConflict = fmt.Errorf("conflict")
