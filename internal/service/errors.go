package service

import "errors"

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPersist wraps storage failures while applying a detection run. The
	// run's transaction has been rolled back.
	ErrPersist = errors.New("persist detection run")
	// ErrAlreadyDecided is returned when a receipt match is no longer pending.
	ErrAlreadyDecided = errors.New("receipt match already decided")
)
