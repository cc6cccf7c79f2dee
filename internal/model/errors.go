package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrUnauthorized is returned when the backend rejects the credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInsufficientCredit is returned when a submission is rejected for
	// lack of points.
	ErrInsufficientCredit = errors.New("insufficient credit")
	// ErrAlreadyRunning is returned when an operation that admits a single
	// instance is started twice.
	ErrAlreadyRunning = errors.New("already running")
)
