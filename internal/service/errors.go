package service

import "errors"

var (
	// ErrInvalidInput marks request values the services reject.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoUsage is returned when a drug has an empty usage history.
	ErrNoUsage = errors.New("drug has no usage history")
)
