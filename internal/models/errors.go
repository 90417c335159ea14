package models

import (
	"errors"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation error")
	ErrInvalidState = errors.New("invalid state transition")
	ErrJobsDisabled = errors.New("background jobs are not configured")
)
