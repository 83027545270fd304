package repository

import "errors"

// Common repository errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrSnapshotRejected = errors.New("seed snapshot rejected")
)
