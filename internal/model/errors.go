package model

import "errors"

var (
	ErrStorageRead  = errors.New("storage read failed")
	ErrStorageWrite = errors.New("storage write failed")
	ErrNotFound     = errors.New("report not found")
	ErrValidation   = errors.New("validation failed")
)
