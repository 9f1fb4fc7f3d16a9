package domain

import "errors"

// Domain errors shared by storage, session and transport layers.
var (
	ErrCardNotFound     = errors.New("card not found")
	ErrInvalidCard      = errors.New("english and romanian text are required")
	ErrNoFieldsToUpdate = errors.New("no valid fields to update")
	ErrNoCards          = errors.New("no cards available")
	ErrSourceNotFound   = errors.New("source not found")
	ErrInvalidSource    = errors.New("source path cannot be empty")
)
