package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a requested row doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a uniqueness constraint fails
	ErrDuplicate = errors.New("duplicate entry")

	// ErrStatusConflict is returned when a status-guarded update matched no
	// rows because the entity moved to another status first
	ErrStatusConflict = errors.New("status changed by another request")

	// ErrForeignKey is returned when a referenced row is missing
	ErrForeignKey = errors.New("foreign key violation")
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
