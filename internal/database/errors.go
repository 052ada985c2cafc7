package database

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound               = errors.New("record not found")
	ErrNotAvailable           = errors.New("tour is fully booked for this date")
	ErrDuplicate              = errors.New("record already exists")
	ErrConcurrentModification = errors.New("booking was modified concurrently")
)

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
