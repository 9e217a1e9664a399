// Package store holds the gorm-backed persistence used by the engagement engine.
// Every read-modify-write runs inside a transaction that locks the row it mutates.
package store

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("store: record not found")

var forUpdate = clause.Locking{Strength: "UPDATE"}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
