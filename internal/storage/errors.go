// Package storage implements the engine stores over gorm and in memory.
package storage

import (
	"errors"

	"gorm.io/gorm"

	"github.com/example/domestyx/internal/apperr"
)

var (
	errDuplicate  = apperr.Conflict("duplicate", "record already exists")
	errEmailTaken = apperr.Conflict("email_taken", "an account with this email already exists")
)

// translate maps gorm errors onto the apperr taxonomy.
func translate(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(entity + " not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errDuplicate
	}
	return err
}
