package repo

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound so callers can match either.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that an idempotency record already exists for the
// given (client, scope, key) tuple.
var ErrDuplicate = errors.New("duplicate")
