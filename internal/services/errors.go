// Package services holds the directory's application logic: the Data service
// (Directory) that owns the merchant collection, syncs it, hydrates detail and
// routes every mutation, and the Auth service for admin sessions and the theme
// preference. This file centralizes the error values service methods return.
//
// Translation into HTTP status codes happens in the handler layer.
package services

import "errors"

// Remote backend errors.
var (
	// ErrRemoteUnavailable means no remote backend is configured. Reads fall
	// back to the local snapshot and it is never surfaced to end users.
	ErrRemoteUnavailable = errors.New("remote backend not configured")

	// ErrRemoteRequestFailed wraps a network or backend failure. On reads it
	// is recorded in Status.Error; on writes it is returned to the caller and
	// in-memory state is left untouched.
	ErrRemoteRequestFailed = errors.New("remote request failed")

	// ErrDuplicateRow means a merchant id came back on more than one page,
	// so the pages do not describe one consistent collection.
	ErrDuplicateRow = errors.New("merchant repeated across pages")

	// ErrAssetDeleteFailed is logged when a stored image could not be deleted.
	// It never blocks the metadata delete it accompanies.
	ErrAssetDeleteFailed = errors.New("asset delete failed")

	// ErrBlobsUnavailable is returned by uploads when no object store is
	// configured.
	ErrBlobsUnavailable = errors.New("object store not configured")
)

// Validation errors. All of them wrap ErrValidation and are returned before
// any I/O happens.
var (
	ErrValidation = errors.New("validation failed")

	// ErrEmptyRecommendation is returned when a recommendation message is
	// empty after sanitization.
	ErrEmptyRecommendation = invalid("recommendation message is empty")

	// ErrInvalidRating is returned for ratings outside 1..5.
	ErrInvalidRating = invalid("rating must be between 1 and 5")

	// ErrInvalidTheme is returned for theme values other than light or dark.
	ErrInvalidTheme = invalid("theme must be light or dark")
)

// Lookup errors.
var (
	ErrMerchantNotFound       = errors.New("merchant not found")
	ErrMenuItemNotFound       = errors.New("menu item not found")
	ErrMenuImageNotFound      = errors.New("menu image not found")
	ErrRecommendationNotFound = errors.New("recommendation not found")
)

// Auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthorized       = errors.New("unauthorized")
)

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Unwrap() error { return ErrValidation }

func invalid(msg string) error { return &validationError{msg: msg} }
