// Package services defines the business logic of the compliance engine:
// consent, interaction history, content validation, quality scoring, the
// audit trail and the pre-send orchestrator. This file centralizes the
// service-level error values so that callers can branch with errors.Is.
//
// Compliance decisions (no consent, window expired, content rejected, limit
// exceeded) are never errors; they are returned as result values carrying a
// machine-readable reason. Only invalid input and infrastructure failures are
// reported through the error return. Translation into HTTP status codes is
// performed at the handler layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable wraps every failure of the backing store.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidCompany is returned for non-positive company identifiers.
	ErrInvalidCompany = errors.New("invalid company id")

	// ErrInvalidPhone is returned when a phone number cannot be normalized
	// to E.164.
	ErrInvalidPhone = errors.New("invalid phone number")

	// ErrInvalidMethod is returned for an unknown consent capture method.
	ErrInvalidMethod = errors.New("invalid consent method")

	// ErrInvalidInteractionType is returned for an unknown interaction type.
	ErrInvalidInteractionType = errors.New("invalid interaction type")

	// ErrInvalidEventType is returned for an unknown compliance event type.
	ErrInvalidEventType = errors.New("invalid event type")
)

// storageErr tags err as a storage failure while keeping the cause in the chain.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

func checkCompany(companyID int64) error {
	if companyID <= 0 {
		return ErrInvalidCompany
	}
	return nil
}
