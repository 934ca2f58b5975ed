// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are stable, lowercase snake_case strings returned in the `code` field
// of ErrorResponse. Clients branch on them; the message is for humans.
//
// Compliance denials (no consent, window expired, content rejected, limit
// exceeded) are not errors and never use these codes: they are 200 responses
// carrying a decision with a reason.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "invalid_phone",
//	  "message": "phone must be a valid international number"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeInvalidCompany         = "invalid_company"
	ErrCodeInvalidPhone           = "invalid_phone"
	ErrCodeInvalidMethod          = "invalid_consent_method"
	ErrCodeInvalidInteractionType = "invalid_interaction_type"
	ErrCodeInvalidEventType       = "invalid_event_type"
	// ErrCodeStorageUnavailable means the engine could not reach its store.
	// Dispatchers must treat it as a denial.
	ErrCodeStorageUnavailable = "storage_unavailable"
)
