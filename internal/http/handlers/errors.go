// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable: clients branch on them, while the
// accompanying message is for humans. Every error response carries one of
// these together with an HTTP status, via fail().
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "validation_failed",
//	  "message": "invalid timer: must be between 30 and 600 seconds"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodePayloadTooLarge  = "payload_too_large"
	ErrCodeInternal         = "internal_error"

	// Clip-specific:
	ErrCodeValidation   = "validation_failed"
	ErrCodeBadCode      = "bad_code"
	ErrCodeCreateFailed = "create_failed"
)
