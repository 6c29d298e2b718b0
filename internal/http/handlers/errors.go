// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them rather
// than on messages. Generic codes mirror HTTP status semantics, the rest
// name domain failures that a status alone cannot convey.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "vendor_unauthorized",
//	  "message": "vendor rejected the stored credential"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeTooLarge         = "payload_too_large"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeStorageFailed      = "storage_failed"
	ErrCodeBlobUnavailable    = "blob_unavailable"
	ErrCodeVendorNotLinked    = "vendor_not_configured"
	ErrCodeVendorUnauthorized = "vendor_unauthorized"
	ErrCodeUpstreamFailed     = "upstream_failed"
	ErrCodeBotDisabled        = "bot_disabled"
)
