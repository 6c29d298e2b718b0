package ingest

import "errors"

var (
	// ErrInvalidCandidate is returned when a candidate lacks an owner or a
	// source file id.
	ErrInvalidCandidate = errors.New("ingest: candidate requires user and source file id")

	// ErrNoTargetUser means a bot message could not be mapped to any user.
	ErrNoTargetUser = errors.New("ingest: no target user for chat")

	// ErrNoVendorAccount is returned by SyncUser when the user has not
	// connected a vendor account.
	ErrNoVendorAccount = errors.New("ingest: vendor account not configured")
)
