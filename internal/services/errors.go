// Package services defines the business logic behind the HTTP API: the
// recording catalog, transcriptions, per-user integration settings, vendor
// syncs and bot control. This file centralizes the service-level error
// values so that callers can classify results with errors.Is.
//
// Translation into HTTP status codes happens in the handler layer.
package services

import "errors"

// Recording-related errors.
var (
	// ErrRecordingNotFound indicates that the recording does not exist or
	// belongs to another user.
	ErrRecordingNotFound = errors.New("recording not found")

	// ErrEmptyUpload is returned when an uploaded file has no bytes.
	ErrEmptyUpload = errors.New("upload is empty")

	// ErrUploadTooLarge is returned when an upload exceeds the configured cap.
	ErrUploadTooLarge = errors.New("upload too large")

	// ErrBlobUnavailable is returned when a recording's blob lives on a
	// backend other than the user's current storage configuration.
	ErrBlobUnavailable = errors.New("recording blob is not reachable with the current storage configuration")

	// ErrEmptyQuery is returned for blank search queries.
	ErrEmptyQuery = errors.New("query is empty")
)

// Transcription errors.
var (
	ErrEmptyTranscription = errors.New("transcription text is empty")
	ErrInvalidLanguage    = errors.New("language must be a BCP 47 tag")
)

// Settings errors.
var (
	// ErrInvalidSettings wraps validation failures of user supplied settings.
	ErrInvalidSettings = errors.New("invalid settings")

	// ErrUserNotFound is returned when a settings call names an unknown user.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when the email is already registered.
	ErrUserExists = errors.New("user already exists")
)

// ErrBotDisabled is returned by bot control calls when no bot token is
// configured.
var ErrBotDisabled = errors.New("bot is not configured")
