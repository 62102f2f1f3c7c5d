package models

import "errors"

// Error taxonomy shared across operation boundaries. Collaborator failures
// are wrapped with one of these sentinels and checked via errors.Is; none of
// them is fatal to the running session.
var (
	// ErrValidation marks malformed user input, e.g. an invalid invite link
	// or a missing endpoint.
	ErrValidation = errors.New("validation failed")

	// ErrParse marks an AI response that did not contain the expected JSON
	// structure. Never retried.
	ErrParse = errors.New("response parse failed")

	// ErrUpstream marks a network or service failure, including failures
	// that survived the retry cap.
	ErrUpstream = errors.New("upstream service failed")

	// ErrResolution marks an invite-resolution response from which no group
	// identifier could be determined.
	ErrResolution = errors.New("group id resolution failed")

	// ErrAlreadyPosted is returned when appending a product id that the
	// posted history already contains.
	ErrAlreadyPosted = errors.New("product already posted")
)
