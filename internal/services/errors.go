package services

import "errors"

// Error taxonomy for the payment verification workflow. Handlers map these to
// HTTP statuses; nothing below the handler layer writes responses.
var (
	// ErrNotFound: the referenced payment, profile or room does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidState: the payment was already decided; verification is not
	// re-entrant on a non-pending record. Whichever caller commits the
	// pending->decided flip first wins, the loser observes this.
	ErrInvalidState = errors.New("payment is not pending")

	// ErrNotAllowed: the actor's role is outside the verifier allow-list.
	ErrNotAllowed = errors.New("actor is not allowed to verify payments")
)
