package mutation

import "errors"

// Validation errors: surfaced inline, no network call is made.
var (
	ErrNoOptionSelected    = errors.New("no option selected")
	ErrUnknownOption       = errors.New("option not part of round")
	ErrNonPositiveAmount   = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNoActiveRound       = errors.New("no active round")
	ErrRoundNotOpen        = errors.New("round is not open")
	ErrRoundLocked         = errors.New("round is locked")
	ErrRoundResolved       = errors.New("round is already resolved")
	ErrNoBetToMutate       = errors.New("no matching bet")
	ErrBetAlreadyPlaced    = errors.New("bet already placed, edit it instead")
)

// ErrMutationPending is returned when a mutation of the same kind is already
// awaiting its server acknowledgment.
var ErrMutationPending = errors.New("mutation already pending")

// ErrStaleConfirmation marks an inbound confirmation whose generation
// predates the active cancellation marker. Discarded silently, never surfaced.
var ErrStaleConfirmation = errors.New("stale confirmation")
