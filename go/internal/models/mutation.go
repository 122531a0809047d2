package models

import "time"

// MutationKind defines the kind of bet mutation a user can submit.
type MutationKind string

const (
	MutationPlace  MutationKind = "PLACE"
	MutationEdit   MutationKind = "EDIT"
	MutationCancel MutationKind = "CANCEL"
)

// MutationRequest is one user-submitted bet mutation. Generation is a
// monotonically increasing counter per user-round pair, used to discard
// confirmations that predate a later cancellation.
type MutationRequest struct {
	Generation  uint64       `json:"generation"`
	Kind        MutationKind `json:"kind"`
	SubmittedAt time.Time    `json:"submittedAt"`
}
