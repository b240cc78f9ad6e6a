package dialog

import "errors"

// ErrAlreadyComplete is returned when a turn is submitted after the
// session reached the Complete phase — a caller usage error, not retried.
var ErrAlreadyComplete = errors.New("session already complete")

type ResultKind string

const (
	KindNextQuestion ResultKind = "next_question"
	KindReprompt     ResultKind = "reprompt"
	KindReview       ResultKind = "review"
	KindComplete     ResultKind = "complete"
)

// TurnResult is the tagged outcome of one turn. Which fields are set
// depends on Kind: NextQuestion carries SlotID+Prompt, Reprompt carries
// Prompt (the message to show) and a machine-readable Reason, Review and
// Complete carry Summary.
type TurnResult struct {
	Kind    ResultKind `json:"kind"`
	SlotID  string     `json:"slot_id,omitempty"`
	Prompt  string     `json:"prompt,omitempty"`
	Reason  string     `json:"reason,omitempty"`
	Summary string     `json:"summary,omitempty"`
}
