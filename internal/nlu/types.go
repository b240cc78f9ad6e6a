// Package nlu defines the narrow, typed capability contracts the dialog
// engine delegates to, plus their Claude-backed implementation. The engine
// is deterministic; everything probabilistic lives behind these interfaces
// and every call has an explicit failure mode the caller degrades on.
package nlu

import (
	"context"

	"github.com/MikeSquared-Agency/voight/internal/merge"
	"github.com/MikeSquared-Agency/voight/internal/session"
)

type Action string

const (
	ActionExtract Action = "extract"
	ActionAsk     Action = "ask"
	ActionClarify Action = "clarify"
)

// SlotInfo is the catalog entry handed to the router so it can target any
// slot, not just the current one.
type SlotInfo struct {
	ID       string `json:"id"`
	Prompt   string `json:"prompt"`
	Required bool   `json:"required"`
	Filled   bool   `json:"filled"`
}

// RouteResult classifies one utterance: what to do with it, and any
// candidate extractions found along the way.
type RouteResult struct {
	Action     Action            `json:"action"`
	Confidence float64           `json:"confidence"`
	Reasoning  string            `json:"reasoning"`
	Candidates []merge.Candidate `json:"extractions"`
}

// SingleExtraction is the ask-path result for exactly one slot.
type SingleExtraction struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Correction is one slot overwrite proposed during review.
type Correction struct {
	SlotID   string `json:"slot_id"`
	NewValue any    `json:"new_value"`
}

// Delegate is the full capability surface the engine consumes. A call
// either returns a complete structured result or an error — no partial
// results, no panics crossing the boundary.
type Delegate interface {
	RouteTurn(ctx context.Context, currentSlotID, utterance string, catalog []SlotInfo, filled map[string]any) (*RouteResult, error)
	ExtractSingle(ctx context.Context, slotID, prompt, utterance string) (*SingleExtraction, error)
	GenerateClarification(ctx context.Context, slotID, utterance, prompt string) (string, error)
	GenerateSummary(ctx context.Context, filled map[string]any, log []session.Record, stats session.Stats) (string, error)
	ParseCorrections(ctx context.Context, filled map[string]any, utterance string) ([]Correction, error)
}
