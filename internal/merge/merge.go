package merge

import (
	"fmt"
	"log/slog"
)

// Candidate is one extraction proposed by the language model for a single
// utterance. Ephemeral — it never outlives the turn that produced it.
type Candidate struct {
	SlotID     string  `json:"slot_id"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
}

type Accepted struct {
	SlotID     string  `json:"slot_id"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

type Rejection struct {
	SlotID     string  `json:"slot_id"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Result carries every candidate's fate. Nothing is silently dropped: each
// rejection names a machine-readable reason.
type Result struct {
	Accepted []Accepted
	Rejected []Rejection
}

// Engine folds raw candidates into validated slot assignments. Policy:
// confidence gate, per-slot shape validation, higher confidence wins when
// two candidates target one slot (ties keep the first), then declarative
// per-slot normalizers run before storage.
type Engine struct {
	threshold   float64
	normalizers map[string]Normalizer
	logger      *slog.Logger
}

func NewEngine(threshold float64, logger *slog.Logger) *Engine {
	e := &Engine{
		threshold:   threshold,
		normalizers: make(map[string]Normalizer),
		logger:      logger,
	}
	registerDefaults(e)
	return e
}

// RegisterNormalizer attaches a post-acceptance transform for one slot.
// New slot types register their own normalizer instead of patching the
// engine.
func (e *Engine) RegisterNormalizer(slotID string, fn Normalizer) {
	e.normalizers[slotID] = fn
}

// Threshold returns the configured confidence floor.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Merge runs the full accept/reject/dedup policy over one turn's candidates.
func (e *Engine) Merge(candidates []Candidate) Result {
	var res Result
	winner := make(map[string]int) // slot id -> index into res.Accepted

	for _, c := range candidates {
		if c.Confidence < e.threshold {
			res.Rejected = append(res.Rejected, Rejection{
				SlotID: c.SlotID, Value: c.Value, Confidence: c.Confidence,
				Reason: "below_confidence_threshold",
			})
			continue
		}

		value := coerceValue(c.Value)
		if ok, reason := Validate(c.SlotID, value); !ok {
			res.Rejected = append(res.Rejected, Rejection{
				SlotID: c.SlotID, Value: c.Value, Confidence: c.Confidence,
				Reason: reason,
			})
			continue
		}

		if idx, taken := winner[c.SlotID]; taken {
			prev := res.Accepted[idx]
			if c.Confidence > prev.Confidence {
				// Later candidate wins; demote the earlier one.
				res.Rejected = append(res.Rejected, Rejection{
					SlotID: prev.SlotID, Value: prev.Value, Confidence: prev.Confidence,
					Reason: "superseded_by_higher_confidence",
				})
				res.Accepted[idx] = Accepted{
					SlotID: c.SlotID, Value: e.normalize(c.SlotID, value), Confidence: c.Confidence,
				}
			} else {
				res.Rejected = append(res.Rejected, Rejection{
					SlotID: c.SlotID, Value: c.Value, Confidence: c.Confidence,
					Reason: "duplicate_lower_confidence",
				})
			}
			continue
		}

		winner[c.SlotID] = len(res.Accepted)
		res.Accepted = append(res.Accepted, Accepted{
			SlotID: c.SlotID, Value: e.normalize(c.SlotID, value), Confidence: c.Confidence,
		})
	}

	if e.logger != nil {
		e.logger.Debug("merge complete",
			"candidates", len(candidates),
			"accepted", len(res.Accepted),
			"rejected", len(res.Rejected),
		)
	}
	return res
}

func (e *Engine) normalize(slotID string, value any) any {
	if fn, ok := e.normalizers[slotID]; ok {
		return fn(value)
	}
	return value
}

// coerceValue flattens JSON-decoded shapes into the engine's value types:
// []any of strings becomes []string, whole floats stay numeric.
func coerceValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprintf("%v", e))
		}
		return out
	default:
		return v
	}
}
