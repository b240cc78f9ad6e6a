// Package correction turns free-text edit requests against a finished
// record into slot overwrites. Two layers: a semantic delegate call, then a
// heuristic pattern fallback that always runs to catch edits the delegate
// missed. The fallback's patterns are derived mechanically from slot ids
// and prompts, so the two layers cannot drift apart through stale alias
// lists.
package correction

import (
	"context"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/voight/internal/merge"
	"github.com/MikeSquared-Agency/voight/internal/nlu"
	"github.com/MikeSquared-Agency/voight/internal/slotgraph"
)

// Parser is the semantic-correction capability the engine delegates to
// before falling back to patterns.
type Parser interface {
	ParseCorrections(ctx context.Context, filled map[string]any, utterance string) ([]nlu.Correction, error)
}

// Applied is one slot overwrite the engine performed.
type Applied struct {
	SlotID string
	Value  any
}

type Engine struct {
	graph  *slotgraph.Graph
	parser Parser
	logger *slog.Logger

	patterns map[string]*slotPatterns
}

func NewEngine(graph *slotgraph.Graph, parser Parser, logger *slog.Logger) *Engine {
	e := &Engine{
		graph:    graph,
		parser:   parser,
		logger:   logger,
		patterns: make(map[string]*slotPatterns),
	}
	for _, id := range graph.Order() {
		def, _ := graph.Slot(id)
		e.patterns[id] = compileSlotPatterns(def)
	}
	return e
}

// Apply interprets one edit request and overwrites any matched slots in
// filled. It returns the overwrites in the order they were applied; an
// utterance that matches nothing leaves filled untouched. Delegate failure
// degrades to the pattern layer alone.
func (e *Engine) Apply(ctx context.Context, filled map[string]any, utterance string) []Applied {
	var applied []Applied
	touched := make(map[string]bool)

	apply := func(slotID string, value any) {
		def, ok := e.graph.Slot(slotID)
		if !ok || touched[slotID] {
			return
		}
		next := e.coerce(def, filled[slotID], value)
		if cur, exists := filled[slotID]; exists && slotgraph.ValueString(cur) == slotgraph.ValueString(next) {
			return
		}
		filled[slotID] = next
		touched[slotID] = true
		applied = append(applied, Applied{SlotID: slotID, Value: next})
	}

	if e.parser != nil {
		corrs, err := e.parser.ParseCorrections(ctx, filled, utterance)
		if err != nil {
			e.logger.Warn("correction delegate failed, pattern fallback only", "error", err)
		} else {
			for _, c := range corrs {
				apply(c.SlotID, c.NewValue)
			}
		}
	}

	// The pattern layer runs regardless of the delegate's outcome.
	for _, m := range e.fallbackMatches(utterance) {
		apply(m.slotID, m.value)
	}

	if len(applied) > 0 && e.logger != nil {
		e.logger.Info("corrections applied", "count", len(applied))
	}
	return applied
}

// coerce normalises a captured value for storage. Boolean-typed slots (by
// current value or has_/is_ id convention) go through the boolean-intent
// classifier; everything else is stored verbatim after trimming.
func (e *Engine) coerce(def *slotgraph.Definition, current, value any) any {
	s, isString := value.(string)
	if !isString {
		return value
	}
	s = strings.Trim(strings.TrimSpace(s), `."'`)

	_, currentIsBool := current.(bool)
	if currentIsBool || strings.HasPrefix(def.ID, "has_") || strings.HasPrefix(def.ID, "is_") {
		if b, ok := merge.BoolIntent(s); ok {
			return b
		}
	}
	return s
}

// IsApproval reports whether the utterance normalizes to the approval
// token.
func IsApproval(utterance, token string) bool {
	return strings.ToLower(strings.TrimSpace(utterance)) == token
}
