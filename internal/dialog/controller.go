package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MikeSquared-Agency/voight/internal/correction"
	"github.com/MikeSquared-Agency/voight/internal/hermes"
	"github.com/MikeSquared-Agency/voight/internal/merge"
	"github.com/MikeSquared-Agency/voight/internal/nlu"
	"github.com/MikeSquared-Agency/voight/internal/reliability"
	"github.com/MikeSquared-Agency/voight/internal/session"
	"github.com/MikeSquared-Agency/voight/internal/slotgraph"
	"github.com/google/uuid"
)

// Events is the optional swarm bus surface the controller publishes
// observability signals on.
type Events interface {
	Publish(subject string, data any) error
}

// Controller is the per-turn state machine. It owns no session state
// itself; callers pass the session in and serialize turns per session.
// Every path returns a TurnResult or a well-typed error — delegate
// failures never cross into the host layer.
type Controller struct {
	graph      *slotgraph.Graph
	delegate   nlu.Delegate
	merger     *merge.Engine
	corrector  *correction.Engine
	approval   string
	maxRetries int
	events     Events
	logger     *slog.Logger

	mu       sync.Mutex
	trackers map[uuid.UUID]*reliability.Tracker
}

func NewController(graph *slotgraph.Graph, delegate nlu.Delegate, merger *merge.Engine, corrector *correction.Engine, approval string, maxRetries int, events Events, logger *slog.Logger) *Controller {
	return &Controller{
		graph:      graph,
		delegate:   delegate,
		merger:     merger,
		corrector:  corrector,
		approval:   approval,
		maxRetries: maxRetries,
		events:     events,
		logger:     logger,
		trackers:   make(map[uuid.UUID]*reliability.Tracker),
	}
}

func (c *Controller) trackerFor(id uuid.UUID) *reliability.Tracker {
	c.mu.Lock()
	defer c.mu.Unlock()
	tr, ok := c.trackers[id]
	if !ok {
		tr = reliability.NewTracker(c.maxRetries)
		c.trackers[id] = tr
	}
	return tr
}

// ForgetSession drops per-session tracking state after a reset or removal.
func (c *Controller) ForgetSession(id uuid.UUID) {
	c.mu.Lock()
	delete(c.trackers, id)
	c.mu.Unlock()
}

// Reliability exposes the per-slot extraction record for one session.
func (c *Controller) Reliability(id uuid.UUID) map[string]reliability.SlotStats {
	return c.trackerFor(id).Snapshot()
}

// Start opens the interview: it logs and returns the first question.
func (c *Controller) Start(st *session.State) (*TurnResult, error) {
	next, err := c.graph.NextUnfilled(st.Filled)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if next == "" {
		return nil, fmt.Errorf("start session: graph has no askable slots")
	}
	def, _ := c.graph.Slot(next)
	st.Append(session.Record{Role: session.RoleInterviewer, Text: def.Prompt, SlotID: next})
	c.publish(hermes.SubjectSessionStarted, map[string]any{"session_id": st.ID.String(), "first_slot": next})
	return &TurnResult{Kind: KindNextQuestion, SlotID: next, Prompt: def.Prompt}, nil
}

// ProcessTurn runs one full turn of the state machine. currentSlotID is
// only meaningful while collecting.
func (c *Controller) ProcessTurn(ctx context.Context, st *session.State, currentSlotID, utterance string) (*TurnResult, error) {
	switch st.Phase {
	case session.PhaseComplete:
		return nil, ErrAlreadyComplete
	case session.PhaseReview:
		return c.reviewTurn(ctx, st, utterance)
	default:
		return c.collectTurn(ctx, st, currentSlotID, utterance)
	}
}

func (c *Controller) collectTurn(ctx context.Context, st *session.State, currentSlotID, utterance string) (*TurnResult, error) {
	if _, ok := c.graph.Slot(currentSlotID); !ok {
		return nil, fmt.Errorf("unknown slot %q", currentSlotID)
	}

	action := nlu.ActionAsk
	var candidates []merge.Candidate

	route, err := c.delegate.RouteTurn(ctx, currentSlotID, utterance, c.catalog(st), st.Filled)
	if err != nil {
		// Graceful degradation: a failed router means we fall back to the
		// single-slot ask path, never a hard error.
		c.logger.Warn("routing delegate failed, degrading to ask",
			"session_id", st.ID.String(),
			"slot", currentSlotID,
			"error", err,
		)
	} else {
		action = route.Action
		candidates = route.Candidates
	}

	switch action {
	case nlu.ActionExtract:
		return c.handleExtract(ctx, st, currentSlotID, utterance, candidates)

	case nlu.ActionClarify:
		text := c.clarification(ctx, currentSlotID, utterance)
		st.AppendExchange(
			session.Record{Text: utterance, SlotID: currentSlotID},
			session.Record{Text: text, SlotID: currentSlotID},
		)
		return &TurnResult{Kind: KindReprompt, SlotID: currentSlotID, Prompt: text, Reason: "clarify"}, nil

	default: // ask, including router failure
		def, _ := c.graph.Slot(currentSlotID)
		ext, err := c.delegate.ExtractSingle(ctx, currentSlotID, def.Prompt, utterance)
		if err == nil && ext.Value != nil && ext.Confidence >= c.merger.Threshold() {
			return c.handleExtract(ctx, st, currentSlotID, utterance, []merge.Candidate{{
				SlotID:     currentSlotID,
				Value:      ext.Value,
				Confidence: ext.Confidence,
			}})
		}
		if err != nil {
			c.logger.Warn("single-slot extraction failed",
				"session_id", st.ID.String(), "slot", currentSlotID, "error", err)
		}
		c.trackerFor(st.ID).RecordMiss(currentSlotID)
		text := c.clarification(ctx, currentSlotID, utterance)
		st.AppendExchange(
			session.Record{Text: utterance, SlotID: currentSlotID},
			session.Record{Text: text, SlotID: currentSlotID},
		)
		return &TurnResult{Kind: KindReprompt, SlotID: currentSlotID, Prompt: text, Reason: "no_extraction"}, nil
	}
}

func (c *Controller) handleExtract(ctx context.Context, st *session.State, currentSlotID, utterance string, candidates []merge.Candidate) (*TurnResult, error) {
	res := c.merger.Merge(candidates)
	tr := c.trackerFor(st.ID)

	for _, r := range res.Rejected {
		tr.RecordMiss(r.SlotID)
		c.publish(hermes.SubjectExtractionRejected, map[string]any{
			"session_id": st.ID.String(),
			"slot_id":    r.SlotID,
			"reason":     r.Reason,
			"confidence": r.Confidence,
		})
	}

	if len(res.Accepted) == 0 {
		text := c.clarification(ctx, currentSlotID, utterance)
		st.AppendExchange(
			session.Record{Text: utterance, SlotID: currentSlotID},
			session.Record{Text: text, SlotID: currentSlotID},
		)
		return &TurnResult{Kind: KindReprompt, SlotID: currentSlotID, Prompt: text, Reason: "no_accepted_extraction"}, nil
	}

	for _, a := range res.Accepted {
		st.Fill(a.SlotID, a.Value)
		tr.RecordAccept(a.SlotID)
	}

	next, err := c.graph.NextUnfilled(st.Filled)
	if err != nil {
		// Malformed graph: cannot proceed. This must not be mistaken for
		// interview-complete.
		return nil, fmt.Errorf("advance after extraction: %w", err)
	}

	first := res.Accepted[0]
	if next == "" {
		st.Phase = session.PhaseReview
		review := c.corrector.RenderReview(st.Filled)
		st.AppendExchange(
			session.Record{Text: utterance, SlotID: first.SlotID, Extracted: first.Value},
			session.Record{Text: review},
		)
		c.logger.Info("collection complete, entering review",
			"session_id", st.ID.String(), "filled", len(st.Filled))
		return &TurnResult{Kind: KindReview, Summary: review}, nil
	}

	def, _ := c.graph.Slot(next)
	st.AppendExchange(
		session.Record{Text: utterance, SlotID: first.SlotID, Extracted: first.Value},
		session.Record{Text: def.Prompt, SlotID: next},
	)
	return &TurnResult{Kind: KindNextQuestion, SlotID: next, Prompt: def.Prompt}, nil
}

func (c *Controller) reviewTurn(ctx context.Context, st *session.State, utterance string) (*TurnResult, error) {
	if correction.IsApproval(utterance, c.approval) {
		st.Phase = session.PhaseComplete
		summary, err := c.delegate.GenerateSummary(ctx, st.Filled, st.Log, st.Stats())
		if err != nil {
			// Lower-fidelity fallback built from filled slots alone.
			c.logger.Warn("summary delegate failed, using rendered record",
				"session_id", st.ID.String(), "error", err)
			summary = c.corrector.RenderReview(st.Filled)
		}
		st.AppendExchange(
			session.Record{Text: utterance},
			session.Record{Text: summary},
		)
		c.publish(hermes.SubjectSessionCompleted, map[string]any{
			"session_id": st.ID.String(),
			"slots":      len(st.Filled),
			"messages":   len(st.Log),
		})
		return &TurnResult{Kind: KindComplete, Summary: summary}, nil
	}

	applied := c.corrector.Apply(ctx, st.Filled, utterance)
	review := c.corrector.RenderReview(st.Filled)

	respondent := session.Record{Role: session.RoleRespondent, Text: utterance}
	if len(applied) > 0 {
		respondent.SlotID = applied[0].SlotID
		respondent.Extracted = applied[0].Value
	}
	st.Append(respondent)
	for i := 1; i < len(applied); i++ {
		a := applied[i]
		st.Append(session.Record{
			Role:      session.RoleRespondent,
			Text:      fmt.Sprintf("corrected %s", a.SlotID),
			SlotID:    a.SlotID,
			Extracted: a.Value,
		})
	}
	st.Append(session.Record{Role: session.RoleInterviewer, Text: review})

	// Even when nothing matched, the respondent gets the unchanged review
	// back rather than silence.
	return &TurnResult{Kind: KindReview, Summary: review}, nil
}

// SkipSlot is the host-directed escape hatch for a slot that keeps
// failing: it records an explicit empty answer and advances.
func (c *Controller) SkipSlot(st *session.State, slotID string) (*TurnResult, error) {
	if st.Phase == session.PhaseComplete {
		return nil, ErrAlreadyComplete
	}
	if _, ok := c.graph.Slot(slotID); !ok {
		return nil, fmt.Errorf("unknown slot %q", slotID)
	}

	st.Fill(slotID, []string{})
	next, err := c.graph.NextUnfilled(st.Filled)
	if err != nil {
		return nil, fmt.Errorf("advance after skip: %w", err)
	}
	if next == "" {
		st.Phase = session.PhaseReview
		review := c.corrector.RenderReview(st.Filled)
		st.Append(session.Record{Role: session.RoleInterviewer, Text: review})
		return &TurnResult{Kind: KindReview, Summary: review}, nil
	}
	def, _ := c.graph.Slot(next)
	st.Append(session.Record{Role: session.RoleInterviewer, Text: def.Prompt, SlotID: next})
	return &TurnResult{Kind: KindNextQuestion, SlotID: next, Prompt: def.Prompt}, nil
}

func (c *Controller) clarification(ctx context.Context, slotID, utterance string) string {
	def, ok := c.graph.Slot(slotID)
	prompt := ""
	if ok {
		prompt = def.Prompt
	}
	text, err := c.delegate.GenerateClarification(ctx, slotID, utterance, prompt)
	if err != nil || text == "" {
		// Deterministic fallback when the generator is down.
		return "Sorry, I didn't quite catch that. " + prompt
	}
	return text
}

func (c *Controller) catalog(st *session.State) []nlu.SlotInfo {
	out := make([]nlu.SlotInfo, 0, c.graph.Len())
	for _, id := range c.graph.Order() {
		def, _ := c.graph.Slot(id)
		_, filled := st.Filled[id]
		out = append(out, nlu.SlotInfo{ID: id, Prompt: def.Prompt, Required: def.Required, Filled: filled})
	}
	return out
}

func (c *Controller) publish(subject string, data any) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(subject, data); err != nil {
		c.logger.Warn("event publish failed", "subject", subject, "error", err)
	}
}
