package dialog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/voight/internal/correction"
	"github.com/MikeSquared-Agency/voight/internal/hermes"
	"github.com/MikeSquared-Agency/voight/internal/merge"
	"github.com/MikeSquared-Agency/voight/internal/nlu"
	"github.com/MikeSquared-Agency/voight/internal/session"
	"github.com/MikeSquared-Agency/voight/internal/slotgraph"
)

type stubDelegate struct {
	route          *nlu.RouteResult
	routeErr       error
	single         *nlu.SingleExtraction
	singleErr      error
	clarifyText    string
	clarifyErr     error
	summary        string
	summaryErr     error
	corrections    []nlu.Correction
	correctionsErr error

	routeCalls  int
	singleCalls int
}

func (s *stubDelegate) RouteTurn(ctx context.Context, currentSlotID, utterance string, catalog []nlu.SlotInfo, filled map[string]any) (*nlu.RouteResult, error) {
	s.routeCalls++
	return s.route, s.routeErr
}

func (s *stubDelegate) ExtractSingle(ctx context.Context, slotID, prompt, utterance string) (*nlu.SingleExtraction, error) {
	s.singleCalls++
	return s.single, s.singleErr
}

func (s *stubDelegate) GenerateClarification(ctx context.Context, slotID, utterance, prompt string) (string, error) {
	return s.clarifyText, s.clarifyErr
}

func (s *stubDelegate) GenerateSummary(ctx context.Context, filled map[string]any, log []session.Record, stats session.Stats) (string, error) {
	return s.summary, s.summaryErr
}

func (s *stubDelegate) ParseCorrections(ctx context.Context, filled map[string]any, utterance string) ([]nlu.Correction, error) {
	return s.corrections, s.correctionsErr
}

type stubEvents struct {
	subjects []string
}

func (s *stubEvents) Publish(subject string, data any) error {
	s.subjects = append(s.subjects, subject)
	return nil
}

func testGraph(t *testing.T) *slotgraph.Graph {
	t.Helper()
	g, err := slotgraph.New([]slotgraph.Definition{
		{ID: "full_name", Prompt: "What is your full name?", Required: true, DefaultNext: "dob"},
		{ID: "dob", Prompt: "What is your date of birth?", Required: true, DefaultNext: "has_partner"},
		{ID: "has_partner", Prompt: "Do you currently have a partner?", Required: true, DefaultNext: "chief_complaint"},
		{
			ID: "chief_complaint", Prompt: "What brings you in today?", Required: true,
			Branches:    []slotgraph.Branch{{Pattern: ".*fertility.*", Next: "months_ttc"}},
			DefaultNext: "",
		},
		{ID: "months_ttc", Prompt: "How many months have you been trying to conceive?", Required: true, DefaultNext: ""},
	})
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g
}

func newController(t *testing.T, g *slotgraph.Graph, d *stubDelegate, ev Events) *Controller {
	t.Helper()
	logger := slog.Default()
	merger := merge.NewEngine(0.7, logger)
	corrector := correction.NewEngine(g, d, logger)
	return NewController(g, d, merger, corrector, "approved", 2, ev, logger)
}

func TestStart(t *testing.T) {
	d := &stubDelegate{}
	ev := &stubEvents{}
	c := newController(t, testGraph(t), d, ev)
	st := session.New()

	res, err := c.Start(st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != KindNextQuestion || res.SlotID != "full_name" {
		t.Errorf("expected first question for full_name, got %+v", res)
	}
	if len(st.Log) != 1 || st.Log[0].Role != session.RoleInterviewer {
		t.Errorf("expected one interviewer record, got %+v", st.Log)
	}
	if len(ev.subjects) != 1 || ev.subjects[0] != hermes.SubjectSessionStarted {
		t.Errorf("expected session started event, got %v", ev.subjects)
	}
}

func TestProcessTurn_ExtractAdvances(t *testing.T) {
	d := &stubDelegate{
		route: &nlu.RouteResult{
			Action: nlu.ActionExtract,
			Candidates: []merge.Candidate{
				{SlotID: "full_name", Value: "Jane Doe", Confidence: 0.95},
				{SlotID: "has_partner", Value: true, Confidence: 0.85},
			},
		},
	}
	c := newController(t, testGraph(t), d, nil)
	st := session.New()

	res, err := c.ProcessTurn(context.Background(), st, "full_name", "I'm Jane Doe, married")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != KindNextQuestion || res.SlotID != "dob" {
		t.Errorf("expected next question dob, got %+v", res)
	}
	if st.Filled["full_name"] != "Jane Doe" || st.Filled["has_partner"] != true {
		t.Errorf("expected multi-slot fill, got %v", st.Filled)
	}
	if len(st.Log) != 2 {
		t.Fatalf("expected one record pair, got %d", len(st.Log))
	}
	if st.Log[0].Role != session.RoleRespondent || st.Log[0].Extracted == nil {
		t.Errorf("expected respondent record with extraction, got %+v", st.Log[0])
	}
}

func TestProcessTurn_ZeroAcceptedDoesNotAdvance(t *testing.T) {
	d := &stubDelegate{
		route: &nlu.RouteResult{
			Action: nlu.ActionExtract,
			Candidates: []merge.Candidate{
				{SlotID: "full_name", Value: "Jane", Confidence: 0.3},
			},
		},
		clarifyText: "Could you share your full name?",
	}
	ev := &stubEvents{}
	c := newController(t, testGraph(t), d, ev)
	st := session.New()

	res, err := c.ProcessTurn(context.Background(), st, "full_name", "uh maybe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != KindReprompt || res.SlotID != "full_name" {
		t.Errorf("expected reprompt on same slot, got %+v", res)
	}
	if len(st.Filled) != 0 {
		t.Errorf("expected no fills, got %v", st.Filled)
	}
	if st.Phase != session.PhaseCollecting {
		t.Errorf("phase must not advance, got %q", st.Phase)
	}
	if len(ev.subjects) != 1 || ev.subjects[0] != hermes.SubjectExtractionRejected {
		t.Errorf("expected rejection event, got %v", ev.subjects)
	}
	if len(st.Log) != 2 {
		t.Errorf("rejected turn still logs one pair, got %d records", len(st.Log))
	}
}

func TestProcessTurn_ClarifyKeepsSlot(t *testing.T) {
	d := &stubDelegate{
		route:       &nlu.RouteResult{Action: nlu.ActionClarify},
		clarifyText: "I mean the date you were born.",
	}
	c := newController(t, testGraph(t), d, nil)
	st := session.New()

	res, err := c.ProcessTurn(context.Background(), st, "dob", "what do you mean?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != KindReprompt || res.SlotID != "dob" {
		t.Errorf("expected clarification reprompt, got %+v", res)
	}
	if res.Prompt != "I mean the date you were born." {
		t.Errorf("expected delegate clarification text, got %q", res.Prompt)
	}
}

func TestProcessTurn_AskPathAdvancesOnConfidentValue(t *testing.T) {
	d := &stubDelegate{
		route:  &nlu.RouteResult{Action: nlu.ActionAsk},
		single: &nlu.SingleExtraction{Value: "Jane Doe", Confidence: 0.9},
	}
	c := newController(t, testGraph(t), d, nil)
	st := session.New()

	res, err := c.ProcessTurn(context.Background(), st, "full_name", "Jane Doe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != KindNextQuestion || res.SlotID != "dob" {
		t.Errorf("expected advance to dob, got %+v", res)
	}
	if st.Filled["full_name"] != "Jane Doe" {
		t.Errorf("expected fill, got %v", st.Filled)
	}
}

func TestProcessTurn_AskPathLowConfidenceReprompts(t *testing.T) {
	d := &stubDelegate{
		route:       &nlu.RouteResult{Action: nlu.ActionAsk},
		single:      &nlu.SingleExtraction{Value: "Jane?", Confidence: 0.4},
		clarifyText: "Sorry — your full legal name, please?",
	}
	c := newController(t, testGraph(t), d, nil)
	st := session.New()

	res, err := c.ProcessTurn(context.Background(), st, "full_name", "mumble")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != KindReprompt {
		t.Errorf("expected reprompt, got %+v", res)
	}
	if len(st.Filled) != 0 {
		t.Errorf("low confidence must not fill, got %v", st.Filled)
	}
}

func TestProcessTurn_RouterFailureDegradesToAsk(t *testing.T) {
	d := &stubDelegate{
		routeErr: errors.New("timeout"),
		single:   &nlu.SingleExtraction{Value: "Jane Doe", Confidence: 0.9},
	}
	c := newController(t, testGraph(t), d, nil)
	st := session.New()

	res, err := c.ProcessTurn(context.Background(), st, "full_name", "Jane Doe")
	if err != nil {
		t.Fatalf("router failure must not surface: %v", err)
	}
	if d.singleCalls != 1 {
		t.Errorf("expected fallback to single extraction, calls=%d", d.singleCalls)
	}
	if res.Kind != KindNextQuestion {
		t.Errorf("expected degraded path to still advance, got %+v", res)
	}
}

func TestProcessTurn_AllDelegatesDownStillReturnsResult(t *testing.T) {
	d := &stubDelegate{
		routeErr:   errors.New("down"),
		singleErr:  errors.New("down"),
		clarifyErr: errors.New("down"),
	}
	c := newController(t, testGraph(t), d, nil)
	st := session.New()

	res, err := c.ProcessTurn(context.Background(), st, "full_name", "Jane Doe")
	if err != nil {
		t.Fatalf("delegate failures must degrade, not error: %v", err)
	}
	if res.Kind != KindReprompt {
		t.Errorf("expected reprompt, got %+v", res)
	}
	if !strings.Contains(res.Prompt, "What is your full name?") {
		t.Errorf("expected deterministic fallback clarification, got %q", res.Prompt)
	}
}

func TestProcessTurn_TransitionsToReviewWhenGraphDone(t *testing.T) {
	d := &stubDelegate{
		route: &nlu.RouteResult{
			Action: nlu.ActionExtract,
			Candidates: []merge.Candidate{
				{SlotID: "chief_complaint", Value: "a cold", Confidence: 0.9},
			},
		},
	}
	c := newController(t, testGraph(t), d, nil)
	st := session.New()
	st.Fill("full_name", "Jane Doe")
	st.Fill("dob", "1990-01-01")
	st.Fill("has_partner", true)

	res, err := c.ProcessTurn(context.Background(), st, "chief_complaint", "just a cold")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != KindReview {
		t.Fatalf("expected review transition, got %+v", res)
	}
	if st.Phase != session.PhaseReview {
		t.Errorf("expected review phase, got %q", st.Phase)
	}
	if !strings.Contains(res.Summary, "Jane Doe") {
		t.Errorf("expected rendered record in review, got %q", res.Summary)
	}
}

func TestProcessTurn_BranchKeepsCollecting(t *testing.T) {
	d := &stubDelegate{
		route: &nlu.RouteResult{
			Action: nlu.ActionExtract,
			Candidates: []merge.Candidate{
				{SlotID: "chief_complaint", Value: "fertility issues", Confidence: 0.9},
			},
		},
	}
	c := newController(t, testGraph(t), d, nil)
	st := session.New()
	st.Fill("full_name", "Jane Doe")
	st.Fill("dob", "1990-01-01")
	st.Fill("has_partner", true)

	res, err := c.ProcessTurn(context.Background(), st, "chief_complaint", "fertility issues")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != KindNextQuestion || res.SlotID != "months_ttc" {
		t.Errorf("expected branch to months_ttc, got %+v", res)
	}
}

func TestProcessTurn_CycleSurfacesAsError(t *testing.T) {
	g, err := slotgraph.New([]slotgraph.Definition{
		{ID: "a", Prompt: "A?", DefaultNext: "b"},
		{ID: "b", Prompt: "B?", DefaultNext: "a"},
	})
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	d := &stubDelegate{
		route: &nlu.RouteResult{
			Action: nlu.ActionExtract,
			Candidates: []merge.Candidate{
				{SlotID: "a", Value: "x", Confidence: 0.9},
				{SlotID: "b", Value: "y", Confidence: 0.9},
			},
		},
	}
	c := newController(t, g, d, nil)
	st := session.New()

	_, err = c.ProcessTurn(context.Background(), st, "a", "x and y")
	if !errors.Is(err, slotgraph.ErrCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	if st.Phase == session.PhaseReview || st.Phase == session.PhaseComplete {
		t.Errorf("cycle must not look like completion, phase=%q", st.Phase)
	}
}

func TestProcessTurn_ReviewApproval(t *testing.T) {
	d := &stubDelegate{summary: "All recorded. Take care, Jane!"}
	ev := &stubEvents{}
	c := newController(t, testGraph(t), d, ev)
	st := session.New()
	st.Fill("full_name", "Jane Doe")
	st.Phase = session.PhaseReview

	res, err := c.ProcessTurn(context.Background(), st, "", "  Approved ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != KindComplete || res.Summary != "All recorded. Take care, Jane!" {
		t.Errorf("expected completion with delegate summary, got %+v", res)
	}
	if st.Phase != session.PhaseComplete {
		t.Errorf("expected complete phase, got %q", st.Phase)
	}
	found := false
	for _, s := range ev.subjects {
		if s == hermes.SubjectSessionCompleted {
			found = true
		}
	}
	if !found {
		t.Errorf("expected completion event, got %v", ev.subjects)
	}
}

func TestProcessTurn_ReviewApprovalSummaryFallback(t *testing.T) {
	d := &stubDelegate{summaryErr: errors.New("down")}
	c := newController(t, testGraph(t), d, nil)
	st := session.New()
	st.Fill("full_name", "Jane Doe")
	st.Phase = session.PhaseReview

	res, err := c.ProcessTurn(context.Background(), st, "", "approved")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != KindComplete {
		t.Fatalf("expected completion, got %+v", res)
	}
	if !strings.Contains(res.Summary, "Jane Doe") {
		t.Errorf("expected fallback summary from filled slots, got %q", res.Summary)
	}
}

func TestProcessTurn_ReviewCorrection(t *testing.T) {
	d := &stubDelegate{} // delegate finds nothing; pattern fallback does
	c := newController(t, testGraph(t), d, nil)
	st := session.New()
	st.Fill("full_name", "Jane Doe")
	st.Fill("dob", "01/01/1989")
	st.Phase = session.PhaseReview

	res, err := c.ProcessTurn(context.Background(), st, "", "change my birth year to 1987")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != KindReview {
		t.Fatalf("expected review result, got %+v", res)
	}
	if got := st.Filled["dob"].(string); !strings.Contains(got, "1987") {
		t.Errorf("expected corrected dob, got %q", got)
	}
	corrections := 0
	for _, rec := range st.Log {
		if rec.SlotID == "dob" && rec.Role == session.RoleRespondent {
			corrections++
		}
	}
	if corrections != 1 {
		t.Errorf("expected exactly one logged correction interaction, got %d", corrections)
	}
}

func TestProcessTurn_ReviewNoMatchReturnsUnchangedReview(t *testing.T) {
	d := &stubDelegate{}
	c := newController(t, testGraph(t), d, nil)
	st := session.New()
	st.Fill("full_name", "Jane Doe")
	st.Phase = session.PhaseReview
	before := st.Filled["full_name"]

	res, err := c.ProcessTurn(context.Background(), st, "", "hmm, thinking")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != KindReview {
		t.Errorf("expected review echo, got %+v", res)
	}
	if st.Filled["full_name"] != before {
		t.Errorf("filled slots must be untouched")
	}
	if !strings.Contains(res.Summary, "Jane Doe") {
		t.Errorf("expected unchanged review render, got %q", res.Summary)
	}
}

func TestProcessTurn_AlreadyComplete(t *testing.T) {
	d := &stubDelegate{}
	c := newController(t, testGraph(t), d, nil)
	st := session.New()
	st.Fill("full_name", "Jane Doe")
	st.Phase = session.PhaseComplete

	_, err := c.ProcessTurn(context.Background(), st, "", "one more thing")
	if !errors.Is(err, ErrAlreadyComplete) {
		t.Fatalf("expected ErrAlreadyComplete, got %v", err)
	}
	if len(st.Filled) != 1 || st.Filled["full_name"] != "Jane Doe" {
		t.Errorf("filled slots must be unchanged, got %v", st.Filled)
	}
}

func TestProcessTurn_UnknownSlot(t *testing.T) {
	d := &stubDelegate{}
	c := newController(t, testGraph(t), d, nil)
	st := session.New()

	if _, err := c.ProcessTurn(context.Background(), st, "ghost", "hello"); err == nil {
		t.Fatal("expected error for unknown current slot")
	}
}

func TestSkipSlot(t *testing.T) {
	d := &stubDelegate{}
	c := newController(t, testGraph(t), d, nil)
	st := session.New()

	res, err := c.SkipSlot(st, "full_name")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != KindNextQuestion || res.SlotID != "dob" {
		t.Errorf("expected advance past skipped slot, got %+v", res)
	}
	if v, ok := st.Filled["full_name"].([]string); !ok || len(v) != 0 {
		t.Errorf("expected explicit empty answer, got %v", st.Filled["full_name"])
	}
}

func TestSkipSlot_LastSlotEntersReview(t *testing.T) {
	d := &stubDelegate{}
	c := newController(t, testGraph(t), d, nil)
	st := session.New()
	st.Fill("full_name", "Jane Doe")
	st.Fill("dob", "1990-01-01")
	st.Fill("has_partner", true)

	res, err := c.SkipSlot(st, "chief_complaint")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != KindReview || st.Phase != session.PhaseReview {
		t.Errorf("expected review after skipping final slot, got %+v phase=%q", res, st.Phase)
	}
}

func TestReliabilityTracking(t *testing.T) {
	d := &stubDelegate{
		route: &nlu.RouteResult{
			Action: nlu.ActionExtract,
			Candidates: []merge.Candidate{
				{SlotID: "full_name", Value: "", Confidence: 0.9}, // empty -> rejected
			},
		},
		clarifyText: "Name, please?",
	}
	c := newController(t, testGraph(t), d, nil)
	st := session.New()

	for i := 0; i < 3; i++ {
		if _, err := c.ProcessTurn(context.Background(), st, "full_name", "..."); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}

	stats := c.Reliability(st.ID)
	if stats["full_name"].Misses != 3 {
		t.Errorf("expected 3 misses, got %+v", stats["full_name"])
	}
	if !c.trackerFor(st.ID).ShouldSkip("full_name") {
		t.Error("expected skip signal after repeated misses")
	}
}
