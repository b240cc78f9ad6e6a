package session

import (
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseCollecting Phase = "collecting"
	PhaseReview     Phase = "review"
	PhaseComplete   Phase = "complete"
)

const (
	RoleInterviewer = "interviewer"
	RoleRespondent  = "respondent"
)

// Record is one logged exchange entry. The log is append-only; entries are
// never mutated or deleted except by a full session reset.
type Record struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	SlotID    string    `json:"slot_id,omitempty"`
	Extracted any       `json:"extracted,omitempty"`
}

// State is the mutable record of one interview. Filled grows monotonically
// during collection; individual entries may be overwritten in review. Each
// session owns its own State — nothing here is shared between sessions.
type State struct {
	ID        uuid.UUID
	Filled    map[string]any
	Log       []Record
	Phase     Phase
	StartedAt time.Time
}

func New() *State {
	return &State{
		ID:        uuid.New(),
		Filled:    make(map[string]any),
		Phase:     PhaseCollecting,
		StartedAt: time.Now().UTC(),
	}
}

// Fill stores a validated slot value.
func (s *State) Fill(slotID string, value any) {
	s.Filled[slotID] = value
}

// Append adds one record to the interaction log, stamping the time if unset.
func (s *State) Append(rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	s.Log = append(s.Log, rec)
}

// AppendExchange logs a respondent/interviewer pair for one turn.
func (s *State) AppendExchange(respondent, interviewer Record) {
	respondent.Role = RoleRespondent
	interviewer.Role = RoleInterviewer
	s.Append(respondent)
	s.Append(interviewer)
}

// Reset returns the session to a fresh collecting state. The id survives;
// everything else is cleared.
func (s *State) Reset() {
	s.Filled = make(map[string]any)
	s.Log = nil
	s.Phase = PhaseCollecting
	s.StartedAt = time.Now().UTC()
}

type Stats struct {
	TotalInteractions      int     `json:"totalInteractions"`
	SessionDurationMinutes float64 `json:"sessionDurationMinutes"`
	MessageCount           int     `json:"messageCount"`
}

// Stats summarises the session: respondent turns, elapsed minutes, and
// total logged messages.
func (s *State) Stats() Stats {
	turns := 0
	for _, rec := range s.Log {
		if rec.Role == RoleRespondent {
			turns++
		}
	}
	return Stats{
		TotalInteractions:      turns,
		SessionDurationMinutes: time.Since(s.StartedAt).Minutes(),
		MessageCount:           len(s.Log),
	}
}
