package reliability

import "sync"

// SlotStats is a point-in-time view of one slot's extraction record.
type SlotStats struct {
	Score             float64 `json:"score"`
	Accepts           int     `json:"accepts"`
	Misses            int     `json:"misses"`
	ConsecutiveMisses int     `json:"consecutive_misses"`
}

// Tracker accumulates accept/miss outcomes per slot for one session.
type Tracker struct {
	mu         sync.Mutex
	maxRetries int
	slots      map[string]*SlotStats
}

func NewTracker(maxRetries int) *Tracker {
	return &Tracker{
		maxRetries: maxRetries,
		slots:      make(map[string]*SlotStats),
	}
}

func (t *Tracker) record(slotID string) *SlotStats {
	s, ok := t.slots[slotID]
	if !ok {
		s = &SlotStats{Score: NeutralScore}
		t.slots[slotID] = s
	}
	return s
}

// RecordAccept notes a successful fill for the slot.
func (t *Tracker) RecordAccept(slotID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.record(slotID)
	s.Score = UpdateScore(s.Score, true)
	s.Accepts++
	s.ConsecutiveMisses = 0
}

// RecordMiss notes a turn where the slot stayed unfilled (validation
// rejection or delegate failure).
func (t *Tracker) RecordMiss(slotID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.record(slotID)
	s.Score = UpdateScore(s.Score, false)
	s.Misses++
	s.ConsecutiveMisses++
}

// ShouldSkip reports whether the slot has missed enough consecutive turns
// that the host should consider force-skipping it.
func (t *Tracker) ShouldSkip(slotID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[slotID]
	return ok && s.ConsecutiveMisses > t.maxRetries
}

// Snapshot copies the per-slot stats for observability endpoints.
func (t *Tracker) Snapshot() map[string]SlotStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]SlotStats, len(t.slots))
	for id, s := range t.slots {
		out[id] = *s
	}
	return out
}

// Reset clears all slot records, for session resets.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.slots = make(map[string]*SlotStats)
	t.mu.Unlock()
}
