package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MikeSquared-Agency/voight/internal/dialog"
	"github.com/MikeSquared-Agency/voight/internal/hermes"
	"github.com/MikeSquared-Agency/voight/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TurnRequest is the body of POST /api/v1/sessions/{id}/turns. CurrentSlot
// overrides the server's own tracking when the client drives slot order.
type TurnRequest struct {
	CurrentSlot string `json:"current_slot,omitempty"`
	Utterance   string `json:"utterance"`
}

type SkipRequest struct {
	SlotID string `json:"slot_id,omitempty"`
}

type SessionResponse struct {
	SessionID string             `json:"session_id"`
	Result    *dialog.TurnResult `json:"result"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess := s.manager.Create()
	sess.Lock()
	defer sess.Unlock()

	res, err := s.controller.Start(sess.State)
	if err != nil {
		s.manager.Remove(sess.State.ID)
		writeError(w, http.StatusInternalServerError, "failed to start session")
		s.logger.Error("session start failed", "error", err)
		return
	}
	s.setCurrent(sess.State.ID, res.SlotID)

	if s.db != nil {
		if err := s.db.CreateSession(r.Context(), sess.State.ID, res.SlotID); err != nil {
			s.logger.Warn("persist session create failed", "session_id", sess.State.ID.String(), "error", err)
		}
	}
	s.persistNewRecords(r.Context(), sess.State, 0)

	writeJSON(w, http.StatusCreated, SessionResponse{
		SessionID: sess.State.ID.String(),
		Result:    res,
	})
}

func (s *Server) processTurn(w http.ResponseWriter, r *http.Request) {
	sess, id, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Utterance == "" {
		writeError(w, http.StatusBadRequest, "utterance is required")
		return
	}

	sess.Lock()
	defer sess.Unlock()

	currentSlot := req.CurrentSlot
	if currentSlot == "" {
		currentSlot = s.currentSlot(id)
	}

	logLen := len(sess.State.Log)
	phaseBefore := sess.State.Phase

	res, err := s.controller.ProcessTurn(r.Context(), sess.State, currentSlot, req.Utterance)
	if err != nil {
		if errors.Is(err, dialog.ErrAlreadyComplete) {
			writeError(w, http.StatusConflict, "session already complete")
			return
		}
		s.logger.Error("turn failed", "session_id", id.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "turn failed")
		return
	}

	switch res.Kind {
	case dialog.KindNextQuestion, dialog.KindReprompt:
		s.setCurrent(id, res.SlotID)
	default:
		s.setCurrent(id, "")
	}

	s.persistNewRecords(r.Context(), sess.State, logLen)
	if sess.State.Phase != phaseBefore {
		s.persistPhaseChange(r.Context(), sess.State, res)
	}

	writeJSON(w, http.StatusOK, SessionResponse{SessionID: id.String(), Result: res})
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	sess, id, ok := s.lookup(w, r)
	if !ok {
		return
	}

	sess.Lock()
	defer sess.Unlock()

	sess.State.Reset()
	s.controller.ForgetSession(id)

	if s.events != nil {
		if err := s.events.Publish(hermes.SubjectSessionReset, map[string]any{"session_id": id.String()}); err != nil {
			s.logger.Warn("reset event publish failed", "session_id", id.String(), "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.DeleteSession(r.Context(), id); err != nil {
			s.logger.Warn("persist session delete failed", "session_id", id.String(), "error", err)
		}
	}

	res, err := s.controller.Start(sess.State)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to restart session")
		return
	}
	s.setCurrent(id, res.SlotID)

	if s.db != nil {
		if err := s.db.CreateSession(r.Context(), id, res.SlotID); err != nil {
			s.logger.Warn("persist session create failed", "session_id", id.String(), "error", err)
		}
	}
	s.persistNewRecords(r.Context(), sess.State, 0)

	writeJSON(w, http.StatusOK, SessionResponse{SessionID: id.String(), Result: res})
}

func (s *Server) skipSlot(w http.ResponseWriter, r *http.Request) {
	sess, id, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req SkipRequest
	if r.Body != nil {
		// Body is optional; an empty body skips the tracked slot.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	sess.Lock()
	defer sess.Unlock()

	slotID := req.SlotID
	if slotID == "" {
		slotID = s.currentSlot(id)
	}
	if slotID == "" {
		writeError(w, http.StatusBadRequest, "no slot to skip")
		return
	}

	logLen := len(sess.State.Log)
	phaseBefore := sess.State.Phase

	res, err := s.controller.SkipSlot(sess.State, slotID)
	if err != nil {
		if errors.Is(err, dialog.ErrAlreadyComplete) {
			writeError(w, http.StatusConflict, "session already complete")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch res.Kind {
	case dialog.KindNextQuestion:
		s.setCurrent(id, res.SlotID)
	default:
		s.setCurrent(id, "")
	}

	s.persistNewRecords(r.Context(), sess.State, logLen)
	if sess.State.Phase != phaseBefore {
		s.persistPhaseChange(r.Context(), sess.State, res)
	}

	writeJSON(w, http.StatusOK, SessionResponse{SessionID: id.String(), Result: res})
}

func (s *Server) sessionStats(w http.ResponseWriter, r *http.Request) {
	sess, id, ok := s.lookup(w, r)
	if !ok {
		return
	}

	sess.Lock()
	stats := sess.State.Stats()
	phase := sess.State.Phase
	filled := len(sess.State.Filled)
	sess.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":  id.String(),
		"phase":       phase,
		"slots_filled": filled,
		"stats":       stats,
		"reliability": s.controller.Reliability(id),
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return nil, uuid.Nil, false
	}
	sess, found := s.manager.Get(id)
	if !found {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, uuid.Nil, false
	}
	return sess, id, true
}

// persistNewRecords writes log entries added since fromIdx. Failures are
// logged, never surfaced: durability loss must not break a live interview.
func (s *Server) persistNewRecords(ctx context.Context, st *session.State, fromIdx int) {
	if s.db == nil {
		return
	}
	for _, rec := range st.Log[fromIdx:] {
		if err := s.db.AppendInteraction(ctx, st.ID, rec); err != nil {
			s.logger.Warn("persist interaction failed", "session_id", st.ID.String(), "error", err)
			return
		}
	}
}

// persistPhaseChange snapshots the filled slots and, on completion, stores
// the summary and notifies the clinic channel.
func (s *Server) persistPhaseChange(ctx context.Context, st *session.State, res *dialog.TurnResult) {
	if s.db != nil {
		if err := s.db.UpdateSessionPhase(ctx, st.ID, st.Phase); err != nil {
			s.logger.Warn("persist phase failed", "session_id", st.ID.String(), "error", err)
		}
		if err := s.db.SnapshotFilled(ctx, st.ID, st.Filled); err != nil {
			s.logger.Warn("persist slots failed", "session_id", st.ID.String(), "error", err)
		}
		if st.Phase == session.PhaseComplete && res.Summary != "" {
			if err := s.db.SetSessionSummary(ctx, st.ID, res.Summary); err != nil {
				s.logger.Warn("persist summary failed", "session_id", st.ID.String(), "error", err)
			}
		}
	}

	if st.Phase == session.PhaseComplete && s.poster != nil {
		if _, err := s.poster.PostIntakeSummary(ctx, st, res.Summary); err != nil {
			s.logger.Warn("slack post failed", "session_id", st.ID.String(), "error", err)
		}
	}
}
