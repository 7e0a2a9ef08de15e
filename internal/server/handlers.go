package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/engine"
	"github.com/lox/holdemd/internal/store"
)

// playerID extracts the authenticated caller identity. Authentication
// itself happens upstream; the engine only needs a stable id.
func playerID(r *http.Request) string {
	return r.Header.Get("X-Player-ID")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Code    engine.Code `json:"code"`
	Message string      `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	code := engine.CodeOf(err)
	status := http.StatusBadRequest
	switch code {
	case engine.CodeGameNotFound:
		status = http.StatusNotFound
	case engine.CodeNotAuthorized:
		status = http.StatusForbidden
	case engine.CodeTransactionConflict:
		status = http.StatusConflict
	case "":
		status = http.StatusInternalServerError
		code = "INTERNAL"
	}
	writeJSON(w, status, map[string]any{"error": errorBody{Code: code, Message: err.Error()}})
}

type createRoomRequest struct {
	Name               string `json:"name"`
	SmallBlind         int    `json:"smallBlind"`
	BigBlind           int    `json:"bigBlind"`
	MinBuyIn           int    `json:"minBuyIn"`
	MaxBuyIn           int    `json:"maxBuyIn"`
	MaxSeats           int    `json:"maxSeats"`
	TurnTimeoutSeconds int    `json:"turnTimeoutSeconds"`
	AutoNext           bool   `json:"autoNext"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	pid := playerID(r)
	if pid == "" {
		writeError(w, engine.Errorf(engine.CodeNotAuthorized, "missing player identity"))
		return
	}
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, engine.Errorf(engine.CodeInvalidConfig, "malformed body"))
		return
	}
	cfg := engine.Config{
		Name:        req.Name,
		SmallBlind:  req.SmallBlind,
		BigBlind:    req.BigBlind,
		MinBuyIn:    req.MinBuyIn,
		MaxBuyIn:    req.MaxBuyIn,
		MaxSeats:    req.MaxSeats,
		TurnTimeout: time.Duration(req.TurnTimeoutSeconds) * time.Second,
		CreatorID:   pid,
	}
	if cfg.MaxSeats == 0 {
		cfg.MaxSeats = 10
	}
	if cfg.TurnTimeout == 0 {
		cfg.TurnTimeout = s.opts.DefaultTurnTimeout
	}

	table, eff, err := s.engine.CreateTable(uuid.NewString(), cfg, req.AutoNext, s.clock.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.CreateTable(r.Context(), table); err != nil {
		writeError(w, err)
		return
	}
	for _, task := range eff.Tasks {
		if err := s.sched.Enqueue(r.Context(), task); err != nil {
			s.logger.Error("enqueue after create failed", "kind", task.Kind, "error", err)
		}
	}
	s.logger.Info("room created", "tableID", table.ID, "creator", pid, "blinds", cfg.BigBlind)
	writeJSON(w, http.StatusCreated, map[string]any{"tableId": table.ID})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ListOpenTables(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": ids})
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	table, err := s.store.GetTable(r.Context(), r.PathValue("table"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, engine.Errorf(engine.CodeGameNotFound, "table not found"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

type joinSeatRequest struct {
	SeatIndex   int    `json:"seatIndex"`
	BuyIn       int    `json:"buyIn"`
	DisplayName string `json:"displayName"`
}

func (s *Server) handleJoinSeat(w http.ResponseWriter, r *http.Request) {
	pid := playerID(r)
	var req joinSeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, engine.Errorf(engine.CodeInvalidAction, "malformed body"))
		return
	}
	now := s.clock.Now()
	table, err := s.updateTable(r.Context(), r.PathValue("table"), func(t *engine.Table, _ map[string][]deck.Card) (*engine.Effects, error) {
		return s.engine.JoinSeat(t, pid, req.DisplayName, req.SeatIndex, req.BuyIn, now)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table.Seats[req.SeatIndex])
}

func (s *Server) handleLeaveSeat(w http.ResponseWriter, r *http.Request) {
	pid := playerID(r)
	now := s.clock.Now()
	_, err := s.updateTable(r.Context(), r.PathValue("table"), func(t *engine.Table, hole map[string][]deck.Card) (*engine.Effects, error) {
		return s.engine.LeaveSeat(t, pid, hole, now)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSitOut(w http.ResponseWriter, r *http.Request) {
	pid := playerID(r)
	now := s.clock.Now()
	table, err := s.updateTable(r.Context(), r.PathValue("table"), func(t *engine.Table, hole map[string][]deck.Card) (*engine.Effects, error) {
		return s.engine.SitOut(t, pid, hole, now)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	pid := playerID(r)
	now := s.clock.Now()
	table, err := s.updateTable(r.Context(), r.PathValue("table"), func(t *engine.Table, _ map[string][]deck.Card) (*engine.Effects, error) {
		return s.engine.Return(t, pid, now)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleStartHand(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()
	table, err := s.updateTable(r.Context(), r.PathValue("table"), func(t *engine.Table, _ map[string][]deck.Card) (*engine.Effects, error) {
		return s.engine.StartHand(t, now)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

type actionRequest struct {
	Action string `json:"action"`
	Amount int    `json:"amount,omitempty"`
	TurnID string `json:"turnId,omitempty"`
}

func (s *Server) handlePlayerAction(w http.ResponseWriter, r *http.Request) {
	pid := playerID(r)
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, engine.Errorf(engine.CodeInvalidAction, "malformed body"))
		return
	}
	action := engine.Action{
		Type:   engine.ActionType(req.Action),
		Amount: req.Amount,
		TurnID: req.TurnID,
	}
	now := s.clock.Now()
	table, err := s.updateTable(r.Context(), r.PathValue("table"), func(t *engine.Table, hole map[string][]deck.Card) (*engine.Effects, error) {
		return s.engine.ApplyAction(t, pid, action, hole, now)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.Actions.WithLabelValues(req.Action).Inc()
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleShowCards(w http.ResponseWriter, r *http.Request) {
	pid := playerID(r)
	table, err := s.updateTable(r.Context(), r.PathValue("table"), func(t *engine.Table, hole map[string][]deck.Card) (*engine.Effects, error) {
		return s.engine.ShowCards(t, pid, hole)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleTogglePause(w http.ResponseWriter, r *http.Request) {
	pid := playerID(r)
	now := s.clock.Now()
	table, err := s.updateTable(r.Context(), r.PathValue("table"), func(t *engine.Table, _ map[string][]deck.Card) (*engine.Effects, error) {
		return s.engine.TogglePause(t, pid, now)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": table.Status})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	pid := playerID(r)
	now := s.clock.Now()
	table, err := s.updateTable(r.Context(), r.PathValue("table"), func(t *engine.Table, _ map[string][]deck.Card) (*engine.Effects, error) {
		return s.engine.Resume(t, pid, now)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": table.Status})
}

func (s *Server) handleSetEndAfterHand(w http.ResponseWriter, r *http.Request) {
	pid := playerID(r)
	now := s.clock.Now()
	_, err := s.updateTable(r.Context(), r.PathValue("table"), func(t *engine.Table, _ map[string][]deck.Card) (*engine.Effects, error) {
		return s.engine.SetEndAfterHand(t, pid, now)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	pid := playerID(r)
	now := s.clock.Now()
	_, err := s.updateTable(r.Context(), r.PathValue("table"), func(t *engine.Table, _ map[string][]deck.Card) (*engine.Effects, error) {
		return s.engine.DeleteRoom(t, pid, now)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleGetPrivateCards returns the caller's own hole cards, and nobody
// else's.
func (s *Server) handleGetPrivateCards(w http.ResponseWriter, r *http.Request) {
	pid := playerID(r)
	if pid == "" {
		writeError(w, engine.Errorf(engine.CodeNotAuthorized, "missing player identity"))
		return
	}
	cards, err := s.store.GetPrivateCards(r.Context(), r.PathValue("table"), pid)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"cards": []string{}})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": deck.Encode(cards)})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	afterSeq, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
	events, err := s.store.ListEvents(r.Context(), r.PathValue("table"), afterSeq, 200)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, engine.Errorf(engine.CodeGameNotFound, "table not found"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleGetHandRecord(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		writeError(w, engine.Errorf(engine.CodeInvalidAction, "bad hand number"))
		return
	}
	rec, err := s.store.GetHandRecord(r.Context(), r.PathValue("table"), number)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, engine.Errorf(engine.CodeGameNotFound, "hand not found"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
