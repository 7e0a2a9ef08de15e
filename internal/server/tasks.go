package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/engine"
)

// HandleTask dispatches one delayed delivery, whether it arrived from the
// internal queue or an external HTTP push. Zombie results are surfaced to
// the caller so the queue can ack without noise.
func (s *Server) HandleTask(ctx context.Context, task engine.Task) error {
	now := s.clock.Now()

	var opErr error
	_, err := s.updateTable(ctx, task.TableID, func(t *engine.Table, hole map[string][]deck.Card) (*engine.Effects, error) {
		var eff *engine.Effects
		switch task.Kind {
		case engine.TaskTurnTimeout:
			eff, opErr = s.engine.ApplyTimeout(t, task.Token, hole, now)
			if opErr == nil {
				s.metrics.Timeouts.Inc()
			}
		case engine.TaskShowdownResolve:
			eff, opErr = s.engine.ResolveShowdown(t, task.Token, now)
			if opErr == nil {
				s.metrics.HandsPlayed.Inc()
			}
		case engine.TaskWinByFoldTimeout:
			eff, opErr = s.engine.WinByFoldTimeout(t, task.Token, now)
			if opErr == nil {
				s.metrics.HandsPlayed.Inc()
			}
		case engine.TaskStartNextHand:
			eff, opErr = s.engine.StartNextHand(t, task.Token, now)
		case engine.TaskRoomAutoClose:
			eff, opErr = s.engine.AutoClose(t, task.Token, now)
		default:
			return nil, engine.Errorf(engine.CodeInvalidAction, "unknown task kind %q", task.Kind)
		}
		return eff, opErr
	})

	if engine.IsZombie(err) || engine.IsZombie(opErr) {
		s.metrics.ZombieTasks.Inc()
		s.logger.Debug("zombie task ignored", "kind", task.Kind, "tableID", task.TableID)
		return engine.ErrZombieTask
	}
	if engine.CodeOf(err) == engine.CodeGameNotFound {
		// The room is gone; nothing left to adjudicate.
		return engine.ErrZombieTask
	}
	return err
}

type taskRequest struct {
	TableID        string `json:"tableId"`
	TurnID         string `json:"turnId,omitempty"`
	ShowdownID     string `json:"showdownId,omitempty"`
	WinByFoldID    string `json:"winByFoldId,omitempty"`
	NextHandID     string `json:"nextHandId,omitempty"`
	AutoCloseToken string `json:"autoCloseToken,omitempty"`
}

func (r taskRequest) token(kind engine.TaskKind) string {
	switch kind {
	case engine.TaskTurnTimeout:
		return r.TurnID
	case engine.TaskShowdownResolve:
		return r.ShowdownID
	case engine.TaskWinByFoldTimeout:
		return r.WinByFoldID
	case engine.TaskStartNextHand:
		return r.NextHandID
	case engine.TaskRoomAutoClose:
		return r.AutoCloseToken
	default:
		return ""
	}
}

// taskEndpoint adapts an external delayed-delivery push to HandleTask
func (s *Server) taskEndpoint(kind engine.TaskKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req taskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TableID == "" {
			writeError(w, engine.Errorf(engine.CodeInvalidAction, "malformed task body"))
			return
		}
		task := engine.Task{Kind: kind, TableID: req.TableID, Token: req.token(kind)}
		err := s.HandleTask(r.Context(), task)
		if err != nil && !engine.IsZombie(err) {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"ignored": engine.IsZombie(err),
		})
	}
}

// runSweeper adjudicates overdue turns whose queue delivery was lost.
// It only fires after a grace window past the deadline so the primary
// delivery path always gets the first shot.
func (s *Server) runSweeper(ctx context.Context) error {
	ticker := s.clock.TickerFunc(ctx, s.opts.SweepInterval, func() error {
		s.sweep(ctx)
		return nil
	}, "turn-sweeper")
	err := ticker.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Server) sweep(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.opts.SweepGrace)
	overdue, err := s.store.OverdueTurns(ctx, cutoff)
	if err != nil {
		s.logger.Error("sweep scan failed", "error", err)
		return
	}
	for _, o := range overdue {
		task := engine.Task{Kind: engine.TaskTurnTimeout, TableID: o.TableID, Token: o.TurnID}
		if err := s.HandleTask(ctx, task); err != nil && !engine.IsZombie(err) {
			s.logger.Error("sweep adjudication failed", "tableID", o.TableID, "error", err)
		}
	}
}
