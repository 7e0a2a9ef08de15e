package server

import (
	"context"
	"errors"
	rand "math/rand/v2"
	"time"

	"github.com/lox/holdemd/internal/deck"
	"github.com/lox/holdemd/internal/engine"
	"github.com/lox/holdemd/internal/store"
)

const (
	txnRetries = 3
	retryBase  = 25 * time.Millisecond
)

// tableOp computes one state transition against a transaction snapshot.
// All reads happen via txn before the op stages any write.
type tableOp func(t *engine.Table, hole map[string][]deck.Card) (*engine.Effects, error)

// updateTable runs op inside a per-table optimistic transaction, retrying
// conflicts with jittered backoff, and applies the effects: events, card
// writes and the hand record commit with the table; tasks are enqueued
// strictly after commit.
func (s *Server) updateTable(ctx context.Context, tableID string, op tableOp) (*engine.Table, error) {
	var result *engine.Table
	var tasks []engine.Task

	for attempt := 0; ; attempt++ {
		result, tasks = nil, nil
		err := s.store.RunTableTxn(ctx, tableID, func(txn store.Txn) error {
			t := txn.Table()
			eff, err := op(t, txn.HoleCards())
			if err != nil {
				return err
			}
			txn.SetTable(t)
			if eff != nil {
				for _, ev := range eff.Events {
					txn.AppendEvent(ev)
				}
				for pid, cards := range eff.PrivateCards {
					txn.PutPrivateCards(pid, cards)
				}
				if eff.DeletePrivateCards {
					txn.DeletePrivateCards()
				} else if len(eff.DeletePlayers) > 0 {
					txn.DeletePrivateCards(eff.DeletePlayers...)
				}
				if eff.HandRecord != nil {
					txn.PutHandRecord(eff.HandRecord)
				}
				tasks = eff.Tasks
			}
			result = t
			return nil
		})
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, engine.Errorf(engine.CodeGameNotFound, "table %s not found", tableID)
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		s.metrics.TxnConflicts.Inc()
		if attempt+1 >= txnRetries {
			return nil, engine.Errorf(engine.CodeTransactionConflict, "table %s is busy, try again", tableID)
		}
		backoff := retryBase<<attempt + time.Duration(rand.Int64N(int64(retryBase)))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	// Post-transaction epilogue: if the commit happened, the tokens inside
	// these tasks are durable, so enqueue failures are recoverable by the
	// sweeper rather than fatal.
	for _, task := range tasks {
		if err := s.sched.Enqueue(ctx, task); err != nil {
			s.logger.Error("enqueue after commit failed; sweeper will adjudicate",
				"kind", task.Kind, "tableID", task.TableID, "error", err)
		}
	}

	s.hub.BroadcastState(ctx, result)
	return result, nil
}
