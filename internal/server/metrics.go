package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the engine-level Prometheus collectors
type Metrics struct {
	Actions      *prometheus.CounterVec
	Timeouts     prometheus.Counter
	ZombieTasks  prometheus.Counter
	TxnConflicts prometheus.Counter
	HandsPlayed  prometheus.Counter
}

// NewMetrics builds and registers the collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holdemd_actions_total",
			Help: "Player actions processed, by action type.",
		}, []string{"action"}),
		Timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holdemd_turn_timeouts_total",
			Help: "Turns adjudicated by the timeout handler.",
		}),
		ZombieTasks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holdemd_zombie_tasks_total",
			Help: "Scheduled deliveries dropped by token checks.",
		}),
		TxnConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holdemd_txn_conflicts_total",
			Help: "Optimistic transaction conflicts, including retried ones.",
		}),
		HandsPlayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holdemd_hands_total",
			Help: "Hands resolved to completion.",
		}),
	}
	reg.MustRegister(m.Actions, m.Timeouts, m.ZombieTasks, m.TxnConflicts, m.HandsPlayed)
	return m
}
