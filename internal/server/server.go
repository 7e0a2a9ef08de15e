// Package server composes the engine, store and scheduler behind the
// transport surface: JSON-over-HTTP operations for players, scheduled-task
// endpoints for delayed deliveries, a websocket state stream per table and
// a Prometheus metrics endpoint.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/lox/holdemd/internal/engine"
	"github.com/lox/holdemd/internal/scheduler"
	"github.com/lox/holdemd/internal/store"
)

// Options configure the server
type Options struct {
	Addr               string
	SweepInterval      time.Duration
	SweepGrace         time.Duration
	DefaultTurnTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Addr == "" {
		o.Addr = "localhost:8080"
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 10 * time.Second
	}
	if o.SweepGrace <= 0 {
		o.SweepGrace = 3 * time.Second
	}
	if o.DefaultTurnTimeout <= 0 {
		o.DefaultTurnTimeout = 30 * time.Second
	}
	return o
}

// Server is the composed daemon
type Server struct {
	opts    Options
	store   store.Store
	engine  *engine.Engine
	sched   *scheduler.Scheduler
	clock   quartz.Clock
	logger  *log.Logger
	metrics *Metrics
	hub     *Hub
	mux     *http.ServeMux
}

// New wires a server together. The scheduler's handler is the server's
// own task dispatcher, so queue deliveries and HTTP task deliveries share
// one idempotent path.
func New(opts Options, st store.Store, eng *engine.Engine, queue scheduler.Queue, clock quartz.Clock, logger *log.Logger, reg prometheus.Registerer) *Server {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{
		opts:    opts.withDefaults(),
		store:   st,
		engine:  eng,
		clock:   clock,
		logger:  logger.WithPrefix("server"),
		metrics: NewMetrics(reg),
	}
	s.hub = NewHub(st, logger)
	s.sched = scheduler.New(queue, s.HandleTask, clock, logger, time.Second)

	s.mux = http.NewServeMux()
	s.routes()
	if gatherer, ok := reg.(prometheus.Gatherer); ok {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /v1/rooms", s.handleCreateRoom)
	s.mux.HandleFunc("GET /v1/rooms", s.handleListRooms)
	s.mux.HandleFunc("GET /v1/rooms/{table}", s.handleGetTable)
	s.mux.HandleFunc("DELETE /v1/rooms/{table}", s.handleDeleteRoom)
	s.mux.HandleFunc("POST /v1/rooms/{table}/seats", s.handleJoinSeat)
	s.mux.HandleFunc("POST /v1/rooms/{table}/leave", s.handleLeaveSeat)
	s.mux.HandleFunc("POST /v1/rooms/{table}/sit-out", s.handleSitOut)
	s.mux.HandleFunc("POST /v1/rooms/{table}/return", s.handleReturn)
	s.mux.HandleFunc("POST /v1/rooms/{table}/start", s.handleStartHand)
	s.mux.HandleFunc("POST /v1/rooms/{table}/actions", s.handlePlayerAction)
	s.mux.HandleFunc("POST /v1/rooms/{table}/show-cards", s.handleShowCards)
	s.mux.HandleFunc("POST /v1/rooms/{table}/toggle-pause", s.handleTogglePause)
	s.mux.HandleFunc("POST /v1/rooms/{table}/resume", s.handleResume)
	s.mux.HandleFunc("POST /v1/rooms/{table}/end-after-hand", s.handleSetEndAfterHand)
	s.mux.HandleFunc("GET /v1/rooms/{table}/cards", s.handleGetPrivateCards)
	s.mux.HandleFunc("GET /v1/rooms/{table}/events", s.handleListEvents)
	s.mux.HandleFunc("GET /v1/rooms/{table}/hands/{number}", s.handleGetHandRecord)
	s.mux.HandleFunc("GET /v1/rooms/{table}/ws", s.handleWebsocket)

	// Scheduled-task deliveries from an external queue. Idempotent and
	// token-checked; a benign zombie still returns 200.
	s.mux.HandleFunc("POST /tasks/turn-timeout", s.taskEndpoint(engine.TaskTurnTimeout))
	s.mux.HandleFunc("POST /tasks/showdown-resolve", s.taskEndpoint(engine.TaskShowdownResolve))
	s.mux.HandleFunc("POST /tasks/win-by-fold-timeout", s.taskEndpoint(engine.TaskWinByFoldTimeout))
	s.mux.HandleFunc("POST /tasks/start-next-hand", s.taskEndpoint(engine.TaskStartNextHand))
	s.mux.HandleFunc("POST /tasks/room-auto-close", s.taskEndpoint(engine.TaskRoomAutoClose))
}

// Handler returns the HTTP handler; exposed for tests
func (s *Server) Handler() http.Handler { return s.mux }

// Run serves HTTP and runs the scheduler and sweeper until ctx cancels
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("listening", "addr", listener.Addr().String())

	httpServer := &http.Server{Handler: s.mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := httpServer.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return s.sched.Run(ctx) })
	g.Go(func() error { return s.runSweeper(ctx) })
	return g.Wait()
}
