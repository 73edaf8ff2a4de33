package server

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/castlemind/chess-mcp-server/internal/domain"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/config"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/engine"
	"github.com/castlemind/chess-mcp-server/internal/infrastructure/logging"
	"github.com/castlemind/chess-mcp-server/internal/usecases/agent"
	"github.com/castlemind/chess-mcp-server/internal/usecases/dispatch"
	"github.com/castlemind/chess-mcp-server/internal/usecases/metrics"
	"github.com/castlemind/chess-mcp-server/internal/usecases/notifications"
	"github.com/castlemind/chess-mcp-server/internal/usecases/ratelimit"
	"github.com/castlemind/chess-mcp-server/internal/usecases/resources"
	"github.com/castlemind/chess-mcp-server/internal/usecases/session"
	"github.com/castlemind/chess-mcp-server/internal/usecases/tools"
	"github.com/castlemind/chess-mcp-server/internal/usecases/validation"
)

// Server assembles every component and runs the configured transports.
type Server struct {
	cfg      *config.Config
	logger   *logging.Logger
	registry *agent.Registry
	sessions *session.Manager
	dispatch *dispatch.Dispatcher
	deps     HandlerDeps
}

// New builds a fully wired server from configuration.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	eng := engine.New()
	catalog := engine.NewCatalog(eng)

	dispatcher := dispatch.New(dispatch.Config{
		Workers: map[domain.OpponentCategory]int{
			domain.CategoryHeavySearch:  cfg.Dispatcher.HeavySearchWorkers,
			domain.CategoryLearnedModel: cfg.Dispatcher.LearnedModelWorkers,
			domain.CategoryHeuristic:    cfg.Dispatcher.HeuristicWorkers,
		},
		QueueDepth: cfg.Dispatcher.QueueDepth,
	}, logger)

	notifier := notifications.New(logger)

	sessions := session.NewManager(session.Config{
		MaxPerAgent:     cfg.Sessions.MaxPerAgent,
		MaxTotal:        cfg.Sessions.MaxTotal,
		OpponentTimeout: cfg.Sessions.OpponentTimeout,
		IdleTimeout:     cfg.Sessions.IdleTimeout,
		SweepInterval:   cfg.Sessions.SweepInterval,
	}, eng, catalog, dispatcher, notifier, logger)

	limiter := ratelimit.New(ratelimit.Config{
		BurstLimit:        cfg.RateLimits.BurstLimit,
		BurstWindow:       time.Duration(cfg.RateLimits.BurstWindowSeconds) * time.Second,
		RequestsPerMinute: cfg.RateLimits.RequestsPerMinute,
		MovesPerMinute:    cfg.RateLimits.MovesPerMinute,
		SessionsPerHour:   cfg.RateLimits.SessionsPerHour,
	}, logger)

	registry := agent.New(cfg.Agents.IdleTimeout, cfg.Agents.SweepInterval, logger)
	// A removed agent keeps no subscriptions or rate-limit history. Its
	// game sessions stay until the session sweep reclaims them.
	registry.OnRemove(func(agentID string) {
		notifier.Unsubscribe(agentID)
		limiter.Release(agentID)
	})

	executor := tools.NewExecutor(sessions, catalog, logger)

	pipeline, err := validation.New(limiter, executor.List(), sessions, logger)
	if err != nil {
		return nil, errors.Wrap(err, "wiring validation pipeline")
	}

	stats := metrics.New()
	provider := resources.NewProvider(catalog, sessions, stats, logger)

	return &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		sessions: sessions,
		dispatch: dispatcher,
		deps: HandlerDeps{
			ServerName:    cfg.Server.Name,
			ServerVersion: cfg.Server.Version,
			Registry:      registry,
			Limiter:       limiter,
			Pipeline:      pipeline,
			Executor:      executor,
			Provider:      provider,
			Notifier:      notifier,
			Metrics:       stats,
			Logger:        logger,
		},
	}, nil
}

// Run starts the sweeps and every configured transport, then blocks until
// ctx is cancelled or a transport fails.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.registry.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.sessions.Run(ctx)
		return nil
	})

	if s.cfg.Server.Stdio {
		g.Go(func() error {
			return s.serveStdio(ctx)
		})
	}
	if s.cfg.Server.ListenAddr != "" {
		g.Go(func() error {
			return s.serveSocket(ctx)
		})
	}

	err := g.Wait()
	s.dispatch.Shutdown()
	return err
}

func (s *Server) serveStdio(ctx context.Context) error {
	t := NewStdioTransport(os.Stdin, os.Stdout, s.logger)
	h := NewHandler(s.deps, t)
	defer h.Close()

	s.logger.Info("stdio transport ready")
	return t.Start(ctx, h.HandleMessage)
}

func (s *Server) serveSocket(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Server.ListenAddr)
	if err != nil {
		return errors.Wrap(err, "listening on "+s.cfg.Server.ListenAddr)
	}
	defer listener.Close()

	s.logger.Info("socket transport ready", logging.Fields{"addr": listener.Addr().String()})

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "accepting connection")
		}
		go s.serveConn(ctx, conn)
	}
}

// serveConn runs one protocol handler for the life of a TCP connection.
// Disconnect removes the agent registration; its sessions survive until the
// idle sweep reclaims them.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	t := NewSocketTransport(conn, s.logger)
	h := NewHandler(s.deps, t)
	defer h.Close()
	defer t.Close()

	s.logger.Info("connection accepted", logging.Fields{"remote": conn.RemoteAddr().String()})
	if err := t.Start(ctx, h.HandleMessage); err != nil && ctx.Err() == nil {
		s.logger.Warn("connection ended with error", logging.Fields{
			"remote": conn.RemoteAddr().String(),
			"error":  err.Error(),
		})
	}
}
