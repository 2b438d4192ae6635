package simulator

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jqwei/dualstream/internal/config"
)

const shutdownTimeout = 10 * time.Second

// Server bundles the hub, the feed, and the HTTP listener into one
// runnable simulator.
type Server struct {
	cfg    *config.SimulatorConfig
	hub    *Hub
	feed   *Feed
	server *http.Server
	logger *zap.Logger
}

// NewServer wires a simulator for the given configuration. Dashboards
// connect at /ws; /healthz reports liveness.
func NewServer(cfg *config.SimulatorConfig, logger *zap.Logger) *Server {
	hub := NewHub(logger)
	feed := NewFeed(cfg, hub, logger)
	hub.SetIntentHandler(feed.HandleIntent)

	s := &Server{
		cfg:    cfg,
		hub:    hub,
		feed:   feed,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/healthz", s.handleHealthz)

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Hub exposes the underlying hub, mainly so callers can inject extra
// broadcasts.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run starts the feed, the hub loop, and the HTTP listener, then blocks
// until ctx is cancelled or the listener fails. Shutdown is graceful: the
// feed stops first, the listener drains, the hub closes its sessions.
func (s *Server) Run(ctx context.Context) error {
	if err := s.feed.Start(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.hub.Run()
		return nil
	})

	g.Go(func() error {
		s.logger.Info("Simulator listening",
			zap.String("address", s.server.Addr),
			zap.Strings("symbols", s.cfg.Symbols))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return s.stop()
	})

	return g.Wait()
}

// stop tears the simulator down in dependency order.
func (s *Server) stop() error {
	s.logger.Info("Simulator stopping")

	if err := s.feed.Stop(); err != nil {
		s.logger.Warn("Feed stop error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(shutdownCtx)

	s.hub.Shutdown()

	s.logger.Info("Simulator stopped")
	return err
}

// handleHealthz handles the /healthz endpoint.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "healthy",
		"sessions": s.hub.SessionCount(),
	})
}
