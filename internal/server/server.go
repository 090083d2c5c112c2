// Package server exposes connection profiles over a small JSON HTTP API.
//
// Every request opens its own Connection for the selected profile and
// releases it before the response completes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/leapconn/internal/config"
	"github.com/leapstack-labs/leapconn/internal/server/notifier"
	"golang.org/x/sync/errgroup"
)

// reloadDebounce coalesces the burst of events editors emit on save.
const reloadDebounce = 100 * time.Millisecond

// Loader re-reads the configuration when the config file changes.
type Loader func() (*config.Config, error)

// Options configures a Server.
type Options struct {
	Config *config.Config
	Loader Loader
	Addr   string
	Watch  bool
	Logger *slog.Logger
}

// Server serves the HTTP API.
type Server struct {
	cfg        atomic.Pointer[config.Config]
	generation atomic.Uint64
	load       Loader
	addr       string
	watch      bool
	logger     *slog.Logger
	notifier   *notifier.Notifier
}

// New creates a Server. A nil logger discards output.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	addr := opts.Addr
	if addr == "" {
		addr = config.DefaultServerAddr
	}
	s := &Server{
		load:     opts.Loader,
		addr:     addr,
		watch:    opts.Watch,
		logger:   logger,
		notifier: notifier.New(),
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	s.cfg.Store(cfg)
	return s
}

// Config returns the active configuration.
func (s *Server) Config() *config.Config { return s.cfg.Load() }

// Notifier returns the reload notifier.
func (s *Server) Notifier() *notifier.Notifier { return s.notifier }

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		s.requestLogger,
		middleware.Recoverer,
	)
	s.routes(r)
	return r
}

// Serve starts the server and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting server", "addr", ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		eg.Go(func() error {
			return s.watchConfig(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(egctx), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Reload re-reads the configuration through the Loader. On failure the
// previous configuration stays active. Subscribers are notified either way.
func (s *Server) Reload() error {
	if s.load == nil {
		return errors.New("no config loader")
	}
	cfg, err := s.load()
	if err != nil {
		s.logger.Error("config reload failed, keeping previous config", "error", err)
		s.notifier.Broadcast(notifier.Event{Generation: s.generation.Load(), Profiles: s.Config().ProfileNames(), Err: err})
		return err
	}
	s.cfg.Store(cfg)
	gen := s.generation.Add(1)
	s.logger.Info("config reloaded", "generation", gen, "connections", len(cfg.Connections))
	s.notifier.Broadcast(notifier.Event{Generation: gen, Profiles: cfg.ProfileNames()})
	return nil
}

// watchConfig reloads the configuration when its file changes.
func (s *Server) watchConfig(ctx context.Context) error {
	path := s.Config().File
	if path == "" {
		s.logger.Warn("no config file loaded, not watching")
		return nil
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors often replace the file instead of writing it.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		s.logger.Error("failed to watch config directory", "error", err)
		return nil
	}
	s.logger.Debug("watching config file", "path", path)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, func() {
				s.logger.Debug("config file changed", "file", event.Name)
				_ = s.Reload()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
