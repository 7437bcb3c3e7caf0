// Package server exposes an inspector over HTTP and websockets. A websocket stream receives the
// client's events once per step as JSON-RPC responses and accepts mutation commands as JSON-RPC
// requests. One-shot queries are served over POST.
package server

import (
	"context"
	"net"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"pkg.world.dev/world-engine/inspector/inspector"
)

type Server struct {
	app       *fiber.App
	inspector *inspector.Inspector
	mailbox   *inspector.Mailbox

	mu      sync.Mutex
	streams map[*websocket.Conn]struct{}

	options Options
	logger  zerolog.Logger
}

// New returns a server for insp. The server only talks to the inspector through its mailbox; the
// step loop must be running for requests to be answered.
func New(insp *inspector.Inspector, opts Options) (*Server, error) {
	if insp == nil {
		return nil, eris.New("server requires a non-nil inspector")
	}
	options := newDefaultOptions()
	options.apply(opts)
	if err := options.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid server options")
	}

	app := fiber.New(fiber.Config{
		Network:               "tcp", // Enable server listening on both ipv4 & ipv6 (default: ipv4 only)
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})
	app.Use(cors.New())

	s := &Server{
		app:       app,
		inspector: insp,
		mailbox:   insp.Mailbox(),
		streams:   make(map[*websocket.Conn]struct{}),
		options:   options,
		logger:    options.logger(),
	}
	s.setupRoutes()
	return s, nil
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve listens on the configured address until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.options.Address)
	if err != nil {
		return eris.Wrapf(err, "failed to listen on %s", s.options.Address)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then closes every open stream and shuts down.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", ln.Addr().String()).Msg("starting inspector server")
		if err := s.app.Listener(ln); err != nil {
			serverErr <- eris.Wrap(err, "error starting http server")
		}
	}()

	select {
	case err := <-serverErr:
		return eris.Wrap(err, "server encountered an error")
	case <-ctx.Done():
		if err := s.shutdown(); err != nil {
			return eris.Wrap(err, "error shutting down server")
		}
	}
	return nil
}

func (s *Server) shutdown() error {
	s.logger.Info().Msg("shutting down server")

	s.mu.Lock()
	for conn := range s.streams {
		_ = conn.Close()
	}
	s.mu.Unlock()

	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return eris.Wrap(err, "error shutting down server")
	}
	s.logger.Info().Msg("successfully shut down server")
	return nil
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", s.handleHealth)

	for _, path := range []string{"/", "/inspector"} {
		s.app.Get(path, s.upgrade, websocket.New(s.stream))
		s.app.Post(path, s.handleRPC)
	}
}

func (s *Server) track(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[conn] = struct{}{}
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, conn)
}
