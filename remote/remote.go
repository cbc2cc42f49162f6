// Package remote exposes settings and actions over a websocket so the field
// can be driven from another machine.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/pthm-cable/hopalong/game"
	"github.com/pthm-cable/hopalong/settings"
)

// Command types sent by clients.
const (
	CommandSettings = "settings"
	CommandAction   = "action"
	CommandGet      = "get"
)

// Event types sent to clients.
const (
	EventSettings = "settings"
	EventError    = "error"
)

const (
	queueSize    = 64
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

// ErrQueueFull is reported to a client whose command could not be queued.
var ErrQueueFull = errors.New("command queue full")

// Command is a client request.
type Command struct {
	Type     string            `json:"type"`
	Settings *settings.Partial `json:"settings,omitempty"`
	Action   string            `json:"action,omitempty"`

	from *client
}

// Event is a server notification.
type Event struct {
	Type     string             `json:"type"`
	Settings *settings.Settings `json:"settings,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// Validate checks that a command is complete.
func (c Command) Validate() error {
	switch c.Type {
	case CommandSettings:
		if c.Settings == nil {
			return errors.New("settings command without settings")
		}
		return c.Settings.Validate()
	case CommandAction:
		_, err := game.ParseAction(c.Action)
		return err
	case CommandGet:
		return nil
	default:
		return fmt.Errorf("unknown command type %q", c.Type)
	}
}

// DecodeCommand parses and validates one JSON command.
func DecodeCommand(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Command{}, fmt.Errorf("decoding command: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Command{}, err
	}
	return c, nil
}

// Controller is what queued commands are applied to. *game.App implements it.
type Controller interface {
	ApplySettings(p settings.Partial) error
	HandleAction(a game.Action) error
	Settings() settings.Settings
}

type client struct {
	send chan Event
}

// Server accepts websocket clients. Connections run on their own goroutines
// and only enqueue commands; Drain applies them on the caller's goroutine.
type Server struct {
	logger *slog.Logger
	cmds   chan Command

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewServer creates a server. logger may be nil.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:  logger.With("component", "remote"),
		cmds:    make(chan Command, queueSize),
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the websocket endpoint.
func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			s.logger.Warn("websocket accept failed", "error", err)
			return
		}
		s.serve(r.Context(), c)
	}
}

func (s *Server) serve(ctx context.Context, c *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cl := &client{send: make(chan Event, sendBuffer)}
	s.mu.Lock()
	s.clients[cl] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("client connected", "clients", n)

	defer func() {
		s.mu.Lock()
		delete(s.clients, cl)
		s.mu.Unlock()
		c.Close(websocket.StatusNormalClosure, "")
	}()

	go s.writeLoop(ctx, cancel, c, cl)

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, c, &raw); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && ctx.Err() == nil {
				s.logger.Info("client read ended", "error", err)
			}
			return
		}

		cmd, err := DecodeCommand(raw)
		if err != nil {
			cl.push(Event{Type: EventError, Error: err.Error()})
			continue
		}
		cmd.from = cl

		select {
		case s.cmds <- cmd:
		default:
			cl.push(Event{Type: EventError, Error: ErrQueueFull.Error()})
		}
	}
}

func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, cl *client) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-cl.send:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c, ev)
			wcancel()
			if err != nil {
				return
			}
		}
	}
}

// push queues an event, dropping it if the client is not keeping up.
func (c *client) push(ev Event) {
	select {
	case c.send <- ev:
	default:
	}
}

// Drain applies every queued command to ctl and returns how many were applied.
func (s *Server) Drain(ctl Controller) int {
	n := 0
	for {
		select {
		case cmd := <-s.cmds:
			s.apply(ctl, cmd)
			n++
		default:
			return n
		}
	}
}

func (s *Server) apply(ctl Controller, cmd Command) {
	var err error
	switch cmd.Type {
	case CommandSettings:
		err = ctl.ApplySettings(*cmd.Settings)
	case CommandAction:
		var a game.Action
		if a, err = game.ParseAction(cmd.Action); err == nil {
			err = ctl.HandleAction(a)
		}
	case CommandGet:
		cur := ctl.Settings()
		cmd.from.push(Event{Type: EventSettings, Settings: &cur})
	}
	if err != nil && cmd.from != nil {
		cmd.from.push(Event{Type: EventError, Error: err.Error()})
	}
}

// Broadcast sends settings to every connected client.
func (s *Server) Broadcast(cur settings.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cl := range s.clients {
		cl.push(Event{Type: EventSettings, Settings: &cur})
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ListenAndServe serves the endpoint at /ws until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("remote control listening", "addr", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("remote server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
