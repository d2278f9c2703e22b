package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hugo-lorenzo-mato/agentmesh/internal/adapters/wire"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/core"
	"github.com/hugo-lorenzo-mato/agentmesh/internal/logging"
)

// Processor executes a submitted request, emitting protocol frames for its
// progress. It must stop when ctx is cancelled.
type Processor interface {
	Process(ctx context.Context, taskID, text string, emit func(wire.Message) error) error
}

// Server accepts console connections and runs their submissions through a
// Processor.
type Server struct {
	processor Processor
	upgrader  websocket.Upgrader
	logger    *logging.Logger
	newID     func() string
	now       func() time.Time

	wg sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger.
func WithServerLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithIDGenerator overrides task id generation.
func WithIDGenerator(fn func() string) ServerOption {
	return func(s *Server) {
		s.newID = fn
	}
}

// NewServer creates a backend endpoint driven by p.
func NewServer(p Processor, opts ...ServerOption) *Server {
	s := &Server{
		processor: p,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logging.NewNop(),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("ws-server")
	return s
}

// Wait blocks until every running task has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	connID := uuid.NewString()
	logger := s.logger.With("connection_id", connID)
	logger.Info("console connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	sess := &session{conn: conn, server: s, logger: logger}
	defer func() {
		cancel()
		_ = conn.Close()
		logger.Info("console disconnected")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := wire.Parse(data)
		if err != nil {
			logger.Warn("invalid frame", "error", err)
			continue
		}
		if msg.Event != wire.EventUserInput {
			logger.Warn("unknown event type", "event", msg.Event)
			continue
		}
		sess.handleInput(ctx, msg)
	}
}

type session struct {
	conn    *websocket.Conn
	server  *Server
	logger  *logging.Logger
	writeMu sync.Mutex
}

func (s *session) handleInput(ctx context.Context, msg wire.Message) {
	var in wire.UserInput
	if err := json.Unmarshal(msg.Data, &in); err != nil || core.IsBlank(in.Text) {
		s.logger.Warn("empty user input received")
		s.send(wire.EventUserTaskSubmit, "", wire.TaskSubmit{Status: wire.StatusFailed, Msg: "Failed to process task: empty input"})
		return
	}

	taskID := s.server.newID()
	if err := s.send(wire.EventUserTaskSubmit, taskID, wire.TaskSubmit{
		Status: wire.StatusSuccess,
		TaskID: taskID,
		Msg:    "Task submitted successfully",
	}); err != nil {
		return
	}

	logger := s.logger.WithTask(taskID)
	logger.Info("task started")
	s.server.wg.Add(1)
	go func() {
		defer s.server.wg.Done()
		err := s.server.processor.Process(ctx, taskID, in.Text, s.emit)
		switch {
		case err == nil:
			logger.Info("task finished")
		case ctx.Err() != nil:
			logger.Info("task abandoned", "reason", ctx.Err())
		default:
			logger.Error("task failed", "error", err)
			_ = s.send(wire.EventTaskResult, taskID, wire.TaskResult{TaskID: taskID, Status: wire.StatusFailed})
		}
	}()
}

func (s *session) send(event, taskID string, data any) error {
	msg, err := wire.NewMessage(event, taskID, data, s.server.now())
	if err != nil {
		return err
	}
	return s.emit(msg)
}

func (s *session) emit(msg wire.Message) error {
	if err := writeFrame(&s.writeMu, s.conn, msg); err != nil {
		s.logger.Warn("sending frame failed", "event", msg.Event, "error", err)
		return core.ErrTransport("sending " + msg.Event).WithCause(err)
	}
	return nil
}
