package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/mancala-backend/internal/broadcast"
	"github.com/rocketscienceinc/mancala-backend/internal/entity"
	"github.com/rocketscienceinc/mancala-backend/internal/pkg"
)

const outboxSize = 16

type gameManager interface {
	HostGame(ctx context.Context, participantID string) (*entity.Game, int, error)
	JoinGame(ctx context.Context, gameID, participantID string) (*entity.Game, int, error)
	MakeMove(ctx context.Context, gameID, participantID string, pitIndex int) (*entity.Game, error)
	RequestRematch(ctx context.Context, gameID, participantID string) (*entity.Game, error)
	Disconnect(ctx context.Context, participantID string)
}

type Server struct {
	logger      *slog.Logger
	gameManager gameManager
	broadcaster *broadcast.Broadcaster
	upgrader    websocket.Upgrader

	handlers map[string]func(ctx context.Context, conn *connection, message *Message) error
}

func New(logger *slog.Logger, gameManager gameManager, broadcaster *broadcast.Broadcaster) *Server {
	server := &Server{
		logger:      logger,
		gameManager: gameManager,
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},

		handlers: make(map[string]func(context.Context, *connection, *Message) error),
	}

	server.handlers[actionHost] = server.handleHost
	server.handlers[actionJoin] = server.handleJoin
	server.handlers[actionMove] = server.handleMove
	server.handlers[actionRematch] = server.handleRematch

	return server
}

// Start - starts the WebSocket server and blocks until it fails or ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// connection is one client. Outgoing messages go through a bounded outbox
// drained by a single writer goroutine, so broadcasts never block on the
// socket.
type connection struct {
	id     string
	conn   *websocket.Conn
	outbox chan any
	quit   chan struct{}
}

// Send implements broadcast.Subscriber. It never blocks: a full outbox or a
// closed connection means the message is dropped.
func (that *connection) Send(message any) bool {
	select {
	case <-that.quit:
		return false
	case that.outbox <- message:
		return true
	default:
		return false
	}
}

func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	wsConn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	conn := &connection{
		id:     pkg.GenerateNewSessionID(),
		conn:   wsConn,
		outbox: make(chan any, outboxSize),
		quit:   make(chan struct{}),
	}

	log = log.With("connID", conn.id)
	log.Info("WebSocket connection established")

	that.broadcaster.Register(conn.id, conn)

	writerDone := make(chan struct{})
	go that.writeLoop(conn, writerDone)

	that.readLoop(ctx, conn)

	that.gameManager.Disconnect(ctx, conn.id)
	that.broadcaster.Unregister(conn.id)

	close(conn.quit)
	<-writerDone

	_ = wsConn.Close()

	log.Info("WebSocket connection closed")
}

// readLoop - processes messages from the client until the connection drops.
func (that *Server) readLoop(ctx context.Context, conn *connection) {
	log := that.logger.With("method", "readLoop", "connID", conn.id)

	for {
		_, reqBody, err := conn.conn.ReadMessage()
		if err != nil {
			log.Info("connection read ended", "error", err)
			return
		}

		var message Message
		if err = json.Unmarshal(reqBody, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)
			that.sendErrorResponse(conn, "malformed message")
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Error("unknown action", "action", message.Action)
			that.sendErrorResponse(conn, fmt.Sprintf("unknown action: %s", message.Action))
			continue
		}

		if err = handler(ctx, conn, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

// writeLoop drains the outbox onto the socket.
func (that *Server) writeLoop(conn *connection, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-conn.quit:
			return
		case message := <-conn.outbox:
			if err := conn.conn.WriteJSON(message); err != nil {
				that.logger.Error("failed to write message", "connID", conn.id, "error", err)
				return
			}
		}
	}
}

// sendMessage - enqueues a personal message for this connection.
func (that *Server) sendMessage(conn *connection, action string, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if !conn.Send(Message{Action: action, Payload: payloadJSON}) {
		return fmt.Errorf("connection %s: outbox full", conn.id)
	}

	return nil
}

func (that *Server) sendErrorResponse(conn *connection, errorMsg string) {
	if err := that.sendMessage(conn, actionError, ErrorPayload{Message: errorMsg}); err != nil {
		that.logger.Error("failed to send error response", "connID", conn.id, "error", err)
	}
}
