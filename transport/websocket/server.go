package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/arcade-sync/internal/broker"
	"github.com/rocketscienceinc/arcade-sync/internal/entity"
	"github.com/rocketscienceinc/arcade-sync/internal/usecase"
)

type roomManager interface {
	CreateRoom(ctx context.Context, participantID string) (*entity.Room, error)
	JoinRoom(ctx context.Context, code, participantID string) (*entity.Room, error)
	MakeMove(ctx context.Context, code, participantID string, cell int) (*usecase.MoveOutcome, error)
	Restart(ctx context.Context, code, participantID string) (*entity.Room, error)
	Leave(ctx context.Context, participantID string) (*entity.Room, error)
}

type Options struct {
	ReadBufferSize  int
	WriteBufferSize int
}

type Server struct {
	logger *slog.Logger
	rooms  roomManager
	hub    *broker.Hub

	upgrader websocket.Upgrader

	handlers map[string]func(ctx context.Context, c *client, msg *Message) error

	// relayMutex - a room change and its broadcast happen as one step.
	relayMutex sync.Mutex

	clientsMutex sync.RWMutex
	clients      map[string]*client
	connections  map[*client]struct{}
}

func New(logger *slog.Logger, rooms roomManager, hub *broker.Hub, options Options) *Server {
	server := &Server{
		logger: logger.With("component", "websocket"),
		rooms:  rooms,
		hub:    hub,

		upgrader: websocket.Upgrader{
			ReadBufferSize:  options.ReadBufferSize,
			WriteBufferSize: options.WriteBufferSize,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},

		handlers:    make(map[string]func(context.Context, *client, *Message) error),
		clients:     make(map[string]*client),
		connections: make(map[*client]struct{}),
	}

	server.handlers[actionCreateRoom] = server.handleCreateRoom
	server.handlers[actionJoinRoom] = server.handleJoinRoom
	server.handlers[actionMakeMove] = server.handleMakeMove
	server.handlers[actionRestartGame] = server.handleRestartGame

	return server
}

// Router - the relay lives on /ws, the peer broker on /peer.
func (that *Server) Router(ctx context.Context) http.Handler {
	router := chi.NewRouter()

	router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveRelay(ctx, w, r)
	})
	router.Get("/peer", that.servePeer)

	return router
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
		that.closeAll()
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Connections - number of open websocket connections of both kinds.
func (that *Server) Connections() int {
	that.clientsMutex.RLock()
	defer that.clientsMutex.RUnlock()

	return len(that.connections)
}

func (that *Server) track(c *client) {
	that.clientsMutex.Lock()
	that.connections[c] = struct{}{}
	that.clientsMutex.Unlock()
}

func (that *Server) untrack(c *client) {
	that.clientsMutex.Lock()
	delete(that.connections, c)
	if that.clients[c.id] == c {
		delete(that.clients, c.id)
	}
	that.clientsMutex.Unlock()
}

// closeAll - hijacked connections are not closed by http.Server.Shutdown.
func (that *Server) closeAll() {
	that.clientsMutex.RLock()
	defer that.clientsMutex.RUnlock()

	for c := range that.connections {
		c.close()
	}
}
