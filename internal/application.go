package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/arcade-sync/internal/broker"
	"github.com/rocketscienceinc/arcade-sync/internal/config"
	"github.com/rocketscienceinc/arcade-sync/internal/repository"
	"github.com/rocketscienceinc/arcade-sync/internal/repository/storage"
	"github.com/rocketscienceinc/arcade-sync/internal/usecase"
	"github.com/rocketscienceinc/arcade-sync/transport/rest"
	"github.com/rocketscienceinc/arcade-sync/transport/websocket"
)

// RunApp - runs the broker, the relay and the health endpoints until a signal arrives.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	roomRepo, closeStorage, err := newRoomRepository(ctx, log, conf)
	if err != nil {
		return err
	}
	defer closeStorage()

	rooms := usecase.NewRoomManager(logger, roomRepo, usecase.RoomManagerOptions{
		CodeLength:      conf.Relay.CodeLength,
		MaxCodeAttempts: conf.Relay.MaxCodeAttempts,
	})
	hub := broker.NewHub(logger)

	wsServer := websocket.New(logger, rooms, hub, websocket.Options{
		ReadBufferSize:  conf.WS.ReadBuffer,
		WriteBufferSize: conf.WS.WriteBuffer,
	})

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		handlers := rest.NewHandlers(logger, wsServer, hub)
		if httpErr := rest.Start(ctx, conf.HTTPPort, handlers); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

// newRoomRepository - rooms live in process memory unless redis is configured.
func newRoomRepository(ctx context.Context, log *slog.Logger, conf *config.Config) (repository.RoomRepository, func(), error) {
	if conf.Storage != config.StorageRedis {
		log.Info("Using in-memory room storage")
		return repository.NewMemoryRoomRepository(), func() {}, nil
	}

	redisStorage, err := storage.New(ctx, conf.Redis.GetRedisAddr())
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	log.Info("Using redis room storage", "addr", conf.Redis.GetRedisAddr())

	closeStorage := func() {
		if err := redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}

	return repository.NewRoomRepository(redisStorage), closeStorage, nil
}
