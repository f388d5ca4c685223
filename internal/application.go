package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/mancala-backend/internal/broadcast"
	"github.com/rocketscienceinc/mancala-backend/internal/config"
	"github.com/rocketscienceinc/mancala-backend/internal/registry"
	"github.com/rocketscienceinc/mancala-backend/internal/repository"
	"github.com/rocketscienceinc/mancala-backend/internal/repository/storage"
	"github.com/rocketscienceinc/mancala-backend/internal/usecase"
	"github.com/rocketscienceinc/mancala-backend/transport/rest"
	"github.com/rocketscienceinc/mancala-backend/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
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

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	gameRepo := repository.NewGameRepository(redisStorage.Connection)
	localGameRepo := repository.NewLocalGameRepository(redisStorage.Connection)

	sessions := registry.New(logger, conf.Session.EvictionGrace, func(gameID string) {
		if deleteErr := gameRepo.DeleteByID(ctx, gameID); deleteErr != nil {
			log.Error("failed to delete game snapshot", "gameID", gameID, "error", deleteErr)
		}
	})

	go sessions.RunStaleSweeper(ctx, conf.Session.SweepInterval, conf.Session.StaleTimeout)

	broadcaster := broadcast.New(logger)
	publisher := websocket.NewStatePublisher(logger, broadcaster)
	gameManager := usecase.NewGameManager(logger, sessions, gameRepo, publisher)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		restHandlers := rest.NewHandlers(logger, localGameRepo)
		if httpErr := rest.Start(ctx, conf.HTTPPort, restHandlers); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, gameManager, broadcaster)
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
