package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/mancala-backend/internal/apperror"
	"github.com/rocketscienceinc/mancala-backend/internal/broadcast"
	"github.com/rocketscienceinc/mancala-backend/internal/entity"
)

func (that *Server) handleHost(ctx context.Context, conn *connection, _ *Message) error {
	log := that.logger.With("method", "handleHost", "connID", conn.id)

	game, role, err := that.gameManager.HostGame(ctx, conn.id)
	if err != nil {
		log.Error("failed to host game", "error", err)
		that.sendErrorResponse(conn, "failed to host a new game")
		return nil
	}

	that.broadcaster.Subscribe(broadcast.TopicFor(game.ID), conn.id)

	details := GameDetails{Game: *game, AssignedPlayerRole: role}
	if err = that.sendMessage(conn, actionDetails, details); err != nil {
		return fmt.Errorf("failed to send game details: %w", err)
	}

	log.Info("game hosted", "gameID", game.ID)

	return nil
}

func (that *Server) handleJoin(ctx context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleJoin", "connID", conn.id)

	var payloadReq JoinRequest
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		log.Error("failed to unmarshal payload", "error", err)
		that.sendErrorResponse(conn, "malformed join request")
		return nil
	}

	if payloadReq.GameID == "" {
		that.sendErrorResponse(conn, "gameId is required")
		return nil
	}

	// Subscribe before the join broadcast goes out, so the joiner's own
	// connection receives it too.
	that.broadcaster.Subscribe(broadcast.TopicFor(payloadReq.GameID), conn.id)

	game, role, err := that.gameManager.JoinGame(ctx, payloadReq.GameID, conn.id)
	if err != nil {
		// A failed join must not leave the caller listening on someone
		// else's session.
		that.broadcaster.Unsubscribe(broadcast.TopicFor(payloadReq.GameID), conn.id)

		log.Error("failed to join game", "gameID", payloadReq.GameID, "error", err)
		that.sendErrorResponse(conn, joinErrorMessage(payloadReq.GameID, err))
		return nil
	}

	details := GameDetails{Game: *game, AssignedPlayerRole: role}
	if err = that.sendMessage(conn, actionDetails, details); err != nil {
		return fmt.Errorf("failed to send game details: %w", err)
	}

	log.Info("joined game", "gameID", game.ID)

	return nil
}

func (that *Server) handleMove(ctx context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleMove", "connID", conn.id)

	var payloadReq MoveRequest
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		log.Error("failed to unmarshal payload", "error", err)
		that.sendErrorResponse(conn, "malformed move request")
		return nil
	}

	if payloadReq.GameID == "" {
		that.sendErrorResponse(conn, "gameId is required")
		return nil
	}

	if _, err := that.gameManager.MakeMove(ctx, payloadReq.GameID, conn.id, payloadReq.PitIndex); err != nil {
		log.Info("move rejected", "gameID", payloadReq.GameID, "pitIndex", payloadReq.PitIndex, "error", err)
		that.sendErrorResponse(conn, protocolErrorMessage(err))
		return nil
	}

	// The updated state reaches both players through the session broadcast.
	return nil
}

func (that *Server) handleRematch(ctx context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleRematch", "connID", conn.id)

	var payloadReq RematchRequest
	if err := json.Unmarshal(msg.Payload, &payloadReq); err != nil {
		log.Error("failed to unmarshal payload", "error", err)
		that.sendErrorResponse(conn, "malformed rematch request")
		return nil
	}

	if payloadReq.GameID == "" {
		that.sendErrorResponse(conn, "gameId is required")
		return nil
	}

	if _, err := that.gameManager.RequestRematch(ctx, payloadReq.GameID, conn.id); err != nil {
		log.Info("rematch rejected", "gameID", payloadReq.GameID, "error", err)
		that.sendErrorResponse(conn, protocolErrorMessage(err))
		return nil
	}

	return nil
}

// joinErrorMessage keeps the user-visible text stable for the two join
// failure kinds.
func joinErrorMessage(gameID string, err error) string {
	switch {
	case errors.Is(err, apperror.ErrSessionNotFound):
		return fmt.Sprintf("game %s not found", gameID)
	case errors.Is(err, apperror.ErrSessionFull):
		return fmt.Sprintf("game %s is already full", gameID)
	default:
		return fmt.Sprintf("failed to join game %s", gameID)
	}
}

// protocolErrorMessage maps coordinator errors to user-visible messages
// without leaking wrapped internals.
func protocolErrorMessage(err error) string {
	for _, known := range []error{
		apperror.ErrInvalidMove,
		apperror.ErrNotYourTurn,
		apperror.ErrGameFinished,
		apperror.ErrGameNotFinished,
		apperror.ErrGameIsNotStarted,
		apperror.ErrGameCancelled,
		apperror.ErrNotAParticipant,
		apperror.ErrSessionNotFound,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}

	return "internal error"
}

// StatePublisher lets the session coordinator broadcast snapshots without
// knowing the wire envelope.
type StatePublisher struct {
	broadcaster *broadcast.Broadcaster
	logger      *slog.Logger
}

func NewStatePublisher(logger *slog.Logger, broadcaster *broadcast.Broadcaster) *StatePublisher {
	return &StatePublisher{
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// PublishState - sends the full game snapshot to every subscriber of the
// session topic.
func (that *StatePublisher) PublishState(gameID string, game *entity.Game) {
	payloadJSON, err := json.Marshal(game)
	if err != nil {
		that.logger.Error("failed to marshal game state", "gameID", gameID, "error", err)
		return
	}

	that.broadcaster.Publish(broadcast.TopicFor(gameID), Message{Action: actionState, Payload: payloadJSON})
}
