package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/mancala-backend/internal/apperror"
	"github.com/rocketscienceinc/mancala-backend/internal/entity"
	"github.com/rocketscienceinc/mancala-backend/internal/mancala"
	"github.com/rocketscienceinc/mancala-backend/internal/registry"
)

type sessionRegistry interface {
	Create(hostID string) *registry.Session
	Get(gameID string) (*registry.Session, error)
	Join(gameID, joinerID string) (*registry.Session, int, error)
	ByParticipant(participantID string) (*registry.Session, error)
	ScheduleEviction(gameID string)
	CancelEviction(gameID string)
}

type gameRepo interface {
	CreateOrUpdate(ctx context.Context, game *entity.Game) error
}

type statePublisher interface {
	PublishState(gameID string, game *entity.Game)
}

// GameManager is the session coordinator: it validates client intents against
// the registry and the rules engine, mutates game state inside the session's
// critical section and triggers broadcasts. All protocol errors are returned
// to the caller so the transport can report them to the offending connection
// only; the session state is left untouched on every error path.
type GameManager struct {
	logger    *slog.Logger
	registry  sessionRegistry
	gameRepo  gameRepo
	publisher statePublisher
}

func NewGameManager(logger *slog.Logger, sessions sessionRegistry, gameRepo gameRepo, publisher statePublisher) *GameManager {
	return &GameManager{
		logger: logger.With("component", "game_manager"),

		registry:  sessions,
		gameRepo:  gameRepo,
		publisher: publisher,
	}
}

// HostGame opens a session for the caller and returns its initial snapshot
// with the assigned host role.
func (that *GameManager) HostGame(ctx context.Context, participantID string) (*entity.Game, int, error) {
	session := that.registry.Create(participantID)

	session.Lock()
	snapshot := *session.Game
	session.Unlock()

	that.persistSnapshot(ctx, &snapshot)

	that.logger.Info("game hosted", "gameID", snapshot.ID)

	return &snapshot, entity.Player0, nil
}

// JoinGame claims the joiner slot, returns the snapshot with the assigned role
// and broadcasts the now in-progress state so the host learns the joiner
// arrived.
func (that *GameManager) JoinGame(ctx context.Context, gameID, participantID string) (*entity.Game, int, error) {
	session, role, err := that.registry.Join(gameID, participantID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to join session: %w", err)
	}

	session.Lock()
	snapshot := *session.Game
	session.Unlock()

	that.persistSnapshot(ctx, &snapshot)
	that.publisher.PublishState(gameID, &snapshot)

	that.logger.Info("participant joined game", "gameID", gameID, "role", role)

	return &snapshot, role, nil
}

// MakeMove applies a pit selection for the calling participant and broadcasts
// the updated game. The whole read-validate-apply-persist sequence runs under
// the session lock, so two moves for one session can never interleave.
func (that *GameManager) MakeMove(ctx context.Context, gameID, participantID string, pitIndex int) (*entity.Game, error) {
	session, err := that.registry.Get(gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.Lock()
	defer session.Unlock()

	role, ok := session.RoleOf(participantID)
	if !ok {
		return nil, apperror.ErrNotAParticipant
	}

	game := session.Game

	if err = game.ConfirmInProgress(); err != nil {
		return nil, fmt.Errorf("cannot move: %w", err)
	}

	outcome, err := mancala.ApplyMove(game, role, pitIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to make move: %w", err)
	}

	if outcome == mancala.OutcomeGameOver {
		that.registry.ScheduleEviction(gameID)
		that.logger.Info("game finished", "gameID", gameID, "winner", game.Winner)
	}

	snapshot := *game
	that.persistSnapshot(ctx, &snapshot)
	that.publisher.PublishState(gameID, &snapshot)

	return &snapshot, nil
}

// RequestRematch flags the caller's rematch intent on a finished game and
// broadcasts the flags; once both participants agreed, the game is reset in
// place to a fresh in-progress board.
func (that *GameManager) RequestRematch(ctx context.Context, gameID, participantID string) (*entity.Game, error) {
	session, err := that.registry.Get(gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.Lock()
	defer session.Unlock()

	role, ok := session.RoleOf(participantID)
	if !ok {
		return nil, apperror.ErrNotAParticipant
	}

	game := session.Game

	if !game.IsFinished() {
		return nil, fmt.Errorf("cannot rematch: %w", apperror.ErrGameNotFinished)
	}

	game.SetWantsRematch(role)

	if game.BothWantRematch() {
		game.Reset()
		that.registry.CancelEviction(gameID)
		that.logger.Info("rematch started", "gameID", gameID)
	}

	snapshot := *game
	that.persistSnapshot(ctx, &snapshot)
	that.publisher.PublishState(gameID, &snapshot)

	return &snapshot, nil
}

// Disconnect handles a dropped connection. A participant leaving a waiting or
// running session cancels it; the cancellation is broadcast immediately and
// eviction happens after the grace period. Leaving a finished session only
// schedules eviction, the remaining participant may still read the result.
func (that *GameManager) Disconnect(ctx context.Context, participantID string) {
	log := that.logger.With("method", "Disconnect")

	session, err := that.registry.ByParticipant(participantID)
	if err != nil {
		return
	}

	session.Lock()

	game := session.Game
	gameID := game.ID

	if game.IsCancelled() {
		session.Unlock()
		return
	}

	if game.IsFinished() {
		session.Unlock()
		that.registry.ScheduleEviction(gameID)
		return
	}

	game.Status = entity.StatusCancelled
	game.Winner = entity.WinnerNone
	snapshot := *game
	session.Unlock()

	log.Info("session cancelled by disconnect", "gameID", gameID)

	that.persistSnapshot(ctx, &snapshot)
	that.publisher.PublishState(gameID, &snapshot)
	that.registry.ScheduleEviction(gameID)
}

// persistSnapshot writes the game copy through to storage. The registry is
// authoritative, so a storage failure must not fail the move.
func (that *GameManager) persistSnapshot(ctx context.Context, game *entity.Game) {
	if err := that.gameRepo.CreateOrUpdate(ctx, game); err != nil {
		that.logger.Error("failed to persist game snapshot", "gameID", game.ID, "error", err)
	}
}
