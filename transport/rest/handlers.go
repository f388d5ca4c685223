package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rocketscienceinc/mancala-backend/internal/apperror"
	"github.com/rocketscienceinc/mancala-backend/internal/entity"
	"github.com/rocketscienceinc/mancala-backend/internal/mancala"
	"github.com/rocketscienceinc/mancala-backend/internal/pkg"
	"github.com/rocketscienceinc/mancala-backend/internal/repository"
)

const sessionCookieName = "user_session"

type localGames interface {
	Save(ctx context.Context, sessionID string, game *entity.Game) error
	GetBySessionID(ctx context.Context, sessionID string) (*entity.Game, error)
}

// Handlers serves the local hot-seat game: one board per browser session,
// both players share the keyboard, the current player alternates by the same
// rules engine as online play.
type Handlers struct {
	logger     *slog.Logger
	localGames localGames
}

func NewHandlers(logger *slog.Logger, localGames localGames) *Handlers {
	return &Handlers{
		logger:     logger,
		localGames: localGames,
	}
}

type moveRequest struct {
	PitIndex int `json:"pitIndex"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// NewLocalGame discards any existing board for this session and starts fresh.
func (that *Handlers) NewLocalGame(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "NewLocalGame")

	sessionID := that.ensureSessionCookie(w, r)

	game := entity.NewGame(pkg.GenerateGameID())
	game.Status = entity.StatusInProgress

	if err := that.localGames.Save(r.Context(), sessionID, game); err != nil {
		log.Error("failed to save local game", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "failed to start a new game"})
		return
	}

	writeJSON(w, http.StatusOK, game)
}

// LocalGameState returns the session's board, creating one on first visit.
func (that *Handlers) LocalGameState(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "LocalGameState")

	sessionID := that.ensureSessionCookie(w, r)

	game, err := that.getOrCreateGame(r.Context(), sessionID)
	if err != nil {
		log.Error("failed to get local game", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "failed to load the game"})
		return
	}

	writeJSON(w, http.StatusOK, game)
}

// LocalGameMove submits a pit choice for whoever's turn it is. Rule
// violations come back as 400 with a user-visible message and leave the
// board untouched.
func (that *Handlers) LocalGameMove(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "LocalGameMove")

	sessionID := that.ensureSessionCookie(w, r)

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "malformed move request"})
		return
	}

	game, err := that.getOrCreateGame(r.Context(), sessionID)
	if err != nil {
		log.Error("failed to get local game", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "failed to load the game"})
		return
	}

	if _, err = mancala.ApplyMove(game, game.CurrentPlayer, req.PitIndex); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: moveErrorMessage(err)})
		return
	}

	if err = that.localGames.Save(r.Context(), sessionID, game); err != nil {
		log.Error("failed to save local game", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "failed to save the game"})
		return
	}

	writeJSON(w, http.StatusOK, game)
}

func (that *Handlers) getOrCreateGame(ctx context.Context, sessionID string) (*entity.Game, error) {
	game, err := that.localGames.GetBySessionID(ctx, sessionID)
	if err == nil {
		return game, nil
	}

	if !errors.Is(err, repository.ErrGameNotFound) {
		return nil, err
	}

	game = entity.NewGame(pkg.GenerateGameID())
	game.Status = entity.StatusInProgress

	if err = that.localGames.Save(ctx, sessionID, game); err != nil {
		return nil, err
	}

	return game, nil
}

// ensureSessionCookie - returns the user session, creating the cookie if absent.
func (that *Handlers) ensureSessionCookie(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	sessionID := pkg.GenerateNewSessionID()
	http.SetCookie(w, &http.Cookie{
		Name:    sessionCookieName,
		Value:   sessionID,
		Expires: time.Now().Add(24 * time.Hour),
		Path:    "/",
	})

	return sessionID
}

func moveErrorMessage(err error) string {
	for _, known := range []error{
		apperror.ErrInvalidMove,
		apperror.ErrNotYourTurn,
		apperror.ErrGameFinished,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}

	return "move rejected"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
