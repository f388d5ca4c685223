package apperror

import "errors"

var (
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameNotFinished  = errors.New("game is not finished yet")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrGameCancelled    = errors.New("game was cancelled")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrInvalidMove      = errors.New("invalid move")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionFull      = errors.New("session is full")
	ErrNotAParticipant  = errors.New("not a participant of this session")
)
