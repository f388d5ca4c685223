package entity

import (
	"fmt"

	"github.com/rocketscienceinc/mancala-backend/internal/apperror"
)

const (
	StatusWaiting    = "WAITING_FOR_PLAYER"
	StatusInProgress = "IN_PROGRESS"
	StatusFinished   = "FINISHED"
	StatusCancelled  = "CANCELLED"
)

const (
	Player0 = 0
	Player1 = 1

	// WinnerNone marks both a draw and a game without a result yet.
	WinnerNone = -1
)

// Board layout: slots 0-5 are player 0's pits, slot 6 is player 0's store,
// slots 7-12 are player 1's pits, slot 13 is player 1's store.
const (
	Player0PitStart = 0
	Player0PitEnd   = 5
	Player0Store    = 6
	Player1PitStart = 7
	Player1PitEnd   = 12
	Player1Store    = 13

	BoardSlots     = 14
	StartingStones = 4
)

type Board [BoardSlots]int

// NewBoard returns the starting position: four stones in every pit, empty stores.
func NewBoard() Board {
	var board Board
	for pit := Player0PitStart; pit <= Player0PitEnd; pit++ {
		board[pit] = StartingStones
	}
	for pit := Player1PitStart; pit <= Player1PitEnd; pit++ {
		board[pit] = StartingStones
	}
	return board
}

// StoreIndex returns the store slot belonging to the given player.
func StoreIndex(player int) int {
	if player == Player0 {
		return Player0Store
	}
	return Player1Store
}

// OwnsPit reports whether pitIndex is a regular pit on the given player's side.
func OwnsPit(player, pitIndex int) bool {
	if player == Player0 {
		return pitIndex >= Player0PitStart && pitIndex <= Player0PitEnd
	}
	return pitIndex >= Player1PitStart && pitIndex <= Player1PitEnd
}

// OppositePit maps a regular pit to the pit directly across the board.
func OppositePit(pitIndex int) int {
	return Player1PitEnd - pitIndex
}

// SideEmpty reports whether all six regular pits of the given player are empty.
func (that *Board) SideEmpty(player int) bool {
	start, end := Player0PitStart, Player0PitEnd
	if player == Player1 {
		start, end = Player1PitStart, Player1PitEnd
	}

	for pit := start; pit <= end; pit++ {
		if that[pit] > 0 {
			return false
		}
	}

	return true
}

// Sum returns the total stone count on the board.
func (that *Board) Sum() int {
	total := 0
	for _, stones := range that {
		total += stones
	}
	return total
}

type Game struct {
	ID                  string `json:"gameId"`
	Board               Board  `json:"board"`
	CurrentPlayer       int    `json:"currentPlayer"`
	Status              string `json:"gameStatus"`
	GameOver            bool   `json:"gameOver"`
	Winner              int    `json:"winner"`
	Player0WantsRematch bool   `json:"player0WantsRematch"`
	Player1WantsRematch bool   `json:"player1WantsRematch"`
}

func NewGame(id string) *Game {
	return &Game{
		ID:            id,
		Board:         NewBoard(),
		CurrentPlayer: Player0,
		Status:        StatusWaiting,
		Winner:        WinnerNone,
	}
}

// Reset brings the game back to a fresh in-progress state, keeping its ID.
// Used when both participants agreed to a rematch.
func (that *Game) Reset() {
	that.Board = NewBoard()
	that.CurrentPlayer = Player0
	that.Status = StatusInProgress
	that.GameOver = false
	that.Winner = WinnerNone
	that.Player0WantsRematch = false
	that.Player1WantsRematch = false
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Game) IsInProgress() bool {
	return that.Status == StatusInProgress
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Game) IsCancelled() bool {
	return that.Status == StatusCancelled
}

// ConfirmInProgress returns the error matching the game status when the game
// cannot accept moves.
func (that *Game) ConfirmInProgress() error {
	switch {
	case that.IsWaiting():
		return apperror.ErrGameIsNotStarted
	case that.IsFinished():
		return apperror.ErrGameFinished
	case that.IsCancelled():
		return apperror.ErrGameCancelled
	case that.IsInProgress():
		return nil
	default:
		return fmt.Errorf("%w: unknown status %s", apperror.ErrInvalidMove, that.Status)
	}
}

// WantsRematch reports whether the given player already asked for a rematch.
func (that *Game) WantsRematch(player int) bool {
	if player == Player0 {
		return that.Player0WantsRematch
	}
	return that.Player1WantsRematch
}

// SetWantsRematch flags the given player's rematch intent.
func (that *Game) SetWantsRematch(player int) {
	if player == Player0 {
		that.Player0WantsRematch = true
		return
	}
	that.Player1WantsRematch = true
}

// BothWantRematch reports whether the rematch sub-protocol completed.
func (that *Game) BothWantRematch() bool {
	return that.Player0WantsRematch && that.Player1WantsRematch
}
