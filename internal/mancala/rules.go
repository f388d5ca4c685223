package mancala

import (
	"fmt"

	"github.com/rocketscienceinc/mancala-backend/internal/apperror"
	"github.com/rocketscienceinc/mancala-backend/internal/entity"
)

// Outcome describes what a finished move means for the turn order.
type Outcome int

const (
	// OutcomeTurnSwitch - the move passed the turn to the opponent.
	OutcomeTurnSwitch Outcome = iota
	// OutcomeExtraTurn - the last stone landed in the mover's store, same player moves again.
	OutcomeExtraTurn
	// OutcomeGameOver - the move emptied one side, the game reached a terminal state.
	OutcomeGameOver
)

// ApplyMove sows the stones from pitIndex for the given player and updates the
// game's board, current player, status and winner in place.
func ApplyMove(game *entity.Game, player, pitIndex int) (Outcome, error) {
	if game.IsFinished() {
		return OutcomeTurnSwitch, apperror.ErrGameFinished
	}

	if player != game.CurrentPlayer {
		return OutcomeTurnSwitch, apperror.ErrNotYourTurn
	}

	if err := validateMove(&game.Board, player, pitIndex); err != nil {
		return OutcomeTurnSwitch, err
	}

	board, last := sow(game.Board, player, pitIndex)
	capture(&board, player, last)
	game.Board = board

	if game.Board.SideEmpty(entity.Player0) || game.Board.SideEmpty(entity.Player1) {
		finishGame(game)
		return OutcomeGameOver, nil
	}

	if last == entity.StoreIndex(player) {
		return OutcomeExtraTurn, nil
	}

	game.CurrentPlayer = 1 - player

	return OutcomeTurnSwitch, nil
}

// validateMove - checks that the chosen pit belongs to the player and holds stones.
func validateMove(board *entity.Board, player, pitIndex int) error {
	if !entity.OwnsPit(player, pitIndex) {
		return fmt.Errorf("%w: pit %d does not belong to player %d", apperror.ErrInvalidMove, pitIndex, player)
	}

	if board[pitIndex] == 0 {
		return fmt.Errorf("%w: pit %d is empty", apperror.ErrInvalidMove, pitIndex)
	}

	return nil
}

// sow distributes the stones from pitIndex counter-clockwise, one per slot,
// skipping the opponent's store. Returns the new board and the slot that
// received the last stone.
func sow(board entity.Board, player, pitIndex int) (entity.Board, int) {
	stones := board[pitIndex]
	board[pitIndex] = 0

	opponentStore := entity.StoreIndex(1 - player)

	slot := pitIndex
	for stones > 0 {
		slot = (slot + 1) % entity.BoardSlots
		if slot == opponentStore {
			continue
		}

		board[slot]++
		stones--
	}

	return board, slot
}

// capture applies the capture rule: the last stone landed in an own pit that
// was empty, and the opposite pit holds stones. Both pits are emptied into the
// mover's store.
func capture(board *entity.Board, player, last int) {
	if !entity.OwnsPit(player, last) || board[last] != 1 {
		return
	}

	opposite := entity.OppositePit(last)
	if board[opposite] == 0 {
		return
	}

	board[entity.StoreIndex(player)] += board[opposite] + board[last]
	board[opposite] = 0
	board[last] = 0
}

// finishGame sweeps the remaining stones into their owners' stores and
// decides the winner by store count.
func finishGame(game *entity.Game) {
	for pit := entity.Player0PitStart; pit <= entity.Player0PitEnd; pit++ {
		game.Board[entity.Player0Store] += game.Board[pit]
		game.Board[pit] = 0
	}
	for pit := entity.Player1PitStart; pit <= entity.Player1PitEnd; pit++ {
		game.Board[entity.Player1Store] += game.Board[pit]
		game.Board[pit] = 0
	}

	game.Status = entity.StatusFinished
	game.GameOver = true

	switch {
	case game.Board[entity.Player0Store] > game.Board[entity.Player1Store]:
		game.Winner = entity.Player0
	case game.Board[entity.Player1Store] > game.Board[entity.Player0Store]:
		game.Winner = entity.Player1
	default:
		game.Winner = entity.WinnerNone
	}
}
