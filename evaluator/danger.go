package evaluator

import (
	"github.com/domino14/reversi/board"
)

// IsDangerous reports whether sq is an X- or C-square whose corner is still
// empty. Playing there tends to hand the corner to the opponent.
func IsDangerous(b *board.Board, sq board.Square) bool {
	c := board.AdjacentCorner(sq)
	if c == board.NoSquare {
		return false
	}
	return b.Empty()&c.Mask() != 0
}

// IsXSquare reports whether sq touches a corner diagonally.
func IsXSquare(sq board.Square) bool {
	return sq.Mask()&board.XSquareMask != 0
}
