package evaluator

import (
	"github.com/domino14/reversi/board"
)

// MaxScore bounds every heuristic evaluation.
const MaxScore = 1000

// Evaluator scores a position from the point of view of side. It must be a
// pure function of its inputs; search results are cached by position.
type Evaluator interface {
	Evaluate(b *board.Board, side board.Side) int
	Type() string
}

// Func adapts a plain function to the Evaluator interface.
type Func func(b *board.Board, side board.Side) int

func (f Func) Evaluate(b *board.Board, side board.Side) int { return f(b, side) }

func (f Func) Type() string { return "Func" }

// Clamp keeps a score inside [-MaxScore, MaxScore].
func Clamp(v int) int {
	if v > MaxScore {
		return MaxScore
	}
	if v < -MaxScore {
		return -MaxScore
	}
	return v
}
