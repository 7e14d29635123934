package evaluator

import (
	"testing"

	"github.com/matryer/is"
	"lukechampine.com/frand"

	"github.com/domino14/reversi/board"
)

func playRandom(plies int) (*board.Board, board.Side) {
	b := board.NewBoard()
	s := board.Black
	for i := 0; i < plies; i++ {
		moves := b.MoveList(s)
		if len(moves) == 0 {
			s = s.Opponent()
			if !b.HasMoves(s) {
				break
			}
			continue
		}
		b.ApplySquare(moves[frand.Intn(len(moves))], s)
		s = s.Opponent()
	}
	return b, s
}

func TestEvaluateDeterministicAndBounded(t *testing.T) {
	is := is.New(t)
	pe := NewPhasedEvaluator()
	for i := 0; i < 300; i++ {
		b, s := playRandom(frand.Intn(60))
		v := pe.Evaluate(b, s)
		is.Equal(v, pe.Evaluate(b.Copy(), s))
		is.True(v >= -MaxScore && v <= MaxScore)
	}
}

func TestOpeningIsSymmetric(t *testing.T) {
	is := is.New(t)
	pe := NewPhasedEvaluator()
	b := board.NewBoard()
	is.Equal(pe.Evaluate(b, board.Black), pe.Evaluate(b, board.White))
}

func TestCornerOwnershipIsRewarded(t *testing.T) {
	is := is.New(t)
	pe := NewPhasedEvaluator()
	b := board.NewBoard()
	base := pe.Evaluate(b, board.Black)
	b.Set(board.Position{Row: 0, Col: 0}, board.Black)
	is.True(pe.Evaluate(b, board.Black) > base)
	is.True(pe.Evaluate(b, board.White) < pe.Evaluate(b, board.Black))
}

func TestPhaseOf(t *testing.T) {
	is := is.New(t)
	is.Equal(PhaseOf(60), Opening)
	is.Equal(PhaseOf(44), Midgame)
	is.Equal(PhaseOf(20), LateMidgame)
	is.Equal(PhaseOf(16), Endgame)
}

func TestStableDiscs(t *testing.T) {
	is := is.New(t)
	// a1..d1 owned along the top edge, plus a lone disc at f1
	own := uint64(0b101111)
	is.Equal(StableDiscs(own), uint64(0b1111))
	is.Equal(StableDiscs(uint64(0b1110)), uint64(0))
}

func TestIsDangerous(t *testing.T) {
	is := is.New(t)
	b := board.NewBoard()
	is.True(IsDangerous(b, 9))
	is.True(IsDangerous(b, 1))
	is.True(!IsDangerous(b, 27))
	b.Set(board.Position{Row: 0, Col: 0}, board.White)
	is.True(!IsDangerous(b, 9))
	is.True(IsXSquare(54))
	is.True(!IsXSquare(55))
}

func TestClamp(t *testing.T) {
	is := is.New(t)
	is.Equal(Clamp(5000), MaxScore)
	is.Equal(Clamp(-5000), -MaxScore)
	is.Equal(Clamp(12), 12)
}
