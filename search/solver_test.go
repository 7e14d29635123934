package search

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"lukechampine.com/frand"

	"github.com/domino14/reversi/board"
	"github.com/domino14/reversi/evaluator"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	os.Exit(m.Run())
}

func newTestSolver() *Solver {
	s := &Solver{}
	s.Init(nil, nil)
	s.SetTranspositionTableSize(4)
	return s
}

func seededRNG(seed byte) *frand.RNG {
	key := make([]byte, 32)
	key[0] = seed
	return frand.NewCustom(key, 256, 12)
}

// positionWithEmpties plays random moves until exactly empties squares are
// left and the side to move has a move. ok is false if the game ended first.
func positionWithEmpties(rng *frand.RNG, empties int) (*board.Board, board.Side, bool) {
	b := board.NewBoard()
	side := board.Black
	for b.EmptiesCount() > empties {
		moves := b.MoveList(side)
		if len(moves) == 0 {
			if !b.HasMoves(side.Opponent()) {
				return nil, side, false
			}
			side = side.Opponent()
			continue
		}
		b.ApplySquare(moves[rng.Intn(len(moves))], side)
		side = side.Opponent()
	}
	if !b.HasMoves(side) {
		return nil, side, false
	}
	return b, side, true
}

func bruteForce(b *board.Board, side board.Side) int {
	moves := b.MoveList(side)
	if len(moves) == 0 {
		if !b.HasMoves(side.Opponent()) {
			return b.DiscDiff(side)
		}
		return -bruteForce(b, side.Opponent())
	}
	best := -1000
	for _, m := range moves {
		tok, _ := b.ApplySquare(m, side)
		v := -bruteForce(b, side.Opponent())
		b.UndoMove(tok)
		best = max(best, v)
	}
	return best
}

func TestOpeningSearch(t *testing.T) {
	is := is.New(t)
	s := newTestSolver()
	res, err := s.Search(context.Background(), board.NewBoard(), board.Black, Options{MaxDepth: 5})
	is.NoErr(err)
	is.Equal(res.Depth, 5)
	is.True(board.NewBoard().ValidMoveMask(board.Black)&res.BestMove.Mask() != 0)
	is.True(res.Nodes > 0)
	is.Equal(res.PV.GetPVMove(), res.BestMove)
}

func TestNoMovesForEitherSide(t *testing.T) {
	is := is.New(t)
	s := newTestSolver()
	// black owns a1-e1, white two isolated discs; nobody can move.
	b := &board.Board{Black: 0x1f, White: 1<<40 | 1<<63}
	is.True(b.GameOver())
	is.True(b.EmptiesCount() > DefaultEndgameThreshold)

	res, err := s.Search(context.Background(), b, board.Black, Options{MaxDepth: 4})
	is.NoErr(err)
	is.True(!res.HasMove())
	is.Equal(res.Score, int16(3))

	res, err = s.Search(context.Background(), b, board.White, Options{MaxDepth: 4})
	is.NoErr(err)
	is.True(!res.HasMove())
	is.Equal(res.Score, int16(-3))
}

func TestPassWhenOnlyOpponentCanMove(t *testing.T) {
	is := is.New(t)
	s := newTestSolver()
	// black a1, white b1: black can take c1, white has nothing.
	b := &board.Board{Black: 1, White: 2}
	is.True(b.HasMoves(board.Black))
	side := board.White
	is.True(!b.HasMoves(side))
	res, err := s.Search(context.Background(), b, side, Options{MaxDepth: 3})
	is.NoErr(err)
	is.True(!res.HasMove())
}

func TestMalformedBoard(t *testing.T) {
	is := is.New(t)
	s := newTestSolver()
	_, err := s.Search(context.Background(), &board.Board{Black: 3, White: 1}, board.Black, Options{})
	is.True(errors.Is(err, ErrMalformedBoard))
	is.True(errors.Is(err, board.ErrOverlappingDiscs))
}

func TestRootMovesRestriction(t *testing.T) {
	is := is.New(t)
	s := newTestSolver()
	only := board.Position{Row: 5, Col: 4}.Index()
	res, err := s.Search(context.Background(), board.NewBoard(), board.Black,
		Options{MaxDepth: 4, RootMoves: []board.Square{only}})
	is.NoErr(err)
	is.Equal(res.BestMove, only)
}

func TestDeadlineRespected(t *testing.T) {
	is := is.New(t)
	s := newTestSolver()
	rng := seededRNG(7)
	var b *board.Board
	var side board.Side
	for ok := false; !ok; {
		b, side, ok = positionWithEmpties(rng, 40)
	}

	limit := 60 * time.Millisecond
	start := time.Now()
	res, err := s.Search(context.Background(), b, side, Options{TimeLimit: limit})
	elapsed := time.Since(start)
	is.NoErr(err)
	is.True(res.HasMove())
	is.True(b.ValidMoveMask(side)&res.BestMove.Mask() != 0)
	is.True(elapsed < limit+200*time.Millisecond)
}

func TestExpiredContextFallsBack(t *testing.T) {
	is := is.New(t)
	s := newTestSolver()
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	b := board.NewBoard()
	res, err := s.Search(ctx, b, board.Black, Options{MaxDepth: 8})
	is.NoErr(err)
	is.Equal(res.Depth, 0)
	is.Equal(res.BestMove, board.FirstSquare(b.ValidMoveMask(board.Black)))
	is.Equal(int(res.Score), evaluator.NewPhasedEvaluator().Evaluate(b, board.Black))
}

// With every depth-changing optimization off, the table must not change
// the root score.
func TestTranspositionTableAgreement(t *testing.T) {
	is := is.New(t)
	rng := seededRNG(42)
	tested := 0
	for tested < 12 {
		b, side, ok := positionWithEmpties(rng, 24+rng.Intn(20))
		if !ok {
			continue
		}
		tested++
		var scores [2]int16
		for i, ttOn := range []bool{true, false} {
			s := newTestSolver()
			s.SetIterativeDeepening(false)
			s.SetAspirationOptim(false)
			s.SetLateMoveReductionOptim(false)
			s.SetTranspositionTableOptim(ttOn)
			res, err := s.Search(context.Background(), b, side, Options{MaxDepth: 5})
			is.NoErr(err)
			scores[i] = res.Score
		}
		is.Equal(scores[0], scores[1])
	}
}

// A search that only looked at some root moves must not leave its score in
// the table, where a later search would take it as the position's value.
func TestRestrictedRootIsNotCached(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	exactSolver := func() *Solver {
		s := newTestSolver()
		s.SetIterativeDeepening(false)
		s.SetAspirationOptim(false)
		s.SetLateMoveReductionOptim(false)
		return s
	}
	rng := seededRNG(21)
	tested := 0
	for tested < 6 {
		q, side, ok := positionWithEmpties(rng, 30+rng.Intn(10))
		if !ok {
			continue
		}
		entry := q.MoveList(side)[0]
		p := q.Copy()
		p.ApplySquare(entry, side)
		opp := side.Opponent()
		pMoves := p.MoveList(opp)
		if len(pMoves) < 2 {
			continue
		}
		tested++
		onlyEntry := Options{MaxDepth: 4, RootMoves: []board.Square{entry}}

		want, err := exactSolver().Search(ctx, q, side, onlyEntry)
		is.NoErr(err)

		s := exactSolver()
		_, err = s.Search(ctx, p, opp, Options{MaxDepth: 3, RootMoves: pMoves[len(pMoves)-1:]})
		is.NoErr(err)
		pKey := s.zobrist.Hash(p, opp)
		is.True(!s.ttable.lookup(pKey).valid())

		got, err := s.Search(ctx, q, side, onlyEntry)
		is.NoErr(err)
		is.Equal(got.Score, want.Score)

		// a full root is cached as usual
		_, err = s.Search(ctx, p, opp, Options{MaxDepth: 3})
		is.NoErr(err)
		is.True(s.ttable.lookup(pKey).valid())
	}
}

func discDiffEvaluator() evaluator.Evaluator {
	return evaluator.Func(func(b *board.Board, side board.Side) int { return b.DiscDiff(side) })
}

func TestQuiescenceSeesCornerAtHorizon(t *testing.T) {
	is := is.New(t)
	// black's only move is d5. white then answers a1, takes the whole top
	// row and ends the game 8-3.
	b, err := board.ParseBoard(`
		-XXXXXXO
		--------
		--------
		--------
		----OX--
		--------
		--------
		--------`)
	is.NoErr(err)
	d5, _ := board.ParseSquare("d5")
	is.Equal(b.MoveList(board.Black), []board.Square{d5})

	var scores [2]int16
	for i, qOn := range []bool{false, true} {
		s := &Solver{}
		is.NoErr(s.Init(nil, discDiffEvaluator()))
		s.SetTranspositionTableSize(1)
		s.SetQuiescenceOptim(qOn)
		res, err := s.Search(context.Background(), b, board.Black, Options{MaxDepth: 1})
		is.NoErr(err)
		is.Equal(res.BestMove, d5)
		is.Equal(res.Depth, 1)
		scores[i] = res.Score
	}
	// 9 discs to 1 once d5 is played
	is.Equal(scores[0], int16(8))
	is.Equal(scores[1], -WinScore-5)
}

// Deliberately bad guesses must fail, widen, and land on the value a full
// window search finds.
func TestAspirationReSearchMatchesFullWindow(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	rng := seededRNG(5)
	tested := 0
	for tested < 4 {
		b, side, ok := positionWithEmpties(rng, 36)
		if !ok {
			continue
		}
		tested++

		s := newTestSolver()
		s.SetLateMoveReductionOptim(false)
		s.SetTranspositionTableOptim(false)
		s.SetAspirationWindow(1)
		s.ensureTable()
		s.setRoot(b, side, Options{})
		s.ClearKillers()
		rootKey := s.zobrist.Hash(&s.b, side)

		want, _, err := s.aspirationSearch(ctx, rootKey, 4, 0, false)
		is.NoErr(err)
		for _, guess := range []int16{want - 100, want + 100} {
			got, pv, err := s.aspirationSearch(ctx, rootKey, 4, guess, true)
			is.NoErr(err)
			is.Equal(got, want)
			is.True(b.ValidMoveMask(side)&pv.GetPVMove().Mask() != 0)
		}
		is.Equal(s.b, *b)

		var scores [2]int16
		for i, aspOn := range []bool{true, false} {
			s := newTestSolver()
			s.SetLateMoveReductionOptim(false)
			s.SetAspirationOptim(aspOn)
			s.SetAspirationWindow(1)
			res, err := s.Search(ctx, b, side, Options{MaxDepth: 5})
			is.NoErr(err)
			scores[i] = res.Score
		}
		is.Equal(scores[0], scores[1])
	}
}

func TestEndgameMatchesBruteForce(t *testing.T) {
	is := is.New(t)
	rng := seededRNG(3)
	tested := 0
	for tested < 6 {
		b, side, ok := positionWithEmpties(rng, 8+tested%3)
		if !ok {
			continue
		}
		tested++
		want := bruteForce(b.Copy(), side)

		s := newTestSolver()
		res, err := s.Solve(context.Background(), b, side, nil)
		is.NoErr(err)
		is.True(res.Exact)
		is.Equal(int(res.Score), want)

		// the chosen move itself must reach the optimal value
		c := b.Copy()
		_, legal := c.ApplySquare(res.BestMove, side)
		is.True(legal)
		is.Equal(-bruteForce(c, side.Opponent()), want)

		s.SetTranspositionTableOptim(false)
		res2, err := s.Solve(context.Background(), b, side, nil)
		is.NoErr(err)
		is.Equal(res2.Score, res.Score)
	}
}

func TestSearchDelegatesToEndgame(t *testing.T) {
	is := is.New(t)
	rng := seededRNG(9)
	for {
		b, side, ok := positionWithEmpties(rng, 10)
		if !ok {
			continue
		}
		s := newTestSolver()
		res, err := s.Search(context.Background(), b, side, Options{MaxDepth: 2})
		is.NoErr(err)
		is.True(res.Exact)
		is.Equal(int(res.Score), bruteForce(b.Copy(), side))
		return
	}
}

func TestSolveDeadlineFallback(t *testing.T) {
	is := is.New(t)
	rng := seededRNG(11)
	var b *board.Board
	var side board.Side
	for ok := false; !ok; {
		b, side, ok = positionWithEmpties(rng, 14)
	}
	s := newTestSolver()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := s.Solve(ctx, b, side, nil)
	is.True(errors.Is(err, context.Canceled))
	is.True(!res.Exact)
	is.Equal(res.BestMove, board.FirstSquare(b.ValidMoveMask(side)))
	is.Equal(int(res.Score), b.DiscDiff(side))
}

func TestHistoryAging(t *testing.T) {
	is := is.New(t)
	s := newTestSolver()
	s.updateHistory(board.Black, 19, 8)
	is.Equal(s.history[board.Black][19], int32(64))
	s.ageHistory()
	is.Equal(s.history[board.Black][19], int32(64>>DefaultHistoryDecay))
	s.ClearHistory()
	is.Equal(s.history[board.Black][19], int32(0))
}

func TestKillers(t *testing.T) {
	is := is.New(t)
	s := newTestSolver()
	s.storeKiller(3, 10)
	s.storeKiller(3, 10)
	is.Equal(s.killers[3][0], board.Square(10))
	is.Equal(s.killers[3][1], board.NoSquare)
	s.storeKiller(3, 20)
	is.Equal(s.killers[3][0], board.Square(20))
	is.Equal(s.killers[3][1], board.Square(10))
}

func TestOrderingPrefersCornersOverXSquares(t *testing.T) {
	is := is.New(t)
	s := newTestSolver()
	s.b = *board.NewBoard()
	mask := board.Square(0).Mask() | board.Square(9).Mask() | board.Square(27).Mask()
	ordered := s.orderMoves(mask, 1, board.Black, board.NoSquare)
	is.Equal(ordered[0].sq, board.Square(0))
	is.Equal(ordered[2].sq, board.Square(9))

	ordered = s.orderMoves(mask, 1, board.Black, 27)
	is.Equal(ordered[0].sq, board.Square(27))
}

func BenchmarkSearchDepth6(b *testing.B) {
	s := newTestSolver()
	for i := 0; i < b.N; i++ {
		s.Search(context.Background(), board.NewBoard(), board.Black, Options{MaxDepth: 6})
	}
}
