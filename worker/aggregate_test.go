package worker

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/domino14/reversi/board"
	"github.com/domino14/reversi/search"
)

func TestPartitionRoundRobin(t *testing.T) {
	is := is.New(t)
	moves := []board.Square{17, 18, 19, 20, 21, 37}
	parts := partitionRoundRobin(moves, 3)
	is.Equal(parts, [][]board.Square{{17, 20}, {18, 21}, {19, 37}})

	parts = partitionRoundRobin(moves, 4)
	is.Equal(parts, [][]board.Square{{17, 21}, {18, 37}, {19}, {20}})
	is.Equal(len(partitionRoundRobin(moves, 0)), 0)
}

func TestChoosePartialPrefersSafeMoveWithinMargin(t *testing.T) {
	is := is.New(t)
	b := board.NewBoard()
	b2, _ := board.ParseSquare("b2")
	d3, _ := board.ParseSquare("d3")
	f5, _ := board.ParseSquare("f5")

	partials := []*search.Result{
		{BestMove: d3, Score: 15},
		{BestMove: b2, Score: 30},
		{BestMove: f5, Score: 5},
	}
	// b2 gives away a1
	is.Equal(choosePartial(b, partials, 20).BestMove, d3)
	is.Equal(choosePartial(b, partials, 10).BestMove, b2)

	exact := []*search.Result{
		{BestMove: d3, Score: 15, Exact: true},
		{BestMove: b2, Score: 30, Exact: true},
	}
	is.Equal(choosePartial(b, exact, 20).BestMove, b2)

	// once a1 is taken b2 is no longer dangerous
	b.Set(board.Position{Row: 0, Col: 0}, board.Black)
	is.Equal(choosePartial(b, partials, 20).BestMove, b2)
}

func TestChoosePartialTieBreaksOnLowerSquare(t *testing.T) {
	is := is.New(t)
	b := board.NewBoard()
	partials := []*search.Result{
		{BestMove: 37, Score: 8},
		{BestMove: 19, Score: 8},
		{BestMove: 20, Score: 3},
	}
	is.Equal(choosePartial(b, partials, 0).BestMove, board.Square(19))
	is.True(choosePartial(b, nil, 0) == nil)

	pass := []*search.Result{{BestMove: board.NoSquare, Score: -4}}
	is.Equal(choosePartial(b, pass, 0).BestMove, board.NoSquare)
}

func TestBudget(t *testing.T) {
	is := is.New(t)
	wc := &WorkerConfig{BudgetFraction: 0.5, MinWorkerBudget: 10 * time.Millisecond}
	is.Equal(wc.budget(time.Second, 1), 500*time.Millisecond)
	is.Equal(wc.budget(time.Second, 5), 100*time.Millisecond)
	// floored, but never beyond the job limit
	is.Equal(wc.budget(time.Second, 1000), 10*time.Millisecond)
	is.Equal(wc.budget(5*time.Millisecond, 4), 5*time.Millisecond)

	wc.BudgetFraction = 0
	is.Equal(wc.budget(time.Second, 3), 300*time.Millisecond)
}
