package puzzles

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"lukechampine.com/frand"

	"github.com/domino14/reversi/board"
	"github.com/domino14/reversi/search"
	"github.com/domino14/reversi/worker"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	os.Exit(m.Run())
}

const cornerSuite = `
name: corners
options:
  time-limit-ms: 3000
  depth-limit: 4
puzzles:
  - name: take-the-corner
    side: black
    board: |
      -OOOOOOX
      --------
      --------
      --------
      --------
      --------
      --------
      --------
    best-moves: [a1]
  - name: bad-layout
    side: white
    board: XO-
`

func TestLoadRejectsBadBoard(t *testing.T) {
	is := is.New(t)
	_, err := Load(strings.NewReader(cornerSuite))
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "bad-layout"))

	_, err = Load(strings.NewReader("name: empty\npuzzles: []\n"))
	is.Equal(err, ErrEmptySuite)
}

func TestLoadAndRun(t *testing.T) {
	is := is.New(t)
	good := cornerSuite[:strings.Index(cornerSuite, "  - name: bad-layout")]
	suite, err := Load(strings.NewReader(good))
	is.NoErr(err)
	is.Equal(suite.Name, "corners")
	is.Equal(suite.Options.TimeLimitMs, int64(3000))
	is.Equal(suite.Options.DepthLimit, 4)
	is.Equal(len(suite.Puzzles), 1)

	wc := worker.DefaultWorkerConfig()
	wc.Workers = 2
	wc.TTMegabytes = 1
	c := worker.NewCoordinator(wc)
	defer c.Close()

	outcomes, err := Run(context.Background(), c, suite)
	is.NoErr(err)
	is.Equal(len(outcomes), 1)
	is.Equal(outcomes[0].Move, "a1")
	is.True(outcomes[0].Passed)
}

func TestGenerateAndVerify(t *testing.T) {
	is := is.New(t)
	key := make([]byte, 32)
	key[0] = 7
	rng := frand.NewCustom(key, 256, 12)

	s := &search.Solver{}
	is.NoErr(s.Init(nil, nil))
	s.SetTranspositionTableSize(1)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	suite, err := Generate(ctx, rng, s, 3, 9)
	is.NoErr(err)
	is.Equal(len(suite.Puzzles), 3)
	for _, p := range suite.Puzzles {
		is.True(p.ExpectedScore != nil)
		is.True(len(p.BestMoves) > 0)
		b, _, err := p.Position()
		is.NoErr(err)
		is.Equal(b.EmptiesCount(), 9)
	}

	var buf bytes.Buffer
	is.NoErr(Write(&buf, suite))
	reloaded, err := Load(&buf)
	is.NoErr(err)
	assert.Equal(t, suite.Puzzles, reloaded.Puzzles)

	wc := worker.DefaultWorkerConfig()
	wc.Workers = 3
	wc.TTMegabytes = 1
	c := worker.NewCoordinator(wc)
	defer c.Close()

	reloaded.Options = worker.Options{TimeLimitMs: 10000, Distribute: true}
	outcomes, err := Run(ctx, c, reloaded)
	is.NoErr(err)
	passed, total := Summary(outcomes)
	for _, o := range outcomes {
		assert.True(t, o.Passed, "%s: %s", o.Name, o.Reason)
		assert.True(t, o.Exact, o.Name)
	}
	is.Equal(passed, total)
}

func TestGrade(t *testing.T) {
	score := 4
	p := &Puzzle{Name: "p", ExpectedScore: &score, BestMoves: []string{"d3", "c4"}}
	d3 := board.Position{Row: 2, Col: 3}
	f5 := board.Position{Row: 4, Col: 5}

	tests := []struct {
		name   string
		resp   worker.Response
		passed bool
	}{
		{"right", worker.Response{BestMove: &d3, Evaluation: 4, Exact: true}, true},
		{"wrong-move", worker.Response{BestMove: &f5, Evaluation: 4, Exact: true}, false},
		{"wrong-score", worker.Response{BestMove: &d3, Evaluation: 2, Exact: true}, false},
		{"inexact", worker.Response{BestMove: &d3, Evaluation: 4}, false},
		{"pass", worker.Response{Evaluation: 4, Exact: true}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := grade(p, &tc.resp)
			assert.Equal(t, tc.passed, o.Passed, o.Reason)
		})
	}
}
