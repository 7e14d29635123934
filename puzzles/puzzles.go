package puzzles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
	"lukechampine.com/frand"

	"github.com/domino14/reversi/board"
	"github.com/domino14/reversi/search"
	"github.com/domino14/reversi/worker"
)

// Puzzle is one position with its known answer. Either field of the
// answer may be omitted.
type Puzzle struct {
	Name  string `yaml:"name"`
	Board string `yaml:"board"`
	Side  string `yaml:"side"`
	// ExpectedScore is the exact final disc difference for Side.
	ExpectedScore *int `yaml:"expected-score,omitempty"`
	// BestMoves lists every move that achieves the expected result.
	BestMoves []string `yaml:"best-moves,omitempty"`
}

type Suite struct {
	Name    string        `yaml:"name"`
	Options worker.Options `yaml:"options,omitempty"`
	Puzzles []Puzzle      `yaml:"puzzles"`
}

var ErrEmptySuite = errors.New("suite has no puzzles")

// Position parses the puzzle's board and side.
func (p *Puzzle) Position() (*board.Board, board.Side, error) {
	b, err := board.ParseBoard(p.Board)
	if err != nil {
		return nil, board.Black, fmt.Errorf("puzzle %s: %w", p.Name, err)
	}
	side, err := board.ParseSide(p.Side)
	if err != nil {
		return nil, board.Black, fmt.Errorf("puzzle %s: %w", p.Name, err)
	}
	return b, side, nil
}

func Load(r io.Reader) (*Suite, error) {
	suite := &Suite{}
	if err := yaml.NewDecoder(r).Decode(suite); err != nil {
		return nil, err
	}
	if len(suite.Puzzles) == 0 {
		return nil, ErrEmptySuite
	}
	for i := range suite.Puzzles {
		if _, _, err := suite.Puzzles[i].Position(); err != nil {
			return nil, err
		}
	}
	return suite, nil
}

func LoadFile(path string) (*Suite, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func Write(w io.Writer, suite *Suite) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(suite); err != nil {
		return err
	}
	return enc.Close()
}

// Outcome is the engine's answer to one puzzle.
type Outcome struct {
	Name   string
	Move   string
	Score  int
	Exact  bool
	Nodes  uint64
	Passed bool
	Reason string
}

// Run asks engine for every puzzle in turn. An error from the engine stops
// the run; a wrong answer is only recorded.
func Run(ctx context.Context, engine worker.Engine, suite *Suite) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(suite.Puzzles))
	for i := range suite.Puzzles {
		p := &suite.Puzzles[i]
		b, side, err := p.Position()
		if err != nil {
			return outcomes, err
		}
		resp, err := engine.Analyze(ctx, worker.Request{Board: *b, Side: side, Options: suite.Options})
		if err != nil {
			return outcomes, fmt.Errorf("puzzle %s: %w", p.Name, err)
		}
		o := grade(p, resp)
		log.Debug().Str("puzzle", p.Name).Str("move", o.Move).Int("score", o.Score).
			Bool("passed", o.Passed).Msg("puzzle-graded")
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

func grade(p *Puzzle, resp *worker.Response) Outcome {
	o := Outcome{
		Name:   p.Name,
		Move:   "pass",
		Score:  resp.Evaluation,
		Exact:  resp.Exact,
		Nodes:  resp.NodesSearched,
		Passed: true,
	}
	if resp.BestMove != nil {
		o.Move = resp.BestMove.String()
	}
	var reasons []string
	if len(p.BestMoves) > 0 && !slices.Contains(p.BestMoves, o.Move) {
		reasons = append(reasons, fmt.Sprintf("played %s, wanted one of %s", o.Move,
			strings.Join(p.BestMoves, ",")))
	}
	if p.ExpectedScore != nil {
		switch {
		case !resp.Exact:
			reasons = append(reasons, "score was not exact")
		case resp.Evaluation != *p.ExpectedScore:
			reasons = append(reasons, fmt.Sprintf("score %d, wanted %d", resp.Evaluation, *p.ExpectedScore))
		}
	}
	if len(reasons) > 0 {
		o.Passed = false
		o.Reason = strings.Join(reasons, "; ")
	}
	return o
}

// Summary counts passed puzzles.
func Summary(outcomes []Outcome) (passed, total int) {
	for _, o := range outcomes {
		if o.Passed {
			passed++
		}
	}
	return passed, len(outcomes)
}

// Generate plays random games down to the given number of empty squares
// and solves each position exactly to produce a puzzle. Only positions
// where the side to move has a choice are kept.
func Generate(ctx context.Context, rng *frand.RNG, solver *search.Solver, n, empties int) (*Suite, error) {
	suite := &Suite{Name: fmt.Sprintf("random-%d-empties", empties)}
	for attempts := 0; len(suite.Puzzles) < n; attempts++ {
		if attempts > 100*n {
			return nil, fmt.Errorf("could only generate %d of %d puzzles", len(suite.Puzzles), n)
		}
		b, side, ok := randomPosition(rng, empties)
		if !ok || len(b.MoveList(side)) < 2 {
			continue
		}
		p, err := solvePuzzle(ctx, solver, b, side)
		if err != nil {
			return nil, err
		}
		p.Name = fmt.Sprintf("%s-%d", suite.Name, len(suite.Puzzles)+1)
		suite.Puzzles = append(suite.Puzzles, *p)
	}
	return suite, nil
}

// solvePuzzle finds the exact score and every root move that reaches it.
func solvePuzzle(ctx context.Context, solver *search.Solver, b *board.Board, side board.Side) (*Puzzle, error) {
	res, err := solver.Solve(ctx, b, side, nil)
	if err != nil {
		return nil, err
	}
	if !res.Exact {
		return nil, errors.New("could not solve position in time")
	}
	score := int(res.Score)
	var best []string
	for _, m := range b.MoveList(side) {
		r, err := solver.Solve(ctx, b, side, []board.Square{m})
		if err != nil {
			return nil, err
		}
		if r.Exact && int(r.Score) == score {
			best = append(best, m.String())
		}
	}
	return &Puzzle{
		Board:         b.Layout(),
		Side:          side.String(),
		ExpectedScore: &score,
		BestMoves:     best,
	}, nil
}

func randomPosition(rng *frand.RNG, empties int) (*board.Board, board.Side, bool) {
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
	return b, side, b.HasMoves(side)
}
