package shell

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/domino14/reversi/board"
	"github.com/domino14/reversi/config"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	os.Exit(m.Run())
}

func testController(t *testing.T) *ShellController {
	cfg := config.DefaultConfig()
	cfg.Set(config.ConfigWorkers, 2)
	cfg.Set(config.ConfigTTMegabytes, 1)
	sc := newController(cfg, "test")
	sc.out = &bytes.Buffer{}
	t.Cleanup(sc.Cleanup)
	return sc
}

func run(t *testing.T, sc *ShellController, line string) string {
	t.Helper()
	resp, err := sc.standardModeSwitch(line)
	if err != nil {
		t.Fatalf("%s: %v", line, err)
	}
	return resp.message
}

func TestExtractFields(t *testing.T) {
	is := is.New(t)
	type testdata struct {
		line   string
		expCmd *shellcmd
		expErr error
	}
	cases := []testdata{
		{"", nil, errNoData},
		{"search -time 500 -depth 6",
			&shellcmd{"search", nil, CmdOptions{"time": {"500"}, "depth": {"6"}}},
			nil},
		{"play d3",
			&shellcmd{"play", []string{"d3"}, CmdOptions{}},
			nil},
		{"search -dist -time 100",
			&shellcmd{"search", nil, CmdOptions{"dist": {"true"}, "time": {"100"}}},
			nil},
		{"search -hint d3 -hint c4 -dist",
			&shellcmd{"search", nil, CmdOptions{"hint": {"d3", "c4"}, "dist": {"true"}}},
			nil},
		{`set "--- ---" white`,
			&shellcmd{"set", []string{"--- ---", "white"}, CmdOptions{}},
			nil},
		{"search -time",
			nil, errWrongOptionSyntax},
	}
	for _, t := range cases {
		cmd, err := extractFields(t.line)
		is.Equal(cmd, t.expCmd)
		is.Equal(err, t.expErr)
	}
}

func TestPlayUndoPass(t *testing.T) {
	is := is.New(t)
	sc := testController(t)

	out := run(t, sc, "play d3")
	is.True(strings.Contains(out, "white to move"))
	is.Equal(sc.side, board.White)
	is.Equal(sc.board.DiscCount(board.Black), 4)

	_, err := sc.standardModeSwitch("play a1")
	is.True(err != nil)
	is.Equal(sc.side, board.White)

	_, err = sc.standardModeSwitch("pass")
	is.True(err != nil)

	run(t, sc, "undo")
	is.Equal(*sc.board, *board.NewBoard())
	is.Equal(sc.side, board.Black)
	_, err = sc.standardModeSwitch("undo")
	is.True(err != nil)
}

func TestSetAndForcedPass(t *testing.T) {
	is := is.New(t)
	sc := testController(t)
	// black a1, white b1: white has nothing to play.
	layout := "XO" + strings.Repeat("-", 62)
	out := run(t, sc, "set "+layout+" white")
	is.True(strings.Contains(out, "white to move (0 legal)"))

	run(t, sc, "pass")
	is.Equal(sc.side, board.Black)
	out = run(t, sc, "play c1")
	is.True(strings.Contains(out, "Game over. Black wins by 3"))

	run(t, sc, "undo")
	run(t, sc, "undo")
	is.Equal(sc.side, board.White)
	is.Equal(sc.board.Black, uint64(1))

	_, err := sc.standardModeSwitch("set XO")
	is.True(err != nil)
}

func TestMovesAndEval(t *testing.T) {
	is := is.New(t)
	sc := testController(t)
	out := run(t, sc, "moves")
	for _, m := range []string{"d3", "c4", "f5", "e6"} {
		is.True(strings.Contains(out, m))
	}
	out = run(t, sc, "eval")
	is.True(strings.Contains(out, "PhasedEvaluator"))
	is.True(strings.Contains(out, "60 empties"))
}

func TestSearchAndSolve(t *testing.T) {
	is := is.New(t)
	sc := testController(t)
	out := run(t, sc, "search -depth 3 -time 5000 -dist")
	is.True(strings.Contains(out, "Best move: "))
	is.True(strings.Contains(out, "2 workers"))

	// a1 for black wins all of the top row
	run(t, sc, "set -OOOOOOX"+strings.Repeat("-", 56)+" black")
	out = run(t, sc, "solve -time 10000")
	is.True(strings.Contains(out, "black: a1"))
}

func TestGenerateAndBench(t *testing.T) {
	is := is.New(t)
	sc := testController(t)
	path := filepath.Join(t.TempDir(), "suite.yaml")
	out := run(t, sc, "gen "+path+" -n 2 -empties 8")
	is.True(strings.Contains(out, "wrote 2 puzzles"))

	out = run(t, sc, "bench "+path)
	is.True(strings.Contains(out, "2/2 passed"))
}

func TestHelp(t *testing.T) {
	is := is.New(t)
	sc := testController(t)
	is.True(strings.Contains(run(t, sc, "help"), "Commands:"))
	is.True(strings.Contains(run(t, sc, "help search"), "-dist"))
	is.True(strings.Contains(run(t, sc, "help nothing"), "no help text"))

	_, err := sc.standardModeSwitch("exit")
	is.Equal(err, errQuit)
	_, err = sc.standardModeSwitch("frobnicate")
	is.True(err != nil)
}

func TestCompleter(t *testing.T) {
	is := is.New(t)
	sc := testController(t)
	c := NewShellCompleter(sc)

	line := []rune("sol")
	matches, n := c.Do(line, len(line))
	is.Equal(n, 3)
	is.Equal(matches, [][]rune{[]rune("ve")})

	line = []rune("play ")
	matches, _ = c.Do(line, len(line))
	is.Equal(len(matches), 4)

	line = []rune("search -d")
	matches, n = c.Do(line, len(line))
	is.Equal(n, 2)
	is.Equal(matches, [][]rune{[]rune("epth"), []rune("ist")})
}
