package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"lukechampine.com/frand"

	"github.com/domino14/reversi/board"
	"github.com/domino14/reversi/config"
	"github.com/domino14/reversi/evaluator"
	"github.com/domino14/reversi/puzzles"
	"github.com/domino14/reversi/worker"
)

type Response struct {
	message string
}

type CmdOptions map[string][]string

func (c CmdOptions) String(key string) string {
	v := c[key]
	if len(v) > 0 {
		return v[0]
	}
	return ""
}

func (c CmdOptions) Int(key string) (int, error) {
	v := c[key]
	if len(v) == 0 {
		return 0, errors.New(key + " not found in options")
	}
	return strconv.Atoi(v[0])
}

func (c CmdOptions) IntDefault(key string, defaultI int) (int, error) {
	v := c[key]
	if len(v) == 0 {
		return defaultI, nil
	}
	return strconv.Atoi(v[0])
}

func (c CmdOptions) Bool(key string) bool {
	v := c[key]
	if len(v) == 0 {
		return false
	}
	return strings.ToLower(v[0]) == "true"
}

func msg(message string) *Response {
	return &Response{message: message}
}

func (sc *ShellController) positionText() string {
	var sb strings.Builder
	sb.WriteString(sc.board.String())
	switch {
	case sc.board.GameOver():
		fmt.Fprintf(&sb, "Game over. %s\n", resultText(sc.board))
	default:
		fmt.Fprintf(&sb, "%s to move (%d legal)\n", sc.side, len(sc.board.MoveList(sc.side)))
	}
	if len(sc.played) > 0 {
		fmt.Fprintf(&sb, "Moves: %s\n", strings.Join(sc.played, " "))
	}
	return sb.String()
}

func resultText(b *board.Board) string {
	d := b.DiscDiff(board.Black)
	switch {
	case d > 0:
		return fmt.Sprintf("Black wins by %d", d)
	case d < 0:
		return fmt.Sprintf("White wins by %d", -d)
	}
	return "Draw"
}

func (sc *ShellController) help(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) == 0 {
		return msg(usage("standard")), nil
	}
	return msg(usageTopic(cmd.args[0])), nil
}

func (sc *ShellController) newGame(cmd *shellcmd) (*Response, error) {
	sc.board = board.NewBoard()
	sc.side = board.Black
	sc.history = nil
	sc.played = nil
	return msg(sc.positionText()), nil
}

func (sc *ShellController) show(cmd *shellcmd) (*Response, error) {
	return msg(sc.positionText()), nil
}

// setPosition takes a 64-square layout and an optional side to move.
func (sc *ShellController) setPosition(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) == 0 {
		return nil, errors.New("usage: set <layout> [black|white]")
	}
	b, err := board.ParseBoard(cmd.args[0])
	if err != nil {
		return nil, err
	}
	side := board.Black
	if len(cmd.args) > 1 {
		if side, err = board.ParseSide(cmd.args[1]); err != nil {
			return nil, err
		}
	}
	sc.board = b
	sc.side = side
	sc.history = nil
	sc.played = nil
	return msg(sc.positionText()), nil
}

func (sc *ShellController) push() {
	sc.history = append(sc.history, snapshot{board: *sc.board, side: sc.side})
}

func (sc *ShellController) commit(sq board.Square) (*Response, error) {
	sc.push()
	if _, ok := sc.board.ApplySquare(sq, sc.side); !ok {
		sc.history = sc.history[:len(sc.history)-1]
		return nil, fmt.Errorf("%s is not a legal move for %s", sq, sc.side)
	}
	sc.played = append(sc.played, sq.String())
	sc.side = sc.side.Opponent()
	text := sc.positionText()
	if !sc.board.GameOver() && !sc.board.HasMoves(sc.side) {
		text += fmt.Sprintf("%s has no moves and must pass\n", sc.side)
	}
	return msg(text), nil
}

func (sc *ShellController) play(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) != 1 {
		return nil, errors.New("usage: play <square>")
	}
	sq, err := board.ParseSquare(cmd.args[0])
	if err != nil {
		return nil, err
	}
	if sq == board.NoSquare {
		return sc.pass(cmd)
	}
	return sc.commit(sq)
}

func (sc *ShellController) pass(cmd *shellcmd) (*Response, error) {
	if sc.board.HasMoves(sc.side) {
		return nil, fmt.Errorf("%s has legal moves and cannot pass", sc.side)
	}
	if sc.board.GameOver() {
		return nil, errors.New("game is over")
	}
	sc.push()
	sc.played = append(sc.played, "pass")
	sc.side = sc.side.Opponent()
	return msg(sc.positionText()), nil
}

func (sc *ShellController) undo(cmd *shellcmd) (*Response, error) {
	if len(sc.history) == 0 {
		return nil, errors.New("nothing to undo")
	}
	last := sc.history[len(sc.history)-1]
	sc.history = sc.history[:len(sc.history)-1]
	sc.played = sc.played[:len(sc.played)-1]
	b := last.board
	sc.board = &b
	sc.side = last.side
	return msg(sc.positionText()), nil
}

func (sc *ShellController) moves(cmd *shellcmd) (*Response, error) {
	moves := sc.board.MoveList(sc.side)
	if len(moves) == 0 {
		return msg("no legal moves"), nil
	}
	var sb strings.Builder
	sb.WriteString("     Move  Flips  Eval\n")
	for i, m := range moves {
		flips := board.Popcount(board.Flips(m, sc.board.Own(sc.side), sc.board.Opp(sc.side)))
		tok, _ := sc.board.ApplySquare(m, sc.side)
		// scored from the mover's point of view
		v := -evaluator.Clamp(sc.eval.Evaluate(sc.board, sc.side.Opponent()))
		sc.board.UndoMove(tok)
		danger := ""
		if evaluator.IsDangerous(sc.board, m) {
			danger = "  (gives up a corner)"
		}
		fmt.Fprintf(&sb, "%3d: %-6s%-7d%-5d%s\n", i+1, m, flips, v, danger)
	}
	return msg(sb.String()), nil
}

func (sc *ShellController) evaluate(cmd *shellcmd) (*Response, error) {
	v := evaluator.Clamp(sc.eval.Evaluate(sc.board, sc.side))
	phase := evaluator.PhaseOf(sc.board.EmptiesCount())
	return msg(fmt.Sprintf("%s: %d for %s (%s, %d empties)", sc.eval.Type(), v, sc.side,
		phase, sc.board.EmptiesCount())), nil
}

func (sc *ShellController) requestFromOptions(cmd *shellcmd) (worker.Request, error) {
	limit, err := cmd.options.IntDefault("time",
		int(sc.config.GetDuration(config.ConfigDefaultTimeLimit).Milliseconds()))
	if err != nil {
		return worker.Request{}, err
	}
	depth, err := cmd.options.IntDefault("depth", 0)
	if err != nil {
		return worker.Request{}, err
	}
	opts := worker.Options{
		TimeLimitMs: int64(limit),
		DepthLimit:  depth,
		Distribute:  cmd.options.Bool("dist"),
	}
	for _, h := range cmd.options["hint"] {
		sq, err := board.ParseSquare(h)
		if err != nil {
			return worker.Request{}, err
		}
		opts.Hints = append(opts.Hints, sq.Position())
	}
	return worker.Request{Board: *sc.board, Side: sc.side, Options: opts}, nil
}

func responseText(resp *worker.Response) string {
	var sb strings.Builder
	mv := "pass"
	if resp.BestMove != nil {
		mv = resp.BestMove.String()
	}
	fmt.Fprintf(&sb, "Best move: %s\n", mv)
	fmt.Fprintf(&sb, "Evaluation: %d", resp.Evaluation)
	if resp.Exact {
		sb.WriteString(" (exact)")
	}
	sb.WriteString("\n")
	pv := make([]string, len(resp.PrincipalVariation))
	for i, p := range resp.PrincipalVariation {
		pv[i] = p.Index().String()
	}
	fmt.Fprintf(&sb, "PV: %s\n", strings.Join(pv, " "))
	fmt.Fprintf(&sb, "Depth %d, %d nodes, %d ms, %d workers\n", resp.DepthReached,
		resp.NodesSearched, resp.TimeUsedMs, resp.WorkersUsed)
	return sb.String()
}

func (sc *ShellController) search(cmd *shellcmd) (*Response, error) {
	req, err := sc.requestFromOptions(cmd)
	if err != nil {
		return nil, err
	}
	resp, err := sc.engine().Analyze(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return msg(responseText(resp)), nil
}

func (sc *ShellController) remoteSearch(cmd *shellcmd) (*Response, error) {
	req, err := sc.requestFromOptions(cmd)
	if err != nil {
		return nil, err
	}
	client, err := sc.remoteClient()
	if err != nil {
		return nil, err
	}
	resp, err := client.RequestMove(req)
	if err != nil {
		return nil, err
	}
	return msg(responseText(resp)), nil
}

func (sc *ShellController) solve(cmd *shellcmd) (*Response, error) {
	limit, err := cmd.options.IntDefault("time", 0)
	if err != nil {
		return nil, err
	}
	s, err := sc.endgameSolver()
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	if limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(limit)*time.Millisecond)
		defer cancel()
	}
	res, err := s.Solve(ctx, sc.board, sc.side, nil)
	if err != nil {
		return nil, err
	}
	status := "exact"
	if !res.Exact {
		status = "incomplete"
	}
	return msg(fmt.Sprintf("%s: %s %d (%s), %d nodes in %s\n%s", sc.side, res.BestMove, res.Score,
		status, res.Nodes, res.TimeUsed.Round(time.Millisecond), res.PV.NLBString())), nil
}

func (sc *ShellController) bench(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) != 1 {
		return nil, errors.New("usage: bench <suite.yaml>")
	}
	suite, err := puzzles.LoadFile(cmd.args[0])
	if err != nil {
		return nil, err
	}
	if cmd.options.Bool("dist") {
		suite.Options.Distribute = true
	}
	start := time.Now()
	outcomes, err := puzzles.Run(context.Background(), sc.engine(), suite)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	var nodes uint64
	for _, o := range outcomes {
		nodes += o.Nodes
		status := "ok"
		if !o.Passed {
			status = "FAIL " + o.Reason
		}
		fmt.Fprintf(&sb, "%-24s %-5s %5d  %s\n", o.Name, o.Move, o.Score, status)
	}
	passed, total := puzzles.Summary(outcomes)
	fmt.Fprintf(&sb, "%d/%d passed, %d nodes in %s\n", passed, total, nodes,
		time.Since(start).Round(time.Millisecond))
	return msg(sb.String()), nil
}

// generate writes a suite of solved random positions.
func (sc *ShellController) generate(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) != 1 {
		return nil, errors.New("usage: gen <file> [-n count] [-empties n]")
	}
	n, err := cmd.options.IntDefault("n", 10)
	if err != nil {
		return nil, err
	}
	empties, err := cmd.options.IntDefault("empties", 12)
	if err != nil {
		return nil, err
	}
	s, err := sc.endgameSolver()
	if err != nil {
		return nil, err
	}
	suite, err := puzzles.Generate(context.Background(), frand.New(), s, n, empties)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(cmd.args[0])
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := puzzles.Write(f, suite); err != nil {
		return nil, err
	}
	return msg(fmt.Sprintf("wrote %d puzzles to %s", len(suite.Puzzles), cmd.args[0])), nil
}
