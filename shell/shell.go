package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/domino14/reversi/board"
	"github.com/domino14/reversi/bot"
	"github.com/domino14/reversi/config"
	"github.com/domino14/reversi/evaluator"
	"github.com/domino14/reversi/search"
	"github.com/domino14/reversi/worker"
)

var (
	errNoData            = errors.New("no data in this line")
	errWrongOptionSyntax = errors.New("wrong format; all options need arguments")
	errQuit              = errors.New("sending quit signal")
)

// Options that may be given without a value.
var flagOptions = map[string]bool{"dist": true}

// Commands whose arguments may start with a dash, such as board layouts.
var rawArgCommands = map[string]bool{"set": true}

type shellcmd struct {
	cmd     string
	args    []string
	options CmdOptions
}

// snapshot is enough to take back one move.
type snapshot struct {
	board board.Board
	side  board.Side
}

type ShellController struct {
	l          *readline.Instance
	out        io.Writer
	config     *config.Config
	gitVersion string

	board   *board.Board
	side    board.Side
	history []snapshot
	played  []string

	coord  *worker.Coordinator
	solver *search.Solver
	eval   evaluator.Evaluator

	nc     *nats.Conn
	remote *bot.Client
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func showMessage(msg string, w io.Writer) {
	io.WriteString(w, msg)
	io.WriteString(w, "\n")
}

func NewShellController(cfg *config.Config, gitVersion string) *ShellController {
	sc := newController(cfg, gitVersion)
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[31mreversi>\033[0m ",
		HistoryFile:     "/tmp/reversi_readline.tmp",
		EOFPrompt:       "exit",
		InterruptPrompt: "^C",
		AutoComplete:    NewShellCompleter(sc),

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		panic(err)
	}
	sc.l = l
	sc.out = l.Stderr()
	return sc
}

// newController builds a controller without a terminal.
func newController(cfg *config.Config, gitVersion string) *ShellController {
	return &ShellController{
		out:        os.Stderr,
		config:     cfg,
		gitVersion: gitVersion,
		board:      board.NewBoard(),
		side:       board.Black,
		eval:       evaluator.NewPhasedEvaluator(),
	}
}

func (sc *ShellController) showMessage(msg string) {
	showMessage(msg, sc.out)
}

func (sc *ShellController) showError(err error) {
	sc.showMessage("Error: " + err.Error())
}

// engine starts the worker pool on first use.
func (sc *ShellController) engine() *worker.Coordinator {
	if sc.coord == nil {
		sc.coord = worker.NewCoordinator(worker.NewWorkerConfig(sc.config))
	}
	return sc.coord
}

// endgameSolver is a single solver kept across solve commands so its
// transposition table stays warm.
func (sc *ShellController) endgameSolver() (*search.Solver, error) {
	if sc.solver == nil {
		s := &search.Solver{}
		if err := s.Init(nil, sc.eval); err != nil {
			return nil, err
		}
		s.SetTranspositionTableSize(sc.config.GetInt(config.ConfigTTMegabytes))
		sc.solver = s
	}
	return sc.solver, nil
}

func (sc *ShellController) remoteClient() (*bot.Client, error) {
	if sc.remote == nil {
		nc, err := nats.Connect(sc.config.GetString(config.ConfigNatsURL))
		if err != nil {
			return nil, err
		}
		sc.nc = nc
		sc.remote = bot.NewClient(nc, sc.config.GetString(config.ConfigBotChannel))
	}
	return sc.remote, nil
}

func extractFields(line string) (*shellcmd, error) {
	fields, err := shellquote.Split(line)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errNoData
	}
	cmd := fields[0]
	var args []string
	options := CmdOptions{}
	for i := 1; i < len(fields); i++ {
		if rawArgCommands[cmd] || !strings.HasPrefix(fields[i], "-") || len(fields[i]) == 1 {
			args = append(args, fields[i])
			continue
		}
		opt := fields[i][1:]
		if flagOptions[opt] && (i+1 == len(fields) || strings.HasPrefix(fields[i+1], "-")) {
			options[opt] = append(options[opt], "true")
			continue
		}
		if i+1 == len(fields) {
			return nil, errWrongOptionSyntax
		}
		options[opt] = append(options[opt], fields[i+1])
		i++
	}
	return &shellcmd{cmd: cmd, args: args, options: options}, nil
}

func (sc *ShellController) standardModeSwitch(line string) (*Response, error) {
	cmd, err := extractFields(line)
	if err != nil {
		return nil, err
	}
	switch cmd.cmd {
	case "exit", "bye":
		return nil, errQuit
	case "help":
		return sc.help(cmd)
	case "new", "n":
		return sc.newGame(cmd)
	case "show", "s":
		return sc.show(cmd)
	case "set":
		return sc.setPosition(cmd)
	case "play", "p":
		return sc.play(cmd)
	case "pass":
		return sc.pass(cmd)
	case "undo", "u":
		return sc.undo(cmd)
	case "moves":
		return sc.moves(cmd)
	case "eval":
		return sc.evaluate(cmd)
	case "search":
		return sc.search(cmd)
	case "solve":
		return sc.solve(cmd)
	case "bench":
		return sc.bench(cmd)
	case "gen":
		return sc.generate(cmd)
	case "remote":
		return sc.remoteSearch(cmd)
	default:
		msg := fmt.Sprintf("command %v not found", strconv.Quote(cmd.cmd))
		log.Info().Msg(msg)
		return nil, errors.New(msg)
	}
}

// Execute runs a single command line, as when the shell is started with
// arguments.
func (sc *ShellController) Execute(sig chan os.Signal, line string) {
	resp, err := sc.standardModeSwitch(line)
	switch {
	case errors.Is(err, errQuit):
		sig <- syscall.SIGINT
	case errors.Is(err, errNoData):
	case err != nil:
		sc.showError(err)
	case resp != nil:
		sc.showMessage(resp.message)
	}
}

func (sc *ShellController) Loop(sig chan os.Signal) {
	defer sc.l.Close()

	sc.showMessage("reversi " + sc.gitVersion + "; type help for commands")
	for {
		line, err := sc.l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				sig <- syscall.SIGINT
				break
			} else {
				continue
			}
		} else if err == io.EOF {
			sig <- syscall.SIGINT
			break
		}
		line = strings.TrimSpace(line)

		resp, err := sc.standardModeSwitch(line)
		if errors.Is(err, errQuit) {
			sig <- syscall.SIGINT
			break
		} else if errors.Is(err, errNoData) {
			continue
		} else if err != nil {
			sc.showError(err)
		} else if resp != nil {
			sc.showMessage(resp.message)
		}
	}
	log.Debug().Msgf("Exiting readline loop...")
}

// Cleanup stops the worker pool and closes the NATS connection.
func (sc *ShellController) Cleanup() {
	log.Info().Msg("cleaning up")
	if sc.coord != nil {
		if err := sc.coord.Close(); err != nil {
			log.Err(err).Msg("closing-workers")
		}
	}
	if sc.nc != nil {
		sc.nc.Close()
	}
}
