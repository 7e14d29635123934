package shell

import (
	"strings"

	"github.com/kballard/go-shellquote"
)

// ShellCompleter provides context-aware autocomplete for shell commands
type ShellCompleter struct {
	sc *ShellController
}

func NewShellCompleter(sc *ShellController) *ShellCompleter {
	return &ShellCompleter{sc: sc}
}

// CommandMetadata holds autocomplete information for a command
type CommandMetadata struct {
	Options []string // Available options for this command (e.g., "-time", "-depth")
	Args    []string // Possible argument values (for non-option arguments)
}

var commandMetadata = map[string]CommandMetadata{
	"search": {Options: []string{"-time", "-depth", "-dist", "-hint"}},
	"remote": {Options: []string{"-time", "-depth", "-dist", "-hint"}},
	"solve":  {Options: []string{"-time"}},
	"bench":  {Options: []string{"-dist"}},
	"gen":    {Options: []string{"-n", "-empties"}},
	"help":   {Args: []string{"search", "set", "solve", "bench", "gen", "remote"}},
}

var commandNames = []string{
	"help", "new", "show", "set", "play", "pass", "undo", "moves", "eval",
	"search", "solve", "bench", "gen", "remote", "exit",
}

var sideValues = []string{"black", "white"}

// Do implements the readline.AutoComplete interface
func (c *ShellCompleter) Do(line []rune, pos int) ([][]rune, int) {
	text := string(line[:pos])

	// Parse the line using shellquote to handle quoted strings properly
	fields, err := shellquote.Split(text)
	if err != nil {
		// If we can't parse, fall back to simple space splitting
		fields = strings.Fields(text)
	}
	endsWithSpace := len(text) > 0 && text[len(text)-1] == ' '

	var prefix string
	var completions []string

	if len(fields) == 0 || (len(fields) == 1 && !endsWithSpace) {
		if len(fields) == 1 {
			prefix = fields[0]
		}
		completions = commandNames
	} else {
		cmdName := fields[0]
		if !endsWithSpace {
			prefix = fields[len(fields)-1]
		}
		// number of complete arguments before the one being typed
		done := len(fields) - 1
		if !endsWithSpace {
			done--
		}

		switch {
		case cmdName == "play":
			// legal moves are the only useful completions
			for _, m := range c.sc.board.MoveList(c.sc.side) {
				completions = append(completions, m.String())
			}
		case cmdName == "set" && done == 1:
			completions = sideValues
		default:
			if metadata, exists := commandMetadata[cmdName]; exists {
				if strings.HasPrefix(prefix, "-") || len(metadata.Args) == 0 {
					completions = metadata.Options
				} else {
					completions = metadata.Args
				}
			}
		}
	}

	// Filter completions based on prefix
	var matches [][]rune
	for _, completion := range completions {
		if strings.HasPrefix(completion, prefix) {
			// Return only the part that needs to be added
			suffix := completion[len(prefix):]
			matches = append(matches, []rune(suffix))
		}
	}
	return matches, len(prefix)
}
