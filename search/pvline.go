package search

import (
	"fmt"
	"strings"

	"github.com/domino14/reversi/board"
)

// Credit: MIT-licensed https://github.com/algerbrex/blunder/blob/main/engine/search.go
type PVLine struct {
	Moves []board.Square
	score int16
}

// Clear the principal variation line.
func (pvLine *PVLine) Clear() {
	pvLine.Moves = pvLine.Moves[:0]
}

// Update the principal variation line with a new best move,
// and a new line of best play after the best move.
func (pvLine *PVLine) Update(mv board.Square, newPVLine PVLine, score int16) {
	pvLine.Clear()
	pvLine.Moves = append(pvLine.Moves, mv)
	pvLine.Moves = append(pvLine.Moves, newPVLine.Moves...)
	pvLine.score = score
}

// GetPVMove returns the first move of the line, or NoSquare if it is empty.
func (pvLine *PVLine) GetPVMove() board.Square {
	if len(pvLine.Moves) == 0 {
		return board.NoSquare
	}
	return pvLine.Moves[0]
}

func (pvLine PVLine) Copy() PVLine {
	return PVLine{Moves: append([]board.Square(nil), pvLine.Moves...), score: pvLine.score}
}

// Notation lists the line as algebraic squares, with "pass" for passes.
func (pvLine PVLine) Notation() []string {
	out := make([]string, len(pvLine.Moves))
	for i, m := range pvLine.Moves {
		out[i] = m.String()
	}
	return out
}

// Convert the principal variation line to a string.
func (pvLine PVLine) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "PV; val %d\n", pvLine.score)
	for i, m := range pvLine.Moves {
		fmt.Fprintf(&sb, "%d: %s\n", i+1, m)
	}
	return sb.String()
}

func (pvLine PVLine) NLBString() string {
	// no line breaks
	return fmt.Sprintf("PV; val %d; %s", pvLine.score, strings.Join(pvLine.Notation(), " "))
}
