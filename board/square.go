package board

import (
	"errors"
	"fmt"
	"strings"
)

// BoardDim is the width and height of the board.
const BoardDim = 8

// A Square is a board index, row*8 + col. Row 0 is the top row.
type Square uint8

// NoSquare doubles as the pass move.
const NoSquare Square = 64

var ErrBadNotation = errors.New("bad square notation")

func (s Square) Row() int { return int(s) / BoardDim }
func (s Square) Col() int { return int(s) % BoardDim }

func (s Square) Mask() uint64 {
	if s >= NoSquare {
		return 0
	}
	return uint64(1) << s
}

// Position of NoSquare is (-1,-1), which maps back to NoSquare.
func (s Square) Position() Position {
	if s >= NoSquare {
		return Position{Row: -1, Col: -1}
	}
	return Position{Row: s.Row(), Col: s.Col()}
}

func (s Square) String() string {
	if s >= NoSquare {
		return "pass"
	}
	return s.Position().String()
}

// Position is a (row, col) coordinate pair. It is a value type and is never
// mutated in place.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Position) Valid() bool {
	return p.Row >= 0 && p.Row < BoardDim && p.Col >= 0 && p.Col < BoardDim
}

func (p Position) Index() Square {
	if !p.Valid() {
		return NoSquare
	}
	return Square(p.Row*BoardDim + p.Col)
}

// String returns algebraic notation, column letter first: (2,3) is "d3".
func (p Position) String() string {
	if !p.Valid() {
		return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
	}
	return fmt.Sprintf("%c%d", 'a'+p.Col, p.Row+1)
}

// ParseSquare reads notation like "d3" or "D3". "pass" parses to NoSquare.
func ParseSquare(s string) (Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "pass" || s == "--" {
		return NoSquare, nil
	}
	if len(s) != 2 {
		return NoSquare, fmt.Errorf("%w: %q", ErrBadNotation, s)
	}
	col := int(s[0] - 'a')
	row := int(s[1] - '1')
	p := Position{Row: row, Col: col}
	if !p.Valid() {
		return NoSquare, fmt.Errorf("%w: %q", ErrBadNotation, s)
	}
	return p.Index(), nil
}

// Corner, X-square and C-square masks.
const (
	CornerMask  uint64 = 0x8100000000000081
	XSquareMask uint64 = 0x0042000000004200
	CSquareMask uint64 = 0x4281000000008142
	EdgeMask    uint64 = 0xff818181818181ff
)

// cornerFor maps every X- and C-square to the corner it touches.
var cornerFor [64]Square

func init() {
	for i := range cornerFor {
		cornerFor[i] = NoSquare
	}
	link := func(corner Square, adj ...Square) {
		for _, a := range adj {
			cornerFor[a] = corner
		}
	}
	link(0, 1, 8, 9)
	link(7, 6, 15, 14)
	link(56, 48, 57, 49)
	link(63, 55, 62, 54)
}

// AdjacentCorner returns the corner an X- or C-square touches, or NoSquare.
func AdjacentCorner(s Square) Square {
	if s >= NoSquare {
		return NoSquare
	}
	return cornerFor[s]
}

func IsCorner(s Square) bool { return s.Mask()&CornerMask != 0 }
