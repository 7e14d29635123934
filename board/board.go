package board

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

type Side uint8

const (
	Black Side = iota
	White
)

func (s Side) Opponent() Side { return s ^ 1 }

func (s Side) String() string {
	if s == Black {
		return "black"
	}
	return "white"
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Side) UnmarshalText(text []byte) error {
	v, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSide accepts black/white/b/w/x/o in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "black", "b", "x":
		return Black, nil
	case "white", "w", "o":
		return White, nil
	}
	return Black, fmt.Errorf("unrecognized side %q", s)
}

var (
	ErrOverlappingDiscs = errors.New("black and white discs overlap")
	ErrBadBoardString   = errors.New("bad board layout")
)

// Board is a bit-packed Othello position. Bit i is square i (row*8+col).
// Black and White never share a bit.
type Board struct {
	Black uint64 `json:"black"`
	White uint64 `json:"white"`
}

// NewBoard returns the standard opening position.
func NewBoard() *Board {
	return &Board{
		Black: Square(3*8+4).Mask() | Square(4*8+3).Mask(),
		White: Square(3*8+3).Mask() | Square(4*8+4).Mask(),
	}
}

func (b *Board) Copy() *Board {
	c := *b
	return &c
}

func (b *Board) Own(s Side) uint64 {
	if s == Black {
		return b.Black
	}
	return b.White
}

func (b *Board) Opp(s Side) uint64 {
	if s == Black {
		return b.White
	}
	return b.Black
}

func (b *Board) Empty() uint64 { return ^(b.Black | b.White) }

func (b *Board) Validate() error {
	if b.Black&b.White != 0 {
		return fmt.Errorf("%w: %#016x", ErrOverlappingDiscs, b.Black&b.White)
	}
	return nil
}

// Get reports which side occupies p, if any.
func (b *Board) Get(p Position) (Side, bool) {
	m := p.Index().Mask()
	switch {
	case b.Black&m != 0:
		return Black, true
	case b.White&m != 0:
		return White, true
	}
	return Black, false
}

// Set places a disc of the given side, replacing whatever was there. It does
// not flip anything; use ApplyMove for that.
func (b *Board) Set(p Position, s Side) {
	m := p.Index().Mask()
	b.Black &^= m
	b.White &^= m
	if s == Black {
		b.Black |= m
	} else {
		b.White |= m
	}
}

func Popcount(mask uint64) int { return bits.OnesCount64(mask) }

func (b *Board) EmptiesCount() int { return 64 - bits.OnesCount64(b.Black|b.White) }

func (b *Board) DiscCount(s Side) int { return bits.OnesCount64(b.Own(s)) }

// DiscDiff is own discs minus opponent discs.
func (b *Board) DiscDiff(s Side) int {
	return bits.OnesCount64(b.Own(s)) - bits.OnesCount64(b.Opp(s))
}

func (b *Board) HasMoves(s Side) bool { return b.ValidMoveMask(s) != 0 }

func (b *Board) GameOver() bool {
	return !b.HasMoves(Black) && !b.HasMoves(White)
}

// FirstSquare returns the lowest set square in mask, or NoSquare.
func FirstSquare(mask uint64) Square {
	if mask == 0 {
		return NoSquare
	}
	return Square(bits.TrailingZeros64(mask))
}

// Squares lists the set bits of mask in ascending order.
func Squares(mask uint64) []Square {
	sqs := make([]Square, 0, bits.OnesCount64(mask))
	for mask != 0 {
		sqs = append(sqs, Square(bits.TrailingZeros64(mask)))
		mask &= mask - 1
	}
	return sqs
}

func (b *Board) String() string {
	var sb strings.Builder
	sb.WriteString("  a b c d e f g h\n")
	for r := 0; r < BoardDim; r++ {
		fmt.Fprintf(&sb, "%d", r+1)
		for c := 0; c < BoardDim; c++ {
			m := Square(r*BoardDim + c).Mask()
			switch {
			case b.Black&m != 0:
				sb.WriteString(" X")
			case b.White&m != 0:
				sb.WriteString(" O")
			default:
				sb.WriteString(" -")
			}
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "X: %d  O: %d\n", b.DiscCount(Black), b.DiscCount(White))
	return sb.String()
}

// Layout returns the 64-character row-major form accepted by ParseBoard.
func (b *Board) Layout() string {
	out := make([]byte, 64)
	for i := range out {
		m := uint64(1) << i
		switch {
		case b.Black&m != 0:
			out[i] = 'X'
		case b.White&m != 0:
			out[i] = 'O'
		default:
			out[i] = '-'
		}
	}
	return string(out)
}

// ParseBoard reads a row-major 64-square layout. X, B or * is black; O or W
// is white; - or . is empty. Whitespace is ignored.
func ParseBoard(layout string) (*Board, error) {
	b := &Board{}
	i := 0
	for _, ch := range layout {
		switch ch {
		case ' ', '\n', '\t', '\r', '/':
			continue
		}
		if i >= 64 {
			return nil, fmt.Errorf("%w: more than 64 squares", ErrBadBoardString)
		}
		switch ch {
		case 'X', 'x', 'B', 'b', '*':
			b.Black |= uint64(1) << i
		case 'O', 'o', 'W', 'w':
			b.White |= uint64(1) << i
		case '-', '.':
		default:
			return nil, fmt.Errorf("%w: unexpected %q", ErrBadBoardString, ch)
		}
		i++
	}
	if i != 64 {
		return nil, fmt.Errorf("%w: got %d squares", ErrBadBoardString, i)
	}
	return b, nil
}
