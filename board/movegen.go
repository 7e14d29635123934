package board

const (
	notFileA uint64 = 0xfefefefefefefefe
	notFileH uint64 = 0x7f7f7f7f7f7f7f7f
	allBits  uint64 = 0xffffffffffffffff
)

type direction struct {
	amount uint
	left   bool
	mask   uint64
}

func (d direction) step(x uint64) uint64 {
	if d.left {
		return (x << d.amount) & d.mask
	}
	return (x >> d.amount) & d.mask
}

// E, W, S, N, SE, SW, NE, NW. Bits moving east must not wrap into file A,
// bits moving west must not wrap into file H.
var directions = [8]direction{
	{1, true, notFileA},
	{1, false, notFileH},
	{8, true, allBits},
	{8, false, allBits},
	{9, true, notFileA},
	{7, true, notFileH},
	{7, false, notFileA},
	{9, false, notFileH},
}

// MoveMask computes legal moves for the owner of own. A run of opponent
// discs can be at most 6 long, so six propagation steps are enough.
func MoveMask(own, opp uint64) uint64 {
	empty := ^(own | opp)
	var moves uint64
	for _, d := range directions {
		x := d.step(own) & opp
		x |= d.step(x) & opp
		x |= d.step(x) & opp
		x |= d.step(x) & opp
		x |= d.step(x) & opp
		x |= d.step(x) & opp
		moves |= d.step(x) & empty
	}
	return moves
}

// Flips returns the discs a move on sq would turn over. It does not check
// that sq is empty.
func Flips(sq Square, own, opp uint64) uint64 {
	m := sq.Mask()
	var f uint64
	for _, d := range directions {
		var line uint64
		x := d.step(m)
		for x&opp != 0 {
			line |= x
			x = d.step(x)
		}
		if x&own != 0 {
			f |= line
		}
	}
	return f
}

func (b *Board) ValidMoveMask(s Side) uint64 {
	return MoveMask(b.Own(s), b.Opp(s))
}

// MoveToken records everything needed to undo a move.
type MoveToken struct {
	Square    Square
	Side      Side
	Flips     uint64
	PrevBlack uint64
	PrevWhite uint64
}

// ApplySquare plays sq for side s. If the square is occupied, off the board,
// or flips nothing, the board is left untouched and ok is false.
func (b *Board) ApplySquare(sq Square, s Side) (t MoveToken, ok bool) {
	m := sq.Mask()
	if m == 0 || (b.Black|b.White)&m != 0 {
		return t, false
	}
	own, opp := b.Own(s), b.Opp(s)
	f := Flips(sq, own, opp)
	if f == 0 {
		return t, false
	}
	t = MoveToken{Square: sq, Side: s, Flips: f, PrevBlack: b.Black, PrevWhite: b.White}
	own |= m | f
	opp &^= f
	if s == Black {
		b.Black, b.White = own, opp
	} else {
		b.White, b.Black = own, opp
	}
	return t, true
}

func (b *Board) ApplyMove(p Position, s Side) (MoveToken, bool) {
	return b.ApplySquare(p.Index(), s)
}

// UndoMove restores the board to exactly what it was before t was applied.
func (b *Board) UndoMove(t MoveToken) {
	b.Black = t.PrevBlack
	b.White = t.PrevWhite
}

// MoveList returns legal moves for s in ascending square order.
func (b *Board) MoveList(s Side) []Square {
	return Squares(b.ValidMoveMask(s))
}

type Direction int

const (
	East Direction = iota
	West
	South
	North
	SouthEast
	SouthWest
	NorthEast
	NorthWest
)

// Shift moves every disc in x one square in direction d. Discs that would
// leave the board are dropped.
func Shift(x uint64, d Direction) uint64 { return directions[d].step(x) }

// Neighbors returns all squares adjacent to any square in x.
func Neighbors(x uint64) uint64 {
	var n uint64
	for _, d := range directions {
		n |= d.step(x)
	}
	return n
}
