package zobrist

import (
	"encoding/binary"
	"math/bits"

	"github.com/cespare/xxhash"
	"lukechampine.com/frand"

	"github.com/domino14/reversi/board"
)

const bignum = 1<<63 - 2

// generate a zobrist hash for an othello position.
// https://en.wikipedia.org/wiki/Zobrist_hashing
type Zobrist struct {
	whiteToMove uint64
	posTable    [64][2]uint64
}

func (z *Zobrist) Initialize() {
	z.fill(frand.Uint64n)
}

// InitializeWithSeed builds the same tables for the same seed, so that keys
// are comparable across processes.
func (z *Zobrist) InitializeWithSeed(seed string) {
	var key [32]byte
	for i := 0; i < 4; i++ {
		// frand wants a 32-byte seed; stretch the digest with a counter.
		h := xxhash.Sum64([]byte{byte(i)}) ^ xxhash.Sum64([]byte(seed))
		binary.LittleEndian.PutUint64(key[i*8:], h)
	}
	rng := frand.NewCustom(key[:], 1024, 12)
	z.fill(rng.Uint64n)
}

func (z *Zobrist) fill(next func(uint64) uint64) {
	for i := range z.posTable {
		for j := range z.posTable[i] {
			z.posTable[i][j] = next(bignum) + 1
		}
	}
	z.whiteToMove = next(bignum) + 1
}

func (z *Zobrist) Hash(b *board.Board, toMove board.Side) uint64 {
	key := uint64(0)
	for m := b.Black; m != 0; m &= m - 1 {
		key ^= z.posTable[bits.TrailingZeros64(m)][board.Black]
	}
	for m := b.White; m != 0; m &= m - 1 {
		key ^= z.posTable[bits.TrailingZeros64(m)][board.White]
	}
	if toMove == board.White {
		key ^= z.whiteToMove
	}
	return key
}

// AddMove updates key for a move that was just applied. Applying it a second
// time with the same token restores the original key.
func (z *Zobrist) AddMove(key uint64, t board.MoveToken) uint64 {
	own, opp := t.Side, t.Side.Opponent()
	key ^= z.posTable[t.Square][own]
	for m := t.Flips; m != 0; m &= m - 1 {
		sq := bits.TrailingZeros64(m)
		key ^= z.posTable[sq][own] ^ z.posTable[sq][opp]
	}
	return key ^ z.whiteToMove
}

func (z *Zobrist) AddPass(key uint64) uint64 {
	return key ^ z.whiteToMove
}
