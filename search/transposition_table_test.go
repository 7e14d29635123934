package search

import (
	"testing"

	"github.com/matryer/is"
)

func TestTTableEntry(t *testing.T) {
	is := is.New(t)
	tt := &TranspositionTable{}
	tt.Reset(1)
	is.True(tt.sizePowerOf2 >= minSizePowerOf2)

	tt.store(9409641586937047728, newEntry(12, TTUpper, 23, 19))
	te := tt.lookup(9409641586937047728)
	is.True(te.valid())
	is.Equal(te.depth(), uint8(23))
	is.Equal(te.flag(), uint8(TTUpper))
	is.Equal(te.score, int16(12))
	is.Equal(int(te.move()), 19)

	is.Equal(tt.t2collisions.Load(), uint64(0))
	// same slot, different key
	te = tt.lookup(9409641586937047728 + (tt.sizeMask + 1))
	is.Equal(te, TableEntry{})
	is.Equal(tt.t2collisions.Load(), uint64(1))

	// a different slot entirely is not a collision.
	te = tt.lookup(9409641586937047728 + 1)
	is.Equal(te, TableEntry{})
	is.Equal(tt.lookups.Load(), uint64(3))
	is.Equal(tt.t2collisions.Load(), uint64(1))
}

func TestTTableDepthPreferred(t *testing.T) {
	is := is.New(t)
	tt := &TranspositionTable{}
	tt.Reset(1)
	k1 := uint64(0xabcdef0000000400)
	k2 := k1 + (tt.sizeMask + 1)

	tt.store(k1, newEntry(5, TTExact, 10, 3))
	// shallower entry for another position does not evict the deeper one
	tt.store(k2, newEntry(7, TTExact, 4, 3))
	is.Equal(tt.lookup(k1).score, int16(5))
	is.True(!tt.lookup(k2).valid())

	// after aging, anything may replace it
	tt.Age()
	tt.store(k2, newEntry(7, TTExact, 4, 3))
	is.Equal(tt.lookup(k2).score, int16(7))

	// same position always overwrites
	tt.store(k2, newEntry(9, TTLower, 1, 3))
	is.Equal(tt.lookup(k2).score, int16(9))

	tt.Clear()
	is.True(!tt.lookup(k2).valid())
	is.Equal(tt.Stats().Lookups, uint64(1))
}
