package search

import (
	"math"
	"sync/atomic"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"

	"github.com/domino14/reversi/board"
)

const (
	TTExact = 0x01
	TTLower = 0x02
	TTUpper = 0x03
)

const entrySize = 16

const depthMask = (1 << 6) - 1

// Never take more than this fraction of system memory, whatever was asked.
const maxMemoryFraction = 0.25

const minSizePowerOf2 = 10

// 16 bytes (entrySize)
type TableEntry struct {
	key          uint64
	score        int16
	play         uint8
	flagAndDepth uint8
	age          uint8
}

func (t TableEntry) flag() uint8 {
	return t.flagAndDepth >> 6
}

func (t TableEntry) depth() uint8 {
	return t.flagAndDepth & depthMask
}

func (t TableEntry) valid() bool {
	// a table flag is 1, 2, or 3.
	return t.flag() != 0
}

func (t TableEntry) move() board.Square {
	return board.Square(t.play)
}

func newEntry(score int16, flag uint8, depth int, mv board.Square) TableEntry {
	if depth > depthMask {
		depth = depthMask
	}
	return TableEntry{
		score:        score,
		play:         uint8(mv),
		flagAndDepth: flag<<6 | uint8(depth),
	}
}

// TranspositionTable is owned by a single search thread.
type TranspositionTable struct {
	table        []TableEntry
	created      atomic.Uint64
	lookups      atomic.Uint64
	hits         atomic.Uint64
	sizePowerOf2 int
	sizeMask     uint64
	generation   uint8
	// "type 2" collisions: a different position occupies the slot.
	t2collisions atomic.Uint64
}

func (t *TranspositionTable) lookup(zval uint64) TableEntry {
	t.lookups.Add(1)
	idx := zval & t.sizeMask
	entry := t.table[idx]
	if entry.key != zval {
		if entry.valid() {
			t.t2collisions.Add(1)
		}
		return TableEntry{}
	}
	t.hits.Add(1)
	return entry
}

// store prefers deeper entries. A shallower result only replaces an entry
// for the same position or one left over from an earlier search.
func (t *TranspositionTable) store(zval uint64, tentry TableEntry) {
	idx := zval & t.sizeMask
	old := t.table[idx]
	if old.valid() && old.key != zval && old.age == t.generation &&
		old.depth() > tentry.depth() {
		return
	}
	tentry.key = zval
	tentry.age = t.generation
	t.table[idx] = tentry
	t.created.Add(1)
}

// Reset sizes the table to at most megabytes MB and empties it.
func (t *TranspositionTable) Reset(megabytes int) {
	totalMem := memory.TotalMemory()
	desired := float64(megabytes) * 1024 * 1024
	if limit := maxMemoryFraction * float64(totalMem); totalMem > 0 && desired > limit {
		desired = limit
	}
	desiredNElems := desired / entrySize
	// find biggest power of 2 lower than desired.
	t.sizePowerOf2 = int(math.Log2(math.Max(desiredNElems, 1)))
	if t.sizePowerOf2 < minSizePowerOf2 {
		t.sizePowerOf2 = minSizePowerOf2
	}
	numElems := 1 << t.sizePowerOf2
	t.sizeMask = uint64(numElems - 1)
	reset := false
	if t.table != nil && len(t.table) == numElems {
		reset = true
		clear(t.table)
	} else {
		t.table = make([]TableEntry, numElems)
	}

	log.Debug().Int("num-elems", numElems).
		Float64("desired-num-elems", desiredNElems).
		Int("estimated-total-memory-bytes", numElems*entrySize).
		Uint64("total-system-memory-bytes", totalMem).
		Bool("reset", reset).
		Msg("transposition-table-size")
	t.resetStats()
}

// Clear empties the table without reallocating it.
func (t *TranspositionTable) Clear() {
	clear(t.table)
	t.generation = 0
	t.resetStats()
}

// Age marks every current entry as belonging to an older search, so that
// any of them can be replaced.
func (t *TranspositionTable) Age() {
	t.generation++
}

func (t *TranspositionTable) resetStats() {
	t.created.Store(0)
	t.lookups.Store(0)
	t.hits.Store(0)
	t.t2collisions.Store(0)
}

type TTStats struct {
	Created      uint64
	Lookups      uint64
	Hits         uint64
	T2Collisions uint64
}

func (t *TranspositionTable) Stats() TTStats {
	return TTStats{
		Created:      t.created.Load(),
		Lookups:      t.lookups.Load(),
		Hits:         t.hits.Load(),
		T2Collisions: t.t2collisions.Load(),
	}
}
