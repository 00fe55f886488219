// Copyright 2026 The jaffarPlus Authors
// This file is part of jaffarPlus.
//
// jaffarPlus is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// jaffarPlus is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with jaffarPlus. If not, see <http://www.gnu.org/licenses/>.

// Package statedb implements the bounded, fixed-size state slot pool:
// a page-aligned mmap'd arena divided into N equal slots, a free list,
// and the current/next frontier queues the engine driver swaps between
// steps. Every slot is exactly the same size for the lifetime of a
// StateDB and slot references are stable (§4.1).
package statedb

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/google/btree"

	"github.com/Randomno/jaffarPlus/rules"
)

// Ref is a stable reference to one slot. It never changes meaning once
// issued; only the queue a slot currently belongs to changes.
type Ref int32

const headerFixedSize = 4 + 8 + 1 // depth uint32, reward float64, lastInput uint8

// Config sizes a StateDB.
type Config struct {
	// StateSize is the fixed serialized blob size reported once by the
	// Runner at startup.
	StateSize int
	// HistoryCap bounds the packed input-id history kept inline in every
	// slot (representation (b) of path reconstruction, SPEC_FULL.md §3).
	HistoryCap int
	// RuleCount sizes the per-slot RulesStatus bitset.
	RuleCount int
	// MemoryCapBytes is the total arena budget; N = MemoryCapBytes / slotSize.
	MemoryCapBytes int
}

func (c Config) slotSize() int {
	ruleBytes := ((c.RuleCount + 63) / 64) * 8
	return c.StateSize + c.HistoryCap + headerFixedSize + ruleBytes
}

// StateDB is the bounded slot pool described by §4.1. All exported
// methods are safe for concurrent use by any number of workers.
type StateDB struct {
	arena *arena

	stateSize  int
	historyCap int
	ruleCount  int
	slotSize   int
	n          int

	mu      sync.Mutex
	free    []Ref
	current []Ref // priority order: front = highest reward, back = lowest
	curHead int
	next    *btree.BTreeG[frontierItem]
	nextSeq uint64 // tie-break for equal-reward insertion order into next
}

type frontierItem struct {
	reward float64
	seq    uint64
	ref    Ref
}

func frontierLess(a, b frontierItem) bool {
	if a.reward != b.reward {
		return a.reward < b.reward
	}
	return a.seq < b.seq
}

// New allocates the arena, first-touches it, and enqueues every slot
// into the free queue (§4.1 "init").
func New(cfg Config) (*StateDB, error) {
	if cfg.StateSize <= 0 {
		return nil, fmt.Errorf("statedb: StateSize must be positive")
	}
	slotSize := cfg.slotSize()
	n := cfg.MemoryCapBytes / slotSize
	if n < 1 {
		return nil, fmt.Errorf("statedb: memory cap %d too small for slot size %d", cfg.MemoryCapBytes, slotSize)
	}

	ar, err := newArena(n * slotSize)
	if err != nil {
		return nil, err
	}

	db := &StateDB{
		arena:      ar,
		stateSize:  cfg.StateSize,
		historyCap: cfg.HistoryCap,
		ruleCount:  cfg.RuleCount,
		slotSize:   slotSize,
		n:          n,
		next:       btree.NewG(32, frontierLess),
	}
	db.free = make([]Ref, n)
	for i := 0; i < n; i++ {
		db.free[i] = Ref(i)
	}
	return db, nil
}

// Close releases the arena's backing resources.
func (db *StateDB) Close() error { return db.arena.close() }

// SlotSize returns the fixed per-slot byte size (blob + history + header).
func (db *StateDB) SlotSize() int { return db.slotSize }

// Capacity returns N, the total slot count.
func (db *StateDB) Capacity() int { return db.n }

// View returns the live, mutable byte slice for ref. Callers must not
// retain it past the point the slot is returned/recycled.
func (db *StateDB) View(ref Ref) []byte {
	return db.arena.slot(int(ref), db.slotSize)
}

// Blob returns the state-blob portion of a slot's view.
func (db *StateDB) Blob(ref Ref) []byte {
	return db.View(ref)[:db.stateSize]
}

// History returns the packed input-id history portion, truncated to depth.
func (db *StateDB) History(ref Ref, depth uint32) []byte {
	start := db.stateSize
	if int(depth) > db.historyCap {
		depth = uint32(db.historyCap)
	}
	return db.View(ref)[start : start+int(depth)]
}

// PutHistory writes hist into ref's packed history region. hist longer
// than HistoryCap is a configuration error (§3's StepRecord note: depth
// beyond the cap is caught, not silently truncated).
func (db *StateDB) PutHistory(ref Ref, hist []byte) error {
	if len(hist) > db.historyCap {
		return fmt.Errorf("statedb: history length %d exceeds configured cap %d", len(hist), db.historyCap)
	}
	copy(db.View(ref)[db.stateSize:db.stateSize+len(hist)], hist)
	return nil
}

func (db *StateDB) headerOffset() int { return db.stateSize + db.historyCap }

// Header is the decoded fixed-size step-record header of one slot
// (§3 "Step record"): depth, reward, last input and rule status.
type Header struct {
	Depth      uint32
	Reward     float64
	LastInput  uint8
	RuleStatus rules.RulesStatus
}

// GetHeader decodes the header stored in ref's slot.
func (db *StateDB) GetHeader(ref Ref) Header {
	buf := db.View(ref)[db.headerOffset():]
	depth := binary.LittleEndian.Uint32(buf[0:4])
	reward := math.Float64frombits(binary.LittleEndian.Uint64(buf[4:12]))
	lastInput := buf[12]
	statusBytes := buf[13:]
	return Header{
		Depth:      depth,
		Reward:     reward,
		LastInput:  lastInput,
		RuleStatus: rules.RulesStatusFromBytes(statusBytes, db.ruleCount),
	}
}

// PutHeader encodes h into ref's slot.
func (db *StateDB) PutHeader(ref Ref, h Header) {
	buf := db.View(ref)[db.headerOffset():]
	binary.LittleEndian.PutUint32(buf[0:4], h.Depth)
	binary.LittleEndian.PutUint64(buf[4:12], math.Float64bits(h.Reward))
	buf[12] = h.LastInput
	copy(buf[13:], h.RuleStatus.Bytes())
}

// GetFree returns a free slot, stealing from the tail (lowest priority)
// of the current frontier if the free queue is empty, and ok=false if
// both are exhausted (§4.1 "get_free").
func (db *StateDB) GetFree() (ref Ref, ok bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if n := len(db.free); n > 0 {
		ref = db.free[n-1]
		db.free = db.free[:n-1]
		return ref, true
	}
	if db.curHead < len(db.current) {
		last := len(db.current) - 1
		ref = db.current[last]
		db.current = db.current[:last]
		return ref, true
	}
	return 0, false
}

// ReturnFree unconditionally returns ref to the free queue.
func (db *StateDB) ReturnFree(ref Ref) {
	db.mu.Lock()
	db.free = append(db.free, ref)
	db.mu.Unlock()
}

// PushNext appends ref to the next frontier, keyed by its current
// reward so the frontier is born in priority order (§4.6's swap
// contract: "next frontier kept in priority order at swap time").
func (db *StateDB) PushNext(ref Ref, reward float64) {
	db.mu.Lock()
	db.next.ReplaceOrInsert(frontierItem{reward: reward, seq: db.nextSeq, ref: ref})
	db.nextSeq++
	db.mu.Unlock()
}

// PopCurrent takes the highest-priority (front) slot of the current
// frontier, ok=false when empty.
func (db *StateDB) PopCurrent() (ref Ref, ok bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.curHead >= len(db.current) {
		return 0, false
	}
	ref = db.current[db.curHead]
	db.curHead++
	return ref, true
}

// CountCurrent reports the number of slots remaining in the current
// frontier.
func (db *StateDB) CountCurrent() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.current) - db.curHead
}

// CountNext reports the number of slots queued in the next frontier.
func (db *StateDB) CountNext() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.next.Len()
}

// SwapFrontiers promotes the next frontier to current, highest reward
// first, and resets next to empty. The prior current frontier must
// already be drained; it is a programmer error otherwise (§4.1).
func (db *StateDB) SwapFrontiers() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.curHead < len(db.current) {
		return fmt.Errorf("statedb: swap_frontiers called with %d unexpanded states remaining", len(db.current)-db.curHead)
	}

	ordered := make([]Ref, 0, db.next.Len())
	db.next.Descend(func(it frontierItem) bool {
		ordered = append(ordered, it.ref)
		return true
	})
	db.next = btree.NewG(32, frontierLess)
	db.nextSeq = 0
	db.current = ordered
	db.curHead = 0
	return nil
}
