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

// Package hashdb implements the concurrent, bounded fingerprint dedup
// set (§4.2): a sharded bloom filter fronting a precise, bounded LRU
// membership map. A bloom miss skips the precise lookup, but every
// insert still takes the single lock guarding the precise map.
package hashdb

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/holiman/bloomfilter/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// OnFullPolicy selects what TryInsert does once the precise table is at
// capacity (§4.2 policy (a)/(b)).
type OnFullPolicy int

const (
	// OnFullReject is policy (a): once full, every insert of a novel
	// fingerprint reports Full; nothing is added while full, so only an
	// explicit ClearGeneration call frees room again.
	OnFullReject OnFullPolicy = iota
	// OnFullEvictGeneration is policy (b): TryInsert calls ClearGeneration
	// itself before accepting a novel fingerprint once full.
	OnFullEvictGeneration
)

// Result is the outcome of TryInsert.
type Result int

const (
	InsertedNew Result = iota
	AlreadyPresent
	Full
)

type entry struct {
	generation uint64
}

// HashDB is safe for concurrent use by any number of worker goroutines.
type HashDB struct {
	maxEntries int
	onFull     OnFullPolicy
	// disabled mode (maxEntries == 0) runs with no dedup at all: every
	// TryInsert reports InsertedNew, matching the "uncontrolled
	// expansion, no crash" boundary behavior of a zero-sized hash table.
	disabled bool

	shardCount int
	perShard   uint64
	shardMu    []sync.Mutex
	shards     []*bloomfilter.Filter

	preciseMu sync.Mutex
	precise   *lru.Cache[Fingerprint, entry]

	generation atomic.Uint64
}

// New builds a HashDB bounded to maxEntries precise fingerprints.
// maxEntries == 0 disables dedup entirely: TryInsert never rejects or
// recognizes a repeat, and the frontier is free to expand unbounded by
// fingerprint (still bounded by StateDB's own memory cap).
func New(maxEntries int, onFull OnFullPolicy) (*HashDB, error) {
	if maxEntries < 0 {
		return nil, fmt.Errorf("hashdb: maxEntries must not be negative, got %d", maxEntries)
	}
	if maxEntries == 0 {
		return &HashDB{disabled: true}, nil
	}

	shardCount := runtime.GOMAXPROCS(0)
	if shardCount < 1 {
		shardCount = 1
	}
	perShard := uint64(maxEntries)/uint64(shardCount) + 1

	shards := make([]*bloomfilter.Filter, shardCount)
	for i := range shards {
		f, err := bloomfilter.NewOptimal(perShard, 0.01)
		if err != nil {
			return nil, fmt.Errorf("hashdb: allocate bloom shard %d: %w", i, err)
		}
		shards[i] = f
	}

	precise, err := lru.New[Fingerprint, entry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("hashdb: allocate precise table: %w", err)
	}

	return &HashDB{
		maxEntries: maxEntries,
		onFull:     onFull,
		shardCount: shardCount,
		perShard:   perShard,
		shardMu:    make([]sync.Mutex, shardCount),
		shards:     shards,
		precise:    precise,
	}, nil
}

// TryInsert is the dedup gate the engine driver calls before a new state
// enters the next frontier (§3 invariant: "fingerprint inserted before
// the state enters the next frontier"). It never blocks on another
// shard's lock.
func (h *HashDB) TryInsert(fp Fingerprint) Result {
	if h.disabled {
		return InsertedNew
	}

	idx := fp.shardIndex(h.shardCount)
	key := fp.shardKey()

	h.shardMu[idx].Lock()
	maybePresent := h.shards[idx].Contains(key)
	if !maybePresent {
		h.shards[idx].Add(key)
	}
	h.shardMu[idx].Unlock()

	h.preciseMu.Lock()
	defer h.preciseMu.Unlock()

	if maybePresent {
		if _, ok := h.precise.Get(fp); ok {
			return AlreadyPresent
		}
		// Bloom false positive: fall through to the precise insert below.
	}

	if h.precise.Len() >= h.maxEntries {
		switch h.onFull {
		case OnFullEvictGeneration:
			h.clearGenerationLocked()
		default:
			return Full
		}
	}

	h.precise.Add(fp, entry{generation: h.generation.Load()})
	return InsertedNew
}

// ClearGeneration evicts every precise entry from the current generation
// and resets every bloom shard, then advances the generation counter
// (§4.2 policy (b)). Entries inserted after this call belong to the new
// generation.
func (h *HashDB) ClearGeneration() {
	if h.disabled {
		return
	}
	h.preciseMu.Lock()
	defer h.preciseMu.Unlock()
	h.clearGenerationLocked()
}

func (h *HashDB) clearGenerationLocked() {
	gen := h.generation.Load()
	for _, key := range h.precise.Keys() {
		v, ok := h.precise.Peek(key)
		if ok && v.generation <= gen {
			h.precise.Remove(key)
		}
	}
	for i := range h.shards {
		fresh, err := bloomfilter.NewOptimal(h.perShard, 0.01)
		if err != nil {
			// perShard/error-rate are fixed at construction and already
			// validated in New, so this can only fail from exhausted
			// memory — nothing this call can recover from cleanly.
			panic(fmt.Sprintf("hashdb: reallocate bloom shard %d: %v", i, err))
		}
		h.shardMu[i].Lock()
		h.shards[i] = fresh
		h.shardMu[i].Unlock()
	}
	h.generation.Add(1)
}

// Len reports the current precise entry count.
func (h *HashDB) Len() int {
	if h.disabled {
		return 0
	}
	h.preciseMu.Lock()
	defer h.preciseMu.Unlock()
	return h.precise.Len()
}
