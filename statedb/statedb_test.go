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

package statedb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Randomno/jaffarPlus/rules"
)

func newTestDB(t *testing.T) *StateDB {
	t.Helper()
	cfg := Config{StateSize: 4, HistoryCap: 16, RuleCount: 8, MemoryCapBytes: 4096}
	db, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func TestNewEnqueuesEverySlotFree(t *testing.T) {
	db := newTestDB(t)
	require.Equal(t, db.Capacity(), len(db.free))
	require.Equal(t, 0, db.CountCurrent())
	require.Equal(t, 0, db.CountNext())
}

func TestGetFreeStealsFromCurrentTailWhenFreeExhausted(t *testing.T) {
	db := newTestDB(t)

	// Drain the free queue entirely.
	var taken []Ref
	for {
		ref, ok := db.GetFree()
		if !ok {
			break
		}
		taken = append(taken, ref)
	}
	require.Equal(t, db.Capacity(), len(taken))

	// Push every taken slot to build a full current frontier via PushNext+Swap.
	for _, ref := range taken {
		db.PutHeader(ref, Header{Reward: float64(ref), RuleStatus: rules.NewRulesStatus(8)})
		db.PushNext(ref, float64(ref))
	}
	require.NoError(t, db.SwapFrontiers())
	require.Equal(t, db.Capacity(), db.CountCurrent())

	// Free queue is empty; GetFree must steal the lowest-reward
	// (tail) slot of current rather than reporting exhaustion.
	stolen, ok := db.GetFree()
	require.True(t, ok)
	require.Equal(t, db.Capacity()-1, db.CountCurrent())
	stolenHeader := db.GetHeader(stolen)
	require.Equal(t, 0.0, stolenHeader.Reward) // lowest reward was pushed for ref 0
}

func TestSwapFrontiersOrdersByDescendingReward(t *testing.T) {
	db := newTestDB(t)

	refs := make([]Ref, 0, 3)
	for i := 0; i < 3; i++ {
		ref, ok := db.GetFree()
		require.True(t, ok)
		refs = append(refs, ref)
	}

	db.PushNext(refs[0], 1.0)
	db.PushNext(refs[1], 3.0)
	db.PushNext(refs[2], 2.0)

	require.NoError(t, db.SwapFrontiers())

	first, ok := db.PopCurrent()
	require.True(t, ok)
	require.Equal(t, refs[1], first) // highest reward popped first

	second, ok := db.PopCurrent()
	require.True(t, ok)
	require.Equal(t, refs[2], second)

	third, ok := db.PopCurrent()
	require.True(t, ok)
	require.Equal(t, refs[0], third)

	_, ok = db.PopCurrent()
	require.False(t, ok)
}

func TestSwapFrontiersRejectsNonEmptyCurrent(t *testing.T) {
	db := newTestDB(t)
	ref, ok := db.GetFree()
	require.True(t, ok)
	db.PushNext(ref, 1.0)
	require.NoError(t, db.SwapFrontiers())

	// current now has one unexpanded entry; swapping again must fail.
	err := db.SwapFrontiers()
	require.Error(t, err)
}

func TestHeaderRoundTripsThroughSlot(t *testing.T) {
	db := newTestDB(t)
	ref, ok := db.GetFree()
	require.True(t, ok)

	status := rules.NewRulesStatus(8)
	h := Header{Depth: 42, Reward: 3.5, LastInput: 7, RuleStatus: status}
	db.PutHeader(ref, h)

	got := db.GetHeader(ref)
	require.Equal(t, uint32(42), got.Depth)
	require.Equal(t, 3.5, got.Reward)
	require.Equal(t, uint8(7), got.LastInput)
}

func TestBlobViewIsExactlyStateSize(t *testing.T) {
	db := newTestDB(t)
	ref, ok := db.GetFree()
	require.True(t, ok)
	require.Len(t, db.Blob(ref), 4)
	copy(db.Blob(ref), []byte{1, 2, 3, 4})
	require.Equal(t, []byte{1, 2, 3, 4}, db.Blob(ref))
}
