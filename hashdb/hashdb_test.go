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

package hashdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeIsDeterministicAndRangeSensitive(t *testing.T) {
	a := Compute([]byte{1, 2, 3})
	b := Compute([]byte{1, 2, 3})
	c := Compute([]byte{1, 2, 4})
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestTryInsertReportsNewThenAlreadyPresent(t *testing.T) {
	db, err := New(100, OnFullReject)
	require.NoError(t, err)

	fp := Compute([]byte("hello"))
	require.Equal(t, InsertedNew, db.TryInsert(fp))
	require.Equal(t, AlreadyPresent, db.TryInsert(fp))
	require.Equal(t, 1, db.Len())
}

func TestTryInsertRejectsOnceFullUnderRejectPolicy(t *testing.T) {
	db, err := New(2, OnFullReject)
	require.NoError(t, err)

	require.Equal(t, InsertedNew, db.TryInsert(Compute([]byte{1})))
	require.Equal(t, InsertedNew, db.TryInsert(Compute([]byte{2})))
	require.Equal(t, Full, db.TryInsert(Compute([]byte{3})))
}

func TestNewWithZeroMaxEntriesDisablesDedupWithoutError(t *testing.T) {
	db, err := New(0, OnFullReject)
	require.NoError(t, err)

	fp := Compute([]byte("repeat"))
	require.Equal(t, InsertedNew, db.TryInsert(fp))
	require.Equal(t, InsertedNew, db.TryInsert(fp))
	require.Equal(t, 0, db.Len())
}

func TestClearGenerationFreesCapacityUnderEvictPolicy(t *testing.T) {
	db, err := New(2, OnFullEvictGeneration)
	require.NoError(t, err)

	require.Equal(t, InsertedNew, db.TryInsert(Compute([]byte{1})))
	require.Equal(t, InsertedNew, db.TryInsert(Compute([]byte{2})))

	// Full: the evict-generation policy clears the current generation
	// itself before accepting the third fingerprint.
	require.Equal(t, InsertedNew, db.TryInsert(Compute([]byte{3})))
	require.LessOrEqual(t, db.Len(), 2)

	// The fingerprints cleared in the prior generation are novel again.
	require.Equal(t, InsertedNew, db.TryInsert(Compute([]byte{1})))
}
