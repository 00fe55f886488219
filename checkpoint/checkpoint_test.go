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

package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.ckpt")
	cp := Checkpoint{Step: 12345, BestReward: 9.5, BestHistory: []byte{0, 1, 2, 1, 0}}

	require.NoError(t, Write(path, cp))

	got, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, cp, got)
}

func TestReadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.ckpt")
	require.NoError(t, os.WriteFile(path, []byte("not a checkpoint file at all...."), 0o644))

	_, err := Read(path)
	require.Error(t, err)
}
