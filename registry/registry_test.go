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

package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToySimulatorAndGameAreRegisteredByDefault(t *testing.T) {
	s, err := NewSimulator("toy", nil)
	require.NoError(t, err)
	require.NotNil(t, s)

	g, err := NewGame("toy", nil)
	require.NoError(t, err)
	require.NotNil(t, g)
}

func TestUnknownNameListsKnownAlternatives(t *testing.T) {
	_, err := NewSimulator("does-not-exist", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "toy")
}
