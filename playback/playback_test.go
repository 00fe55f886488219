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

package playback

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Randomno/jaffarPlus/internal/toysim"
	"github.com/Randomno/jaffarPlus/rules"
	"github.com/Randomno/jaffarPlus/runner"
	"github.com/Randomno/jaffarPlus/sim"
)

func newTestPlayback(t *testing.T) *Playback {
	t.Helper()
	inst := toysim.NewInstance(0)
	game := toysim.Game()
	docs := []rules.RuleDoc{
		{
			Label:      "reached goal",
			Conditions: []rules.ConditionDoc{{Property: "posX", Op: ">=", Immediate: 5}},
			Actions:    []rules.ActionDoc{{Type: "Win"}},
		},
	}
	rs, err := rules.CompileForGame(docs, game)
	require.NoError(t, err)

	r, err := runner.New(inst.Simulator(), game, rs)
	require.NoError(t, err)
	return NewPlayback(r)
}

func TestStepAppendsToTraceAndAdvancesPosition(t *testing.T) {
	p := newTestPlayback(t)

	snap, err := p.Step(toysim.InputRight)
	require.NoError(t, err)
	require.Equal(t, uint8(1), snap.Blob[0])
	require.Equal(t, 1, snap.Depth)
	require.Len(t, p.Trace(), 1)
}

func TestReplayStepsThroughEveryInputInOrder(t *testing.T) {
	p := newTestPlayback(t)

	inputs := []sim.InputID{toysim.InputRight, toysim.InputRight, toysim.InputRight, toysim.InputRight, toysim.InputRight}
	require.NoError(t, p.Replay(inputs))

	trace := p.Trace()
	require.Len(t, trace, 5)
	require.Equal(t, uint8(5), trace[4].Blob[0])
	require.True(t, trace[4].Result.Win)
}

func TestSeekReturnsRecordedSnapshotWithoutRerunningSimulator(t *testing.T) {
	p := newTestPlayback(t)
	require.NoError(t, p.Replay([]sim.InputID{toysim.InputRight, toysim.InputRight}))

	snap, err := p.Seek(0)
	require.NoError(t, err)
	require.Equal(t, uint8(1), snap.Blob[0])

	_, err = p.Seek(5)
	require.Error(t, err)
}

func TestReplayStopsAtFirstIllegalAdvance(t *testing.T) {
	p := newTestPlayback(t)
	err := p.Replay([]sim.InputID{toysim.InputLeft})
	require.Error(t, err)
	require.Empty(t, p.Trace())
}
