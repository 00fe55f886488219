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

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Randomno/jaffarPlus/hashdb"
	"github.com/Randomno/jaffarPlus/internal/toysim"
	"github.com/Randomno/jaffarPlus/rules"
	"github.com/Randomno/jaffarPlus/runner"
)

func goalAndHealthDocs(goal float64) []rules.RuleDoc {
	return []rules.RuleDoc{
		{
			Label:      "reached goal",
			Conditions: []rules.ConditionDoc{{Property: "posX", Op: ">=", Immediate: goal}},
			Actions:    []rules.ActionDoc{{Type: "Reward", Reward: 10}, {Type: "Win"}},
		},
		{
			Label:      "out of health",
			Conditions: []rules.ConditionDoc{{Property: "health", Op: "<=", Immediate: 0}},
			Actions:    []rules.ActionDoc{{Type: "Fail"}},
		},
	}
}

func toyFactory(startPos uint8, goal float64) RunnerFactory {
	return func() (*runner.Runner, error) {
		inst := toysim.NewInstance(startPos)
		game := toysim.Game()
		rs, err := rules.CompileForGame(goalAndHealthDocs(goal), game)
		if err != nil {
			return nil, err
		}
		return runner.New(inst.Simulator(), game, rs)
	}
}

func smallConfig() Config {
	return Config{
		MemoryCapBytes: 200_000,
		HistoryCap:     64,
		HashMaxEntries: 10_000,
		HashOnFull:     hashdb.OnFullReject,
		Workers:        2,
		StopOnWin:      true,
	}
}

func TestRunFindsWinningPathOnLinearGoal(t *testing.T) {
	e, err := New(smallConfig(), toyFactory(0, 20), nil, nil)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Seed([]byte{0, 100, 0}, rules.NewRulesStatus(2)))

	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReasonStopOnWin, result.Reason)
	require.NotNil(t, result.Winner)
	require.GreaterOrEqual(t, len(result.Winner.History), 20)
}

func TestConsiderWinnerPrefersFewerStepsOverHigherReward(t *testing.T) {
	e, err := New(smallConfig(), toyFactory(0, 20), nil, nil)
	require.NoError(t, err)
	defer e.Close()

	e.considerWinner(5, 100, []byte{0, 1, 2, 3, 4})
	e.considerWinner(3, 1, []byte{0, 1, 2})
	require.Equal(t, uint32(3), e.best.Step)
	require.Equal(t, 1.0, e.best.Reward)

	e.considerWinner(3, 50, []byte{5, 6, 7})
	require.Equal(t, uint32(3), e.best.Step)
	require.Equal(t, 50.0, e.best.Reward)

	e.considerWinner(10, 1000, []byte{0})
	require.Equal(t, uint32(3), e.best.Step)
	require.Equal(t, 50.0, e.best.Reward)
}

func TestRunReportsFrontierExhaustedInsideDeadEnd(t *testing.T) {
	cfg := smallConfig()
	cfg.StopOnWin = false

	e, err := New(cfg, toyFactory(toysim.TrapLo+1, 250), nil, nil)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Seed([]byte{toysim.TrapLo + 1, 100, 0}, rules.NewRulesStatus(2)))

	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReasonFrontierExhausted, result.Reason)
	require.Nil(t, result.Winner)
}

func TestRunStopsAtMaxSteps(t *testing.T) {
	cfg := smallConfig()
	cfg.StopOnWin = false
	maxSteps := uint64(3)
	cfg.MaxSteps = &maxSteps

	e, err := New(cfg, toyFactory(0, 200), nil, nil)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Seed([]byte{0, 100, 0}, rules.NewRulesStatus(2)))

	result, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReasonMaxSteps, result.Reason)
	require.Equal(t, maxSteps, result.Steps)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	cfg := smallConfig()
	cfg.StopOnWin = false

	e, err := New(cfg, toyFactory(0, 200), nil, nil)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Seed([]byte{0, 100, 0}, rules.NewRulesStatus(2)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, ReasonCancelled, result.Reason)
}

func TestRunDedupsRepeatedPositions(t *testing.T) {
	e, err := New(smallConfig(), toyFactory(0, 10), nil, nil)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Seed([]byte{0, 100, 0}, rules.NewRulesStatus(2)))

	_, err = e.Run(context.Background())
	require.NoError(t, err)
	// Left/Right/Stay from a narrow corridor revisit the same (pos, health)
	// pairs many times over; the precise table should stay far smaller than
	// the raw number of edges explored.
	require.Less(t, e.hdb.Len(), 200)
}

func TestRunCompletesUnderTinyMemoryCap(t *testing.T) {
	cfg := smallConfig()
	cfg.StopOnWin = false
	cfg.MemoryCapBytes = 400 // 88-byte slots: only four of them

	e, err := New(cfg, toyFactory(0, 200), nil, nil)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Seed([]byte{0, 100, 0}, rules.NewRulesStatus(2)))

	maxSteps := uint64(5)
	e.cfg.MaxSteps = &maxSteps

	_, err = e.Run(context.Background())
	require.NoError(t, err)
}

func TestCheckpointIfDueWritesFileOnceIntervalElapses(t *testing.T) {
	dir := t.TempDir()
	cfg := smallConfig()
	cfg.StopOnWin = false
	cfg.CheckpointPath = dir + "/checkpoint.bin"
	cfg.CheckpointInterval = time.Nanosecond

	e, err := New(cfg, toyFactory(0, 10), nil, nil)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Seed([]byte{0, 100, 0}, rules.NewRulesStatus(2)))

	e.lastCheckpoint = time.Now().Add(-time.Hour)
	_, err = e.Run(context.Background())
	require.NoError(t, err)
	require.FileExists(t, cfg.CheckpointPath)
}
