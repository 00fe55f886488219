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

package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Randomno/jaffarPlus/internal/toysim"
	"github.com/Randomno/jaffarPlus/sim"
)

func testProps() map[string]sim.PropertyRef {
	return map[string]sim.PropertyRef{
		"posX":   {Name: "posX", Offset: 0, Type: sim.TypeUint8},
		"health": {Name: "health", Offset: 1, Type: sim.TypeUint8},
	}
}

func TestCompileResolvesConditionsAndDetectsUnknownProperty(t *testing.T) {
	docs := []RuleDoc{
		{
			Label: "reached goal",
			Conditions: []ConditionDoc{
				{Property: "posX", Op: ">=", Immediate: 200},
			},
			Actions: []ActionDoc{{Type: "Win"}},
		},
	}
	set, err := Compile(docs, testProps(), MagnetLayout{})
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())

	_, err = Compile([]RuleDoc{{
		Label:      "bad",
		Conditions: []ConditionDoc{{Property: "doesNotExist", Op: "==", Immediate: 0}},
	}}, testProps(), MagnetLayout{})
	require.Error(t, err)
}

func TestCompileRejectsImmediateOutOfRangeForPropertyType(t *testing.T) {
	_, err := Compile([]RuleDoc{{
		Label:      "bad",
		Conditions: []ConditionDoc{{Property: "posX", Op: ">=", Immediate: 300}},
		Actions:    []ActionDoc{{Type: "Win"}},
	}}, testProps(), MagnetLayout{})
	require.Error(t, err)

	_, err = Compile([]RuleDoc{{
		Label:      "ok",
		Conditions: []ConditionDoc{{Property: "posX", Op: ">=", Immediate: 255}},
		Actions:    []ActionDoc{{Type: "Win"}},
	}}, testProps(), MagnetLayout{})
	require.NoError(t, err)
}

func TestCompileRejectsDuplicateLabels(t *testing.T) {
	docs := []RuleDoc{
		{Label: "a", Actions: []ActionDoc{{Type: "Win"}}},
		{Label: "a", Actions: []ActionDoc{{Type: "Fail"}}},
	}
	_, err := Compile(docs, testProps(), MagnetLayout{})
	require.Error(t, err)
}

func TestCompileRejectsSatisfiesCycle(t *testing.T) {
	docs := []RuleDoc{
		{Label: "a", Actions: []ActionDoc{{Type: "Satisfy", SatisfiesLabel: "b"}}},
		{Label: "b", Actions: []ActionDoc{{Type: "Satisfy", SatisfiesLabel: "a"}}},
	}
	_, err := Compile(docs, testProps(), MagnetLayout{})
	require.Error(t, err)
}

func TestEvaluateCascadesSatisfiesWithoutReentry(t *testing.T) {
	docs := []RuleDoc{
		{
			Label: "root",
			Conditions: []ConditionDoc{
				{Property: "posX", Op: ">=", Immediate: 10},
			},
			Actions: []ActionDoc{
				{Type: "Satisfy", SatisfiesLabel: "sub"},
				{Type: "Reward", Reward: 1},
			},
		},
		{
			Label:   "sub",
			Actions: []ActionDoc{{Type: "Reward", Reward: 5}},
		},
	}
	set, err := Compile(docs, testProps(), MagnetLayout{})
	require.NoError(t, err)

	status := NewRulesStatus(set.Len())
	state := []byte{10, 0}

	status, result, _ := set.Evaluate(state, status)
	require.True(t, status.Test(0))
	require.True(t, status.Test(1))
	require.Equal(t, 6.0, result.Reward)

	// A second evaluation with both bits already set tests no conditions
	// (Evaluate only sweeps unsatisfied rules for that), but it still
	// applies the actions of every satisfied rule, so the per-step reward
	// is 1+5 again rather than accumulating.
	status2, result2, _ := set.Evaluate(state, status)
	require.True(t, status2.Test(0))
	require.Equal(t, 6.0, result2.Reward)
}

func TestClosureFindsTransitiveSatisfies(t *testing.T) {
	docs := []RuleDoc{
		{Label: "a", Actions: []ActionDoc{{Type: "Satisfy", SatisfiesLabel: "b"}}},
		{Label: "b", Actions: []ActionDoc{{Type: "Satisfy", SatisfiesLabel: "c"}}},
		{Label: "c", Actions: []ActionDoc{{Type: "Win"}}},
	}
	set, err := Compile(docs, testProps(), MagnetLayout{})
	require.NoError(t, err)

	bm := closure(set.rules, 0)
	require.Equal(t, uint64(2), bm.GetCardinality())
	require.True(t, bm.Contains(1))
	require.True(t, bm.Contains(2))
	require.False(t, bm.Contains(0))
}

func TestScoreGenericMagnetRewardsProximityToCenter(t *testing.T) {
	layout, err := NewMagnetLayout([]MagnetDecl{
		{Name: "approach", Kind: MagnetGeneric, Probe: "posX"},
	}, testProps())
	require.NoError(t, err)

	docs := []RuleDoc{
		{
			Label: "guide",
			Actions: []ActionDoc{
				{Type: "SetMagnet", Magnet: "approach", Intensity: 1, Min: 0, Max: 100, Center: 50},
			},
		},
	}
	set, err := Compile(docs, testProps(), layout)
	require.NoError(t, err)

	near := []byte{50, 0}
	far := []byte{0, 0}

	_, nearResult, _ := set.Evaluate(near, NewRulesStatus(set.Len()))
	_, farResult, _ := set.Evaluate(far, NewRulesStatus(set.Len()))
	require.Greater(t, nearResult.Reward, farResult.Reward)
}

func TestScoreGenericMagnetBreaksTiesWithinClampedRange(t *testing.T) {
	layout, err := NewMagnetLayout([]MagnetDecl{
		{Name: "approach", Kind: MagnetGeneric, Probe: "posX"},
	}, testProps())
	require.NoError(t, err)

	docs := []RuleDoc{
		{
			Label: "guide",
			Actions: []ActionDoc{
				{Type: "SetMagnet", Magnet: "approach", Intensity: 1, Min: 8, Max: 12, Center: 10},
			},
		},
	}
	set, err := Compile(docs, testProps(), layout)
	require.NoError(t, err)

	onCenter := []byte{10, 0}
	oneOff := []byte{9, 0}

	_, centerResult, _ := set.Evaluate(onCenter, NewRulesStatus(set.Len()))
	_, offResult, _ := set.Evaluate(oneOff, NewRulesStatus(set.Len()))
	require.Equal(t, 0.0, centerResult.Reward)
	require.Equal(t, -1.0, offResult.Reward)
	require.Greater(t, centerResult.Reward, offResult.Reward)
}

func TestCompileForGameResolvesDeclaredMagnets(t *testing.T) {
	game := toysim.Game()
	docs := []RuleDoc{
		{
			Label: "guide",
			Actions: []ActionDoc{
				{Type: "SetMagnet", Magnet: "approach", Intensity: 1, Min: 0, Max: 100, Center: 50},
			},
		},
	}
	set, err := CompileForGame(docs, game)
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())

	status, err := InitialStatusForGame(set, game)
	require.NoError(t, err)
	require.False(t, status.Test(0))
}

func TestRulesStatusRoundTripsThroughBytes(t *testing.T) {
	rs := NewRulesStatus(70)
	rs.Set(0)
	rs.Set(69)

	buf := rs.Bytes()
	decoded := RulesStatusFromBytes(buf, 70)
	require.True(t, decoded.Test(0))
	require.True(t, decoded.Test(69))
	require.False(t, decoded.Test(1))
}
