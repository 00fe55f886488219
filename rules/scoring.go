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
	"fmt"
	"math"

	"github.com/Randomno/jaffarPlus/common"
	"github.com/Randomno/jaffarPlus/errs"
	"github.com/Randomno/jaffarPlus/sim"
)

// MagnetKind selects which scoring contribution a magnet contributes
// (§4.3 "Magnet set"). Every declared magnet has exactly one kind for its
// whole lifetime; only its numeric parameters vary rule to rule.
type MagnetKind int

const (
	// MagnetGeneric attracts a probed property toward Center, scaled by
	// Intensity and bounded to [Min, Max]: the classic "get X closer to
	// value Y" magnet used for position/progress magnets.
	MagnetGeneric MagnetKind = iota
	// MagnetHealth rewards a probed property directly, proportional to
	// Intensity: used for vitality/resource properties where more is
	// simply better.
	MagnetHealth
	// MagnetWeaponMatch pays a flat Reward only when the probed property
	// exactly equals WeaponID, used for "carry the right item" shaping.
	MagnetWeaponMatch
)

// ParseMagnetKind maps a sim.MagnetDeclDoc's string Kind to the typed
// enum, so engine init can build a MagnetLayout straight from a Game's
// declared []sim.MagnetDeclDoc without sim importing this package.
func ParseMagnetKind(s string) (MagnetKind, error) {
	switch s {
	case "Generic":
		return MagnetGeneric, nil
	case "Health":
		return MagnetHealth, nil
	case "WeaponMatch":
		return MagnetWeaponMatch, nil
	default:
		return 0, fmt.Errorf("rules: unknown magnet kind %q", s)
	}
}

// MagnetDecl is one game-declared magnet slot: its name (referenced by
// rule SetMagnet actions), scoring kind, and the property it probes.
type MagnetDecl struct {
	Name  string
	Kind  MagnetKind
	Probe string
}

type magnetEntry struct {
	kind  MagnetKind
	probe sim.PropertyRef
}

// MagnetLayout is the resolved, immutable magnet declaration for one
// game: every magnet name a rule document may reference, bound to its
// scoring kind and probed PropertyRef.
type MagnetLayout struct {
	entries map[string]magnetEntry
	order   []string
}

// NewMagnetLayout resolves decl probes against props and returns the
// layout used by Compile. An unresolvable probe name is a fatal
// configuration error, same as an unresolvable condition property.
func NewMagnetLayout(decls []MagnetDecl, props map[string]sim.PropertyRef) (MagnetLayout, error) {
	l := MagnetLayout{
		entries: make(map[string]magnetEntry, len(decls)),
		order:   make([]string, 0, len(decls)),
	}
	for _, d := range decls {
		ref, ok := props[d.Probe]
		if !ok {
			return MagnetLayout{}, fmt.Errorf("rules: magnet %q: %w %q", d.Name, errs.ErrUnknownProperty, d.Probe)
		}
		l.entries[d.Name] = magnetEntry{kind: d.Kind, probe: ref}
		l.order = append(l.order, d.Name)
	}
	return l, nil
}

// ProbeFor resolves a magnet name to its probed property.
func (l MagnetLayout) ProbeFor(name string) (sim.PropertyRef, bool) {
	e, ok := l.entries[name]
	return e.probe, ok
}

// KindFor returns the scoring kind declared for name.
func (l MagnetLayout) KindFor(name string) MagnetKind {
	return l.entries[name].kind
}

// Names returns every declared magnet name, in declaration order.
func (l MagnetLayout) Names() []string { return l.order }

// MagnetValue is the parameter tuple one SetMagnet action installs for a
// magnet. Only the fields relevant to Kind are meaningful.
type MagnetValue struct {
	Kind MagnetKind

	Intensity float64
	Min       float64
	Max       float64
	Center    float64
	WeaponID  float64
	Reward    float64

	Probe sim.PropertyRef
}

// MagnetState is the set of magnets actually touched by a SetMagnet
// action during one Evaluate call. A magnet never set this step
// contributes nothing: magnets are transient per-step shaping, not
// sticky state (§4.3).
type MagnetState struct {
	values map[string]MagnetValue
}

func newMagnetState(layout MagnetLayout) MagnetState {
	return MagnetState{values: make(map[string]MagnetValue, len(layout.order))}
}

func (ms MagnetState) set(name string, v MagnetValue) {
	ms.values[name] = v
}

// Value returns the active tuple for a magnet, if any rule set it this
// step.
func (ms MagnetState) Value(name string) (MagnetValue, bool) {
	v, ok := ms.values[name]
	return v, ok
}

// Score sums every active magnet's contribution against the live state.
// This is additive to (not a replacement for) a rule's own Reward
// actions: a step's total reward is the rule rewards plus this sum
// (rules.Evaluate adds both).
func Score(state []byte, active MagnetState) float64 {
	var total float64
	for _, v := range active.values {
		switch v.Kind {
		case MagnetGeneric:
			probeVal := sim.ReadTyped(state, v.Probe)
			clamped := common.ClampFloat64(probeVal, v.Min, v.Max)
			total += -v.Intensity * math.Abs(v.Center-clamped)
		case MagnetHealth:
			probeVal := sim.ReadTyped(state, v.Probe)
			total += v.Intensity * probeVal
		case MagnetWeaponMatch:
			probeVal := sim.ReadTyped(state, v.Probe)
			if probeVal == v.WeaponID {
				total += v.Reward
			}
		}
	}
	return total
}
