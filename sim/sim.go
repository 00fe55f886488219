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

// Package sim declares the two external collaborator capabilities the
// search engine depends on: Simulator (a black-box, save/restore,
// single-step-advance backend) and Game (the per-title rule/property
// table and input pruning policy). Neither capability is implemented
// here — concrete backends register themselves in the registry package.
package sim

import (
	"io"
	"math"
)

// PropertyType is the datatype of a typed scalar read through a
// PropertyRef. The rule engine's Condition.Op operands are validated
// against this at compile time (see rules.Compile).
type PropertyType int

const (
	TypeUint8 PropertyType = iota
	TypeUint16
	TypeInt8
	TypeInt16
	TypeFloat32
)

// PropertyRef is a (offset, width, signedness/type) descriptor for one
// named memory cell in a Simulator's state buffer. It replaces the raw
// typed pointers a C++ implementation would hold: the rule engine never
// sees an address, only this sum-type "property view" plus the typed
// read primitive below.
type PropertyRef struct {
	Name   string
	Offset int
	Type   PropertyType
}

// ReadTyped reads the scalar at ref out of a live (deserialized) Simulator
// state buffer and returns it widened to float64, which is sufficient
// precision for every PropertyType this engine supports and lets the rule
// engine and scoring formula share one arithmetic type.
func ReadTyped(buf []byte, ref PropertyRef) float64 {
	switch ref.Type {
	case TypeUint8:
		return float64(buf[ref.Offset])
	case TypeUint16:
		return float64(uint16(buf[ref.Offset]) | uint16(buf[ref.Offset+1])<<8)
	case TypeInt8:
		return float64(int8(buf[ref.Offset]))
	case TypeInt16:
		return float64(int16(uint16(buf[ref.Offset]) | uint16(buf[ref.Offset+1])<<8))
	case TypeFloat32:
		bits := uint32(buf[ref.Offset]) | uint32(buf[ref.Offset+1])<<8 | uint32(buf[ref.Offset+2])<<16 | uint32(buf[ref.Offset+3])<<24
		return float64(math.Float32frombits(bits))
	default:
		panic("sim: unknown PropertyType")
	}
}

// InputID is a dense, compact identifier for one entry in a Game's legal
// input alphabet, assigned in declaration order (see InputTable).
type InputID uint8

// InputTable maps input strings ("RA" = Right+A, etc.) to a dense
// InputID space, assigned in declaration order. The id is the symbol
// stored in step records and solution files.
type InputTable struct {
	names []string
	index map[string]InputID
}

// NewInputTable builds a table from an ordered list of input strings.
func NewInputTable(names []string) *InputTable {
	t := &InputTable{
		names: append([]string(nil), names...),
		index: make(map[string]InputID, len(names)),
	}
	for i, n := range names {
		t.index[n] = InputID(i)
	}
	return t
}

// Lookup resolves an input string to its InputID.
func (t *InputTable) Lookup(name string) (InputID, bool) {
	id, ok := t.index[name]
	return id, ok
}

// Name returns the declared string for an InputID.
func (t *InputTable) Name(id InputID) string {
	return t.names[id]
}

// Len returns the size of the declared input alphabet.
func (t *InputTable) Len() int { return len(t.names) }

// Simulator is the minimum capability the core consumes from a concrete
// emulator backend (NES/SNES/Genesis/SDLPoP/toy). All methods operate on
// the simulator's own internal state; callers move state in and out via
// Serialize/Deserialize.
type Simulator struct {
	// Advance steps the simulator by one input symbol.
	Advance func(inputID InputID) error
	// Serialize writes the simulator's current state to w. The length
	// written is fixed across calls for a given Simulator instance.
	Serialize func(w io.Writer) error
	// Deserialize restores simulator state from r, previously produced
	// by Serialize.
	Deserialize func(r io.Reader) error
	// GetProperty resolves a named property to its descriptor.
	GetProperty func(name string) (PropertyRef, bool)
	// EnableStateProperty / DisableStateProperty toggle whether a named
	// segment of state is zeroed before Serialize, excluding it from the
	// fingerprint and from state-equality.
	EnableStateProperty  func(name string) error
	DisableStateProperty func(name string) error
	// LoadStateFile / SaveStateFile seed or persist a state outside of
	// the search (playback, initial-state loading).
	LoadStateFile func(path string) error
	SaveStateFile func(path string) error
}

// MagnetDeclDoc is one game-declared magnet slot, in the wire shape a
// Game hands to its caller: Kind is the magnet's scoring kind by name
// ("Generic", "Health", "WeaponMatch") rather than a typed enum, because
// the enum lives in package rules and sim must not import it (rules
// already imports sim for PropertyRef). The engine resolves Kind at
// init time, once, when it builds the rules.MagnetLayout.
type MagnetDeclDoc struct {
	Name  string
	Kind  string
	Probe string
}

// Game is the per-title capability: it owns the property table, hash
// scope, input pruning policy, and the rule document's compile-time
// property resolution context.
type Game struct {
	// LegalInputs returns the input ids permitted from the given live
	// state. Games that don't prune return the full alphabet.
	LegalInputs func(state []byte) []InputID
	// Properties lists every named property this game exposes to the
	// rule engine for condition/magnet-probe resolution.
	Properties func() map[string]PropertyRef
	// HashIncludes lists the property names that participate in the
	// fingerprint. Not necessarily all of Properties() — cosmetic or
	// nondeterministic bytes (animation timers, etc.) are excluded by
	// omission, per-game, and the list is canonical: the core never
	// second-guesses it.
	HashIncludes func() []string
	// UpdateDerivedValues runs after every Advance, before rule
	// evaluation, recomputing any game-defined derived property (e.g.
	// scroll-compensated absolute X) that plain memory cells can't
	// express directly.
	UpdateDerivedValues func(state []byte)
	// InitialRuleStatusBits names rules (by label) considered already
	// satisfied at the initial state, before any step runs — e.g. a
	// game resuming mid-level with some preconditions already met.
	// Most games return nil.
	InitialRuleStatusBits func() []string
	// MagnetLayout declares this game's fixed magnet-set tuple (§3
	// "Magnet set"); most games declare a handful, some declare none.
	MagnetLayout func() []MagnetDeclDoc
	// Inputs is this game's declared input alphabet, in declaration
	// order; its InputID space is this table's indices.
	Inputs *InputTable
}
