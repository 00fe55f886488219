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

// Package runner wraps a concrete sim.Simulator + sim.Game pair behind
// the single collaborator the engine driver and playback actually talk
// to: serialize/deserialize, legal-input enumeration, one-edge advance,
// fingerprinting and rule evaluation (§4.4).
package runner

import (
	"bytes"
	"fmt"

	"github.com/Randomno/jaffarPlus/hashdb"
	"github.com/Randomno/jaffarPlus/rules"
	"github.com/Randomno/jaffarPlus/sim"
)

// Runner is not safe for concurrent use: the engine driver gives each
// worker its own Runner instance over the same registered Simulator/Game
// constructors (§5 — workers never share simulator state directly).
type Runner struct {
	sim  *sim.Simulator
	game *sim.Game
	rs   *rules.Set

	stateSize    int
	hashIncludes []sim.PropertyRef
}

// New constructs a Runner, discovering the fixed state size by
// serializing once (§3 "State blob": "a fixed size S determined at
// engine start by asking the Runner to serialize once").
func New(simulator *sim.Simulator, game *sim.Game, rs *rules.Set) (*Runner, error) {
	var buf bytes.Buffer
	if err := simulator.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("runner: initial serialize: %w", err)
	}

	props := game.Properties()
	includes := make([]sim.PropertyRef, 0, len(game.HashIncludes()))
	for _, name := range game.HashIncludes() {
		ref, ok := props[name]
		if !ok {
			return nil, fmt.Errorf("runner: hash-include property %q not declared by game", name)
		}
		includes = append(includes, ref)
	}

	return &Runner{
		sim:          simulator,
		game:         game,
		rs:           rs,
		stateSize:    buf.Len(),
		hashIncludes: includes,
	}, nil
}

// StateSize returns S, the fixed serialized blob size (§3).
func (r *Runner) StateSize() int { return r.stateSize }

// Rules returns the compiled ruleset this Runner evaluates against.
func (r *Runner) Rules() *rules.Set { return r.rs }

// Inputs returns the game's declared input alphabet.
func (r *Runner) Inputs() *sim.InputTable { return r.game.Inputs }

// Serialize captures the simulator's current state.
func (r *Runner) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.sim.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("runner: serialize: %w", err)
	}
	if buf.Len() != r.stateSize {
		return nil, fmt.Errorf("runner: serialize produced %d bytes, want %d", buf.Len(), r.stateSize)
	}
	return buf.Bytes(), nil
}

// Deserialize restores the simulator to a previously-captured state.
func (r *Runner) Deserialize(state []byte) error {
	if len(state) != r.stateSize {
		return fmt.Errorf("runner: deserialize got %d bytes, want %d", len(state), r.stateSize)
	}
	if err := r.sim.Deserialize(bytes.NewReader(state)); err != nil {
		return fmt.Errorf("runner: deserialize: %w", err)
	}
	return nil
}

// LegalInputs enumerates the inputs permitted from a given live state.
func (r *Runner) LegalInputs(state []byte) []sim.InputID {
	return r.game.LegalInputs(state)
}

// Advance clones base (by loading it into the simulator), steps one
// input symbol, recomputes derived properties, and returns the
// resulting child state blob. It never mutates base (§2's "clone the
// base state, advance one edge" data flow).
func (r *Runner) Advance(base []byte, input sim.InputID) ([]byte, error) {
	if err := r.Deserialize(base); err != nil {
		return nil, err
	}
	if err := r.sim.Advance(input); err != nil {
		return nil, fmt.Errorf("runner: advance: %w", err)
	}
	child, err := r.Serialize()
	if err != nil {
		return nil, err
	}
	r.game.UpdateDerivedValues(child)
	return child, nil
}

// Fingerprint hashes the game's declared hash-include properties out of
// state (§3 "Fingerprint": "NOT a hash over the whole blob").
func (r *Runner) Fingerprint(state []byte) hashdb.Fingerprint {
	var buf bytes.Buffer
	for _, ref := range r.hashIncludes {
		writePropertyBytes(&buf, state, ref)
	}
	return hashdb.Compute(buf.Bytes())
}

func writePropertyBytes(buf *bytes.Buffer, state []byte, ref sim.PropertyRef) {
	width := propertyWidth(ref.Type)
	buf.Write(state[ref.Offset : ref.Offset+width])
}

func propertyWidth(t sim.PropertyType) int {
	switch t {
	case sim.TypeUint8, sim.TypeInt8:
		return 1
	case sim.TypeUint16, sim.TypeInt16:
		return 2
	case sim.TypeFloat32:
		return 4
	default:
		panic("runner: unknown PropertyType")
	}
}

// Evaluate runs the compiled ruleset against state, returning the
// updated RulesStatus, the scored result, and the active magnet tuple
// (§4.3).
func (r *Runner) Evaluate(state []byte, status rules.RulesStatus) (rules.RulesStatus, rules.EvalResult, rules.MagnetState) {
	return r.rs.Evaluate(state, status)
}

// LoadStateFile seeds the simulator from an external save state.
func (r *Runner) LoadStateFile(path string) error {
	if err := r.sim.LoadStateFile(path); err != nil {
		return fmt.Errorf("runner: load state file %q: %w", path, err)
	}
	return nil
}

// SaveStateFile persists the simulator's current state externally.
func (r *Runner) SaveStateFile(path string) error {
	if err := r.sim.SaveStateFile(path); err != nil {
		return fmt.Errorf("runner: save state file %q: %w", path, err)
	}
	return nil
}
