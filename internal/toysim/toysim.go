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

// Package toysim ships the minimal "1-byte position" Simulator and Game
// used by the six seeded end-to-end scenarios (§8): a one-dimensional
// walk with a hazard zone that drains health (a FAIL condition) and a
// trap zone that prunes every input but Stay (a dead end), small enough
// that tests can hand-compute expected outcomes.
package toysim

import (
	"fmt"
	"io"
	"os"

	"github.com/Randomno/jaffarPlus/sim"
)

// Input ids, in declaration order (also the InputTable order).
const (
	InputLeft sim.InputID = iota
	InputRight
	InputStay
)

// InputNames is the canonical declared alphabet, in InputID order.
var InputNames = []string{"L", "R", "S"}

// Hazard and trap zones are fixed constants for the toy: positions in
// [HazardLo, HazardHi] cost one health per step; positions in
// [TrapLo, TrapHi] only permit Stay, simulating an unreachable dead end.
const (
	HazardLo uint8 = 40
	HazardHi uint8 = 50
	TrapLo   uint8 = 90
	TrapHi   uint8 = 95
)

type state struct {
	pos    uint8
	health uint8
	ticks  uint8 // cosmetic step counter, excluded from the fingerprint
}

// Instance is one toy Simulator's mutable backing state. NewInstance
// wires it into a sim.Simulator capability struct.
type Instance struct {
	s state

	disabledTicks bool
}

// NewInstance starts at the given position with full health.
func NewInstance(startPos uint8) *Instance {
	return &Instance{s: state{pos: startPos, health: 100}}
}

// Simulator adapts inst to the sim.Simulator capability.
func (inst *Instance) Simulator() *sim.Simulator {
	return &sim.Simulator{
		Advance:              inst.advance,
		Serialize:            inst.serialize,
		Deserialize:          inst.deserialize,
		GetProperty:          getProperty,
		EnableStateProperty:  inst.enableStateProperty,
		DisableStateProperty: inst.disableStateProperty,
		LoadStateFile:        inst.loadStateFile,
		SaveStateFile:        inst.saveStateFile,
	}
}

func (inst *Instance) advance(input sim.InputID) error {
	switch input {
	case InputLeft:
		if inst.s.pos == 0 {
			return fmt.Errorf("toysim: Left is illegal at pos 0")
		}
		inst.s.pos--
	case InputRight:
		if inst.s.pos == 255 {
			return fmt.Errorf("toysim: Right is illegal at pos 255")
		}
		inst.s.pos++
	case InputStay:
		// no-op
	default:
		return fmt.Errorf("toysim: unknown input id %d", input)
	}

	if inst.s.pos >= HazardLo && inst.s.pos <= HazardHi && inst.s.health > 0 {
		inst.s.health--
	}
	return nil
}

func (inst *Instance) serialize(w io.Writer) error {
	ticks := inst.s.ticks
	if inst.disabledTicks {
		ticks = 0
	}
	_, err := w.Write([]byte{inst.s.pos, inst.s.health, ticks})
	return err
}

func (inst *Instance) deserialize(r io.Reader) error {
	buf := make([]byte, 3)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("toysim: deserialize: %w", err)
	}
	inst.s = state{pos: buf[0], health: buf[1], ticks: buf[2]}
	return nil
}

func (inst *Instance) enableStateProperty(name string) error {
	if name != "ticks" {
		return fmt.Errorf("toysim: unknown property %q", name)
	}
	inst.disabledTicks = false
	return nil
}

func (inst *Instance) disableStateProperty(name string) error {
	if name != "ticks" {
		return fmt.Errorf("toysim: unknown property %q", name)
	}
	inst.disabledTicks = true
	return nil
}

func (inst *Instance) loadStateFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("toysim: load state file: %w", err)
	}
	defer f.Close()
	return inst.deserialize(f)
}

func (inst *Instance) saveStateFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("toysim: save state file: %w", err)
	}
	defer f.Close()
	return inst.serialize(f)
}

var properties = map[string]sim.PropertyRef{
	"posX":   {Name: "posX", Offset: 0, Type: sim.TypeUint8},
	"health": {Name: "health", Offset: 1, Type: sim.TypeUint8},
	"ticks":  {Name: "ticks", Offset: 2, Type: sim.TypeUint8},
}

func getProperty(name string) (sim.PropertyRef, bool) {
	ref, ok := properties[name]
	return ref, ok
}

// Game builds the toy Game capability. It holds no simulator state of
// its own, so one Game can be paired with any Instance's Simulator.
func Game() *sim.Game {
	return &sim.Game{
		LegalInputs:           legalInputs,
		Properties:            func() map[string]sim.PropertyRef { return properties },
		HashIncludes:          func() []string { return []string{"posX", "health"} },
		UpdateDerivedValues:   updateDerivedValues,
		InitialRuleStatusBits: func() []string { return nil },
		MagnetLayout: func() []sim.MagnetDeclDoc {
			return []sim.MagnetDeclDoc{
				{Name: "approach", Kind: "Generic", Probe: "posX"},
				{Name: "vitality", Kind: "Health", Probe: "health"},
			}
		},
		Inputs: sim.NewInputTable(InputNames),
	}
}

func legalInputs(state []byte) []sim.InputID {
	pos := state[0]
	if pos >= TrapLo && pos <= TrapHi {
		return []sim.InputID{InputStay}
	}

	inputs := make([]sim.InputID, 0, 3)
	if pos > 0 {
		inputs = append(inputs, InputLeft)
	}
	if pos < 255 {
		inputs = append(inputs, InputRight)
	}
	inputs = append(inputs, InputStay)
	return inputs
}

func updateDerivedValues(state []byte) {
	state[2] = state[2] + 1
}
