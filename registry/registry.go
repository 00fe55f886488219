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

// Package registry is the name→constructor lookup table the Config's
// "Simulator"/"Game" keys resolve through (§9's "registry instead of a
// compiled-in switch" design note). Concrete backends are added with
// RegisterSimulator/RegisterGame; this package's own init() registers the
// internal/toysim backend as "toy" for tests and cmd/jaffar smoke runs.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Randomno/jaffarPlus/internal/toysim"
	"github.com/Randomno/jaffarPlus/sim"
)

// SimulatorFactory builds a fresh Simulator instance from its
// game-specific configuration blob (the Config's "Simulator
// Configuration" table, passed through unmodified).
type SimulatorFactory func(config map[string]any) (*sim.Simulator, error)

// GameFactory builds a fresh Game instance similarly.
type GameFactory func(config map[string]any) (*sim.Game, error)

var (
	mu        sync.Mutex
	simFacts  = map[string]SimulatorFactory{}
	gameFacts = map[string]GameFactory{}
)

func init() {
	RegisterSimulator("toy", func(map[string]any) (*sim.Simulator, error) {
		return toysim.NewInstance(0).Simulator(), nil
	})
	RegisterGame("toy", func(map[string]any) (*sim.Game, error) {
		return toysim.Game(), nil
	})
}

// RegisterSimulator makes a named Simulator constructor available to
// Config-driven lookup. Re-registering an existing name overwrites it,
// which is only ever exercised by tests swapping in a fake.
func RegisterSimulator(name string, factory SimulatorFactory) {
	mu.Lock()
	defer mu.Unlock()
	simFacts[name] = factory
}

// RegisterGame is RegisterSimulator's Game-side counterpart.
func RegisterGame(name string, factory GameFactory) {
	mu.Lock()
	defer mu.Unlock()
	gameFacts[name] = factory
}

// NewSimulator resolves name and builds it, or returns an error naming
// every registered alternative (helps a config typo surface fast).
func NewSimulator(name string, config map[string]any) (*sim.Simulator, error) {
	mu.Lock()
	factory, ok := simFacts[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("registry: unknown simulator %q (known: %v)", name, knownSimulators())
	}
	return factory(config)
}

// NewGame is NewSimulator's Game-side counterpart.
func NewGame(name string, config map[string]any) (*sim.Game, error) {
	mu.Lock()
	factory, ok := gameFacts[name]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("registry: unknown game %q (known: %v)", name, knownGames())
	}
	return factory(config)
}

func knownSimulators() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(simFacts))
	for n := range simFacts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func knownGames() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(gameFacts))
	for n := range gameFacts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
