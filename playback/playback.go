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

// Package playback replays a recorded input sequence through a Runner,
// capturing a seekable trace of every step for test assertions and for
// cmd/jaffar-play's per-step trace printout (§4.7).
package playback

import (
	"fmt"

	"github.com/Randomno/jaffarPlus/rules"
	"github.com/Randomno/jaffarPlus/runner"
	"github.com/Randomno/jaffarPlus/sim"
)

// StepSnapshot captures everything observable after one replayed edge.
type StepSnapshot struct {
	Depth      int
	Input      sim.InputID
	Blob       []byte
	RuleStatus rules.RulesStatus
	Result     rules.EvalResult
}

// Playback drives a Runner one input at a time from its current state,
// recording a trace. Not safe for concurrent use.
type Playback struct {
	r     *runner.Runner
	trace []StepSnapshot
	status rules.RulesStatus
}

// NewPlayback wraps r, assumed to be positioned at its initial state. The
// first recorded status is a zeroed RulesStatus sized for r's ruleset.
func NewPlayback(r *runner.Runner) *Playback {
	return &Playback{
		r:      r,
		status: rules.NewRulesStatus(r.Rules().Len()),
	}
}

// Step advances r by one input, evaluates the ruleset against the
// resulting state, appends the snapshot to the trace, and returns it
// (§4.7 "capturing after every step: the blob, the depth, the evaluated
// rulesStatus, and the reward").
func (p *Playback) Step(input sim.InputID) (StepSnapshot, error) {
	base, err := p.r.Serialize()
	if err != nil {
		return StepSnapshot{}, fmt.Errorf("playback: serialize base: %w", err)
	}

	child, err := p.r.Advance(base, input)
	if err != nil {
		return StepSnapshot{}, fmt.Errorf("playback: advance: %w", err)
	}
	if err := p.r.Deserialize(child); err != nil {
		return StepSnapshot{}, fmt.Errorf("playback: deserialize child: %w", err)
	}

	status, result, _ := p.r.Evaluate(child, p.status)
	p.status = status

	snap := StepSnapshot{
		Depth:      len(p.trace) + 1,
		Input:      input,
		Blob:       append([]byte(nil), child...),
		RuleStatus: status,
		Result:     result,
	}
	p.trace = append(p.trace, snap)
	return snap, nil
}

// Replay steps through every input in order, stopping at the first error.
func (p *Playback) Replay(inputs []sim.InputID) error {
	for i, input := range inputs {
		if _, err := p.Step(input); err != nil {
			return fmt.Errorf("playback: replay step %d: %w", i, err)
		}
	}
	return nil
}

// Seek returns a previously captured snapshot without touching the
// simulator (§4.7: "does not re-run the simulator"). index is 0-based
// into the recorded trace, matching Trace()'s indexing.
func (p *Playback) Seek(index int) (StepSnapshot, error) {
	if index < 0 || index >= len(p.trace) {
		return StepSnapshot{}, fmt.Errorf("playback: seek index %d out of range [0,%d)", index, len(p.trace))
	}
	return p.trace[index], nil
}

// Trace returns every snapshot recorded so far, in step order.
func (p *Playback) Trace() []StepSnapshot {
	return p.trace
}
