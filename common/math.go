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

// Package common holds small, dependency-free helpers shared across the
// engine: integer bounds used when validating typed rule conditions, a
// float clamp shared by the scoring formula, and a hex-friendly uint64
// used for step counters in logs and checkpoints without reaching for
// fmt's verbose formatting verbs.
package common

import (
	"fmt"
	"strconv"
)

// Integer limit values, used by the rule engine (rules.Condition) to bounds
// check immediates against a property's declared datatype at compile time.
const (
	MaxInt8   = 1<<7 - 1
	MinInt8   = -1 << 7
	MaxInt16  = 1<<15 - 1
	MinInt16  = -1 << 15
	MaxUint8  = 1<<8 - 1
	MaxUint16 = 1<<16 - 1
)

// HexUint64 marshals a uint64 as a 0x-prefixed hex string. Used for step
// counters in structured log fields (engine.checkpointIfDue, cmd/jaffar's
// search-finished summary), where a raw decimal uint64 is harder to
// eyeball-diff across runs.
type HexUint64 uint64

// String implements fmt.Stringer.
func (h HexUint64) String() string {
	return "0x" + strconv.FormatUint(uint64(h), 16)
}

// MarshalText implements encoding.TextMarshaler.
func (h HexUint64) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *HexUint64) UnmarshalText(input []byte) error {
	s := string(input)
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return fmt.Errorf("common: invalid HexUint64 %q: %w", string(input), err)
	}
	*h = HexUint64(v)
	return nil
}

// ClampFloat64 clamps v to the inclusive range [lo, hi]. Used by the
// MagnetGeneric scoring contribution (rules.Score) to bound the probed
// value before measuring its distance from the magnet's center.
func ClampFloat64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
