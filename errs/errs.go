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

// Package errs holds the small set of sentinel errors the CLI boundary
// checks with errors.Is to pick an exit code (§6.6, §7). Configuration,
// simulator and allocation failures wrap one of these; a fatal error that
// wraps none (e.g. a failed solution-file write) maps to exit code 1.
package errs

import "errors"

var (
	// ErrConfig is configuration parse/validation failure — exit code 1.
	ErrConfig = errors.New("configuration error")
	// ErrUnknownProperty is a rule or magnet referencing an undeclared
	// game property — exit code 1.
	ErrUnknownProperty = errors.New("unknown property")
	// ErrSimulator is a fatal Simulator-side failure during the search —
	// exit code 2.
	ErrSimulator = errors.New("simulator error")
	// ErrStateDBAlloc is a StateDB arena allocation failure at init —
	// exit code 3.
	ErrStateDBAlloc = errors.New("state database allocation error")
)
