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

package statedb

import (
	"fmt"
	"os"
	"runtime"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sync/errgroup"
)

// arena is the single mmap'd byte buffer backing every StateDB slot
// (§4.1 "Slot arena" in the glossary). It is backed by an unlinked
// temporary file rather than a true anonymous mapping: mmap-go's
// portable API maps file descriptors, not raw anonymous memory, so an
// unlinked temp file is the idiomatic way to get a page-aligned,
// OS-managed byte buffer through it on every supported platform.
type arena struct {
	region mmap.MMap
	file   *os.File
}

// newArena allocates size bytes, zero-filled, and first-touches every
// page across GOMAXPROCS goroutines so the kernel distributes physical
// pages before the search starts.
func newArena(size int) (*arena, error) {
	f, err := os.CreateTemp("", "jaffarplus-statedb-*")
	if err != nil {
		return nil, fmt.Errorf("statedb: create arena backing file: %w", err)
	}
	// The directory entry is removed immediately; the file stays alive
	// via the open descriptor for as long as the mapping lives, and the
	// space is reclaimed by the OS on process exit with no cleanup step.
	_ = os.Remove(f.Name())

	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("statedb: size arena backing file: %w", err)
	}

	region, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("statedb: mmap arena: %w", err)
	}

	if err := firstTouch(region); err != nil {
		region.Unmap()
		f.Close()
		return nil, err
	}

	return &arena{region: region, file: f}, nil
}

const pageSize = 4096

// firstTouch writes one byte per page across GOMAXPROCS goroutines,
// forcing the kernel to back every page with physical memory up front
// instead of lazily on first fault during the search.
func firstTouch(region mmap.MMap) error {
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	pages := (len(region) + pageSize - 1) / pageSize
	chunk := (pages + workers - 1) / workers

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		startPage := w * chunk
		endPage := startPage + chunk
		if endPage > pages {
			endPage = pages
		}
		if startPage >= endPage {
			continue
		}
		g.Go(func() error {
			for p := startPage; p < endPage; p++ {
				region[p*pageSize] = 0
			}
			return nil
		})
	}
	return g.Wait()
}

// slot returns the byte view of slot i.
func (a *arena) slot(i int, slotSize int) []byte {
	off := i * slotSize
	return a.region[off : off+slotSize]
}

// close unmaps the arena and releases the backing file descriptor.
func (a *arena) close() error {
	if err := a.region.Unmap(); err != nil {
		a.file.Close()
		return fmt.Errorf("statedb: unmap arena: %w", err)
	}
	return a.file.Close()
}
