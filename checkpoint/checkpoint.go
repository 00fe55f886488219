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

// Package checkpoint reads and writes the binary checkpoint file (§6.5):
// a versioned snapshot of the search's progress sufficient for a warm
// restart (step counter, best reward found so far, best path so far).
// Writes are atomic (temp file + rename) and guarded by a file lock so a
// still-exiting previous process can't race a fresh one.
package checkpoint

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"
)

// Magic identifies a jaffarPlus checkpoint file: the ASCII bytes "JAFF".
const Magic uint32 = 0x4A414646

// Version is the current checkpoint encoding version.
const Version uint16 = 1

// Checkpoint is the decoded contents of a checkpoint file.
type Checkpoint struct {
	Step        uint64
	BestReward  float64
	BestHistory []byte
}

// Write atomically replaces the file at path with cp's encoding,
// guarded by an flock so a concurrent writer (a previous process still
// shutting down) can't interleave bytes with this one (§4.6
// "checkpoint_if_due").
func Write(path string, cp Checkpoint) error {
	lock := flock.New(path + ".lock")
	if err := acquireLock(lock); err != nil {
		return err
	}
	defer lock.Unlock()

	var buf bytes.Buffer
	if err := encode(&buf, cp); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("checkpoint: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("checkpoint: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("checkpoint: rename into place: %w", err)
	}
	return nil
}

// acquireLock retries a held lock briefly: a still-exiting previous
// process holds it for the span of one rename, not indefinitely, so a
// bounded exponential backoff clears most contention without the
// caller giving up on the first busy tick.
func acquireLock(lock *flock.Flock) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second

	err := backoff.Retry(func() error {
		locked, err := lock.TryLock()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("checkpoint: acquire lock: %w", err))
		}
		if !locked {
			return fmt.Errorf("checkpoint: %s is locked by another process", lock.Path())
		}
		return nil
	}, b)
	if err != nil {
		return err
	}
	return nil
}

func encode(buf *bytes.Buffer, cp Checkpoint) error {
	if err := binary.Write(buf, binary.BigEndian, Magic); err != nil {
		return fmt.Errorf("checkpoint: encode magic: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, Version); err != nil {
		return fmt.Errorf("checkpoint: encode version: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, cp.Step); err != nil {
		return fmt.Errorf("checkpoint: encode step: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, cp.BestReward); err != nil {
		return fmt.Errorf("checkpoint: encode best reward: %w", err)
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(len(cp.BestHistory))); err != nil {
		return fmt.Errorf("checkpoint: encode best history length: %w", err)
	}
	if _, err := buf.Write(cp.BestHistory); err != nil {
		return fmt.Errorf("checkpoint: encode best history: %w", err)
	}
	return nil
}

// Read decodes a previously-written checkpoint file.
func Read(path string) (Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: read %s: %w", path, err)
	}
	return decode(data)
}

func decode(data []byte) (Checkpoint, error) {
	r := bytes.NewReader(data)

	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: decode magic: %w", err)
	}
	if magic != Magic {
		return Checkpoint{}, fmt.Errorf("checkpoint: bad magic 0x%X, want 0x%X", magic, Magic)
	}

	var version uint16
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: decode version: %w", err)
	}
	if version != Version {
		return Checkpoint{}, fmt.Errorf("checkpoint: unsupported version %d, want %d", version, Version)
	}

	var cp Checkpoint
	if err := binary.Read(r, binary.BigEndian, &cp.Step); err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: decode step: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &cp.BestReward); err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: decode best reward: %w", err)
	}

	var historyLen uint32
	if err := binary.Read(r, binary.BigEndian, &historyLen); err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: decode best history length: %w", err)
	}
	cp.BestHistory = make([]byte, historyLen)
	if _, err := r.Read(cp.BestHistory); err != nil && historyLen > 0 {
		return Checkpoint{}, fmt.Errorf("checkpoint: decode best history: %w", err)
	}

	return cp, nil
}
