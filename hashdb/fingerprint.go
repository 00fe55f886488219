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

package hashdb

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint is the 128-bit dedup key over a game's hash-include byte
// ranges (§3 "Fingerprint"). Both 64-bit halves are always computed,
// so HashDB sizing stays uniform for every game.
type Fingerprint [16]byte

// fingerprintSeedHi prefixes the second xxhash pass so the high and low
// halves are independent digests of the same input rather than the same
// 64 bits duplicated. xxhash/v2 exports no seeded constructor, so the
// seed is mixed in by hashing it ahead of buf instead.
var fingerprintSeedHi = [8]byte{0x9E, 0x37, 0x79, 0xB9, 0x7F, 0x4A, 0x7C, 0x15}

// Compute hashes buf (the concatenation of a game's declared hash-include
// byte ranges, assembled by the caller — see runner.Runner.Fingerprint)
// into a Fingerprint via two independent xxhash digests.
func Compute(buf []byte) Fingerprint {
	var fp Fingerprint

	lo := xxhash.Sum64(buf)
	binary.LittleEndian.PutUint64(fp[0:8], lo)

	d := xxhash.New()
	_, _ = d.Write(fingerprintSeedHi[:])
	_, _ = d.Write(buf)
	hi := d.Sum64()
	binary.LittleEndian.PutUint64(fp[8:16], hi)

	return fp
}

// shardKey returns the low 64 bits used for bloom-filter membership and
// shard selection; the full 128 bits still back the precise LRU check.
func (fp Fingerprint) shardKey() uint64 {
	return binary.LittleEndian.Uint64(fp[0:8])
}

// shardIndex selects a shard out of shardCount using the fingerprint's
// top byte, per the glossary's "Shard" definition.
func (fp Fingerprint) shardIndex(shardCount int) int {
	return int(fp[15]) % shardCount
}
