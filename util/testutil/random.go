/*
   Copyright The Soci Snapshotter Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package testutil

import (
	"hash/fnv"
	"math/rand/v2"
	"testing"
)

// Seed rand source
const TestRandomSeed = 1658503010463818386

// TestRand is a struct that wraps rand/v2 Rand with helper functions.
// It is instantiated with NewTestRand, which seeds it with TestRandomSeed
// and the name of the test it is being called from.
// Note TestRand is NOT thread-safe; only use it from the test goroutine.
type TestRand struct {
	*rand.Rand
}

// NewTestRand allows us to have deterministic tests by seeding the random var.
// It uses the test name as part of the seed, which allows better randomness across
// different tests, but also allows for deterministic results between runs.
func NewTestRand(t testing.TB) *TestRand {
	h := fnv.New64a()
	h.Write([]byte(t.Name()))

	// PCG is a little faster than ChaCha8, but the latter has slightly better randomness.
	// For the sake of testing it's probably better to just use the faster one.
	return &TestRand{
		rand.New(rand.NewPCG(TestRandomSeed, h.Sum64())),
	}
}

func (r *TestRand) Read(b []byte) {
	for i := range b {
		b[i] = byte(r.Int64())
	}
}

// RandomByteData returns a byte slice with `size` populated with random generated data
func (r *TestRand) RandomByteData(size int64) []byte {
	b := make([]byte, size)
	r.Read(b)
	return b
}

const charset = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789" + " "

// RandomText returns size bytes drawn from a small alphanumeric alphabet.
// It never contains 0xE8.
func (r *TestRand) RandomText(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = charset[r.IntN(len(charset))]
	}
	return b
}

// CompressibleData returns size bytes built by repeating and mutating earlier
// fragments, so that an LZ parser finds plenty of matches, including runs and
// matches at repeated offsets.
func (r *TestRand) CompressibleData(size int) []byte {
	b := make([]byte, 0, size)
	for len(b) < size {
		switch n := r.IntN(10); {
		case n < 3 || len(b) < 16:
			b = append(b, r.RandomText(1+r.IntN(24))...)
		case n < 4:
			c := charset[r.IntN(len(charset))]
			for k := 4 + r.IntN(300); k > 0; k-- {
				b = append(b, c)
			}
		default:
			off := 1 + r.IntN(min(len(b), 4096))
			for k := 3 + r.IntN(80); k > 0; k-- {
				b = append(b, b[len(b)-off])
			}
		}
	}
	return b[:size]
}
