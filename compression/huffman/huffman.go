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

// Package huffman builds and reads canonical Huffman decode tables.
//
// A Table is one flat array. Its first 1<<tableBits entries are indexed directly
// by the next tableBits input bits. Codewords longer than tableBits continue in
// a binary trie whose nodes are appended after the direct region and addressed
// by index, two children per node.
package huffman

import (
	"fmt"

	"github.com/awslabs/syscompress/compression"
	"github.com/awslabs/syscompress/compression/bitstream"
)

const (
	// MaxCodewordLen is the longest codeword any table can hold.
	MaxCodewordLen = 16
	// MaxTableBits is the widest direct-index region supported.
	MaxTableBits = 16
)

// entry is either a leaf holding (length<<16 | symbol) or, with nodeFlag set,
// a trie node holding the index of its first child.
type entry uint32

const (
	nodeFlag entry = 1 << 31
	lenShift       = 16
)

func leaf(sym int, length uint) entry {
	return entry(length)<<lenShift | entry(sym)
}

// Table is a decode table. The zero value is empty; call Build before Decode.
// A Table reuses its storage across builds.
type Table struct {
	entries   []entry
	tableBits uint
	numSyms   int
}

// Build fills t from per-symbol codeword lengths, where 0 marks an unused symbol.
// Codewords are assigned canonically: shorter codes first, then lower symbols.
//
// An over-subscribed set of lengths, or a length above maxCodewordLen, is
// rejected with compression.ErrMalformedTable. Incomplete codes are accepted;
// bit patterns with no codeword decode as symbol 0.
func (t *Table) Build(lens []uint8, tableBits, maxCodewordLen uint) error {
	if tableBits == 0 || tableBits > MaxTableBits || maxCodewordLen > MaxCodewordLen {
		return fmt.Errorf("unsupported table geometry: table bits %d, max codeword length %d", tableBits, maxCodewordLen)
	}

	var counts [MaxCodewordLen + 1]int
	for sym, l := range lens {
		if uint(l) > maxCodewordLen {
			return fmt.Errorf("symbol %d has length %d > %d: %w", sym, l, maxCodewordLen, compression.ErrMalformedTable)
		}
		counts[l]++
	}
	left := 1
	for l := uint(1); l <= maxCodewordLen; l++ {
		left <<= 1
		left -= counts[l]
		if left < 0 {
			return fmt.Errorf("over-subscribed code at length %d: %w", l, compression.ErrMalformedTable)
		}
	}

	size := 1 << tableBits
	if cap(t.entries) < size {
		t.entries = make([]entry, size, size*2)
	} else {
		t.entries = t.entries[:size]
		clear(t.entries)
	}
	t.tableBits = tableBits
	t.numSyms = len(lens)

	if left == 1<<maxCodewordLen {
		// Empty code. Valid in both formats; nothing can be decoded with it.
		return nil
	}

	var next [MaxCodewordLen + 1]uint32
	code := uint32(0)
	counts[0] = 0
	for l := 1; l <= int(maxCodewordLen); l++ {
		code = (code + uint32(counts[l-1])) << 1
		next[l] = code
	}

	for sym, l := range lens {
		if l == 0 {
			continue
		}
		length := uint(l)
		c := next[length]
		next[length]++
		if length <= tableBits {
			shift := tableBits - length
			start := int(c << shift)
			e := leaf(sym, length)
			for i := start; i < start+1<<shift; i++ {
				t.entries[i] = e
			}
			continue
		}
		t.insertLong(sym, length, c)
	}
	return nil
}

// insertLong walks (and extends) the trie below the direct slot matching the
// first tableBits bits of code, one bit per level.
func (t *Table) insertLong(sym int, length uint, code uint32) {
	idx := int(code >> (length - t.tableBits))
	for bit := int(length-t.tableBits) - 1; bit >= 0; bit-- {
		if t.entries[idx]&nodeFlag == 0 {
			child := len(t.entries)
			t.entries = append(t.entries, 0, 0)
			t.entries[idx] = nodeFlag | entry(child)
		}
		idx = int(t.entries[idx]&^nodeFlag) + int(code>>uint(bit)&1)
	}
	t.entries[idx] = leaf(sym, length)
}

// Decode reads one symbol from r. When the input runs out the missing bits
// read as zero, so Decode always returns; the caller checks the output length.
func (t *Table) Decode(r *bitstream.Reader, maxCodewordLen uint) int {
	r.EnsureBits(maxCodewordLen)
	e := t.entries[r.PeekBits(t.tableBits)]
	if e&nodeFlag == 0 {
		r.RemoveBits(uint(e >> lenShift))
		return int(e & 0xffff)
	}
	r.RemoveBits(t.tableBits)
	for {
		e = t.entries[int(e&^nodeFlag)+int(r.PopBits(1))]
		if e&nodeFlag == 0 {
			return int(e & 0xffff)
		}
	}
}

// TableBits returns the width of the direct-index region.
func (t *Table) TableBits() uint { return t.tableBits }

// NumSymbols returns the alphabet size of the last Build.
func (t *Table) NumSymbols() int { return t.numSyms }
