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

// Package bitstream reads the bit-packed input shared by the XPRESS and LZX
// formats. Bits are stored in little endian 16-bit coding units and consumed
// from the high bit down. Literal bytes may be interleaved with the bits; they
// are read at the byte cursor, which always sits on a coding unit boundary
// after the last refill.
package bitstream

import (
	"encoding/binary"

	"github.com/awslabs/syscompress/compression"
)

// Reader is a bounds-checked cursor over a compressed buffer.
type Reader struct {
	in  []byte
	pos int

	// bitbuf holds bits not consumed yet, left-justified: the next bit is bit 31.
	bitbuf   uint32
	bitsleft uint
}

// NewReader returns a Reader positioned at the start of in.
func NewReader(in []byte) *Reader {
	r := &Reader{}
	r.Reset(in)
	return r
}

// Reset repositions r at the start of in and drops any buffered bits.
func (r *Reader) Reset(in []byte) {
	*r = Reader{in: in}
}

// EnsureBits makes at least n bits (n <= 16) available to PeekBits and
// RemoveBits. When the input is exhausted the missing bits read as zero.
func (r *Reader) EnsureBits(n uint) {
	if r.bitsleft >= n {
		return
	}
	if len(r.in)-r.pos >= 2 {
		r.bitbuf |= uint32(binary.LittleEndian.Uint16(r.in[r.pos:])) << (16 - r.bitsleft)
		r.pos += 2
	}
	r.bitsleft += 16
}

// PeekBits returns the next n bits without consuming them.
func (r *Reader) PeekBits(n uint) uint32 {
	if n == 0 {
		return 0
	}
	return r.bitbuf >> (32 - n)
}

// RemoveBits discards n bits previously made available by EnsureBits.
func (r *Reader) RemoveBits(n uint) {
	if n > r.bitsleft {
		n = r.bitsleft
	}
	r.bitbuf <<= n
	r.bitsleft -= n
}

// PopBits consumes and returns n buffered bits.
func (r *Reader) PopBits(n uint) uint32 {
	v := r.PeekBits(n)
	r.RemoveBits(n)
	return v
}

// ReadBits refills if needed and consumes n bits (n <= 16).
func (r *Reader) ReadBits(n uint) uint32 {
	r.EnsureBits(n)
	return r.PopBits(n)
}

// ReadU8 returns the next literal byte, or 0 if the input is exhausted.
// The caller validates the output length, so a short read isn't an error here.
func (r *Reader) ReadU8() byte {
	if r.pos >= len(r.in) {
		return 0
	}
	b := r.in[r.pos]
	r.pos++
	return b
}

// ReadU16 returns the next literal little endian uint16, or 0 if fewer than two bytes remain.
func (r *Reader) ReadU16() uint16 {
	if len(r.in)-r.pos < 2 {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.in[r.pos:])
	r.pos += 2
	return v
}

// ReadU32 returns the next literal little endian uint32, or 0 if fewer than four bytes remain.
func (r *Reader) ReadU32() uint32 {
	if len(r.in)-r.pos < 4 {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.in[r.pos:])
	r.pos += 4
	return v
}

// ReadBytes fills dst with literal bytes.
func (r *Reader) ReadBytes(dst []byte) error {
	if len(r.in)-r.pos < len(dst) {
		return compression.ErrTruncatedInput
	}
	r.pos += copy(dst, r.in[r.pos:])
	return nil
}

// Align drops the buffered bits so that the next refill or literal read starts
// at the byte cursor.
func (r *Reader) Align() {
	r.bitbuf = 0
	r.bitsleft = 0
}

// Offset returns the byte cursor.
func (r *Reader) Offset() int {
	return r.pos
}

// Remaining returns the number of bytes after the byte cursor.
func (r *Reader) Remaining() int {
	return len(r.in) - r.pos
}
