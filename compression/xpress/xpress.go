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

// Package xpress decodes XPRESS-Huffman chunks as written by the Windows
// Overlay Filter. Every chunk is self-contained: a table of 512 four-bit
// codeword lengths followed by the Huffman coded literals and matches.
package xpress

import (
	"fmt"

	"github.com/awslabs/syscompress/compression"
	"github.com/awslabs/syscompress/compression/bitstream"
	"github.com/awslabs/syscompress/compression/huffman"
	"github.com/awslabs/syscompress/compression/lz"
)

const (
	// NumChars is the number of literal symbols; match symbols follow them.
	NumChars = 256
	// NumSymbols is the size of the single Huffman alphabet.
	NumSymbols = 512
	// MaxCodewordLen is the longest codeword a chunk's code may use.
	MaxCodewordLen = 15
	// MinMatchLen is added to every coded match length.
	MinMatchLen = 3
	// HeaderSize is the size of the packed codeword length table.
	HeaderSize = NumSymbols / 2

	tableBits = 12
)

// Decompressor holds the decode table so that it is built in place for each
// chunk. It is not safe for concurrent use.
type Decompressor struct {
	lens  [NumSymbols]uint8
	table huffman.Table
	br    bitstream.Reader
}

var _ compression.Decompressor = (*Decompressor)(nil)

// NewDecompressor returns a Decompressor ready for use.
func NewDecompressor() *Decompressor {
	return &Decompressor{}
}

// Decompress decodes src into exactly len(dst) bytes.
func (d *Decompressor) Decompress(dst, src []byte) error {
	if len(src) < HeaderSize {
		return fmt.Errorf("xpress: %d byte chunk is shorter than the code length table: %w", len(src), compression.ErrTruncatedInput)
	}
	for i := 0; i < HeaderSize; i++ {
		d.lens[2*i] = src[i] & 0xf
		d.lens[2*i+1] = src[i] >> 4
	}
	if err := d.table.Build(d.lens[:], tableBits, MaxCodewordLen); err != nil {
		return fmt.Errorf("xpress: %w", err)
	}

	br := &d.br
	br.Reset(src[HeaderSize:])
	pos := 0
	for pos < len(dst) {
		sym := d.table.Decode(br, MaxCodewordLen)
		if sym < NumChars {
			dst[pos] = byte(sym)
			pos++
			continue
		}

		sym -= NumChars
		length := sym & 0xf
		log2Offset := uint(sym >> 4)

		br.EnsureBits(16)
		offset := 1<<log2Offset | int(br.PopBits(log2Offset))

		if length == 0xf {
			length += int(br.ReadU8())
			if length == 0xf+0xff {
				length = int(br.ReadU16())
			}
		}
		length += MinMatchLen

		if offset > pos {
			return fmt.Errorf("xpress: offset %d at output position %d: %w", offset, pos, compression.ErrInvalidReference)
		}
		if length > len(dst)-pos {
			return fmt.Errorf("xpress: match of length %d at output position %d overruns %d byte chunk: %w",
				length, pos, len(dst), compression.ErrInvalidReference)
		}
		pos = lz.Copy(dst, pos, length, offset, MinMatchLen)
	}
	return nil
}
