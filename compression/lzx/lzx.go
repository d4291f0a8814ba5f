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

// Package lzx decodes the LZX variant used by WIM archives and by the Windows
// Overlay Filter: no stream header, a one bit "default size" flag per block,
// and x86 E8 call translation that is always enabled.
//
// A Decompressor is a session. Recent match offsets and the previous block's
// codeword lengths (the base for delta coding) live in the session and carry
// from block to block; Reset starts a new session. Decompress resets first,
// since every WOF chunk is independent. DecompressAt keeps the session going
// into the next region of a shared window.
package lzx

import (
	"fmt"

	"github.com/awslabs/syscompress/compression"
	"github.com/awslabs/syscompress/compression/bitstream"
	"github.com/awslabs/syscompress/compression/huffman"
	"github.com/awslabs/syscompress/compression/lz"
)

// Decompressor is not safe for concurrent use.
type Decompressor struct {
	windowSize  int
	numMainSyms int

	recentOffsets [NumRecentOffsets]uint32
	// mainLens and lenLens have readLensMaxOverrun bytes of slack past their
	// alphabets for length runs that run off the end.
	mainLens      []uint8
	lenLens       [LenCodeNumSymbols + readLensMaxOverrun]uint8
	precodeLens   [PrecodeNumSymbols]uint8
	alignedLens   [AlignedNumSymbols]uint8

	mainTable    huffman.Table
	lenTable     huffman.Table
	precodeTable huffman.Table
	alignedTable huffman.Table

	br bitstream.Reader
}

var _ compression.Decompressor = (*Decompressor)(nil)

// NewDecompressor returns a session for the given window size, a power of two
// between MinWindowSize and MaxWindowSize. The window size fixes the size of
// the main code, so it must match the encoder's.
func NewDecompressor(windowSize int) (*Decompressor, error) {
	if windowSize < MinWindowSize || windowSize > MaxWindowSize || windowSize&(windowSize-1) != 0 {
		return nil, fmt.Errorf("lzx: unsupported window size %d", windowSize)
	}
	d := &Decompressor{
		windowSize:  windowSize,
		numMainSyms: NumMainSymbols(windowSize),
	}
	d.mainLens = make([]uint8, d.numMainSyms+readLensMaxOverrun)
	d.Reset()
	return d, nil
}

// Reset starts a new session: recent offsets go back to 1 and all codeword
// lengths to 0.
func (d *Decompressor) Reset() {
	d.recentOffsets = [NumRecentOffsets]uint32{1, 1, 1}
	clear(d.mainLens)
	clear(d.lenLens[:])
}

// WindowSize returns the window size the session was created with.
func (d *Decompressor) WindowSize() int {
	return d.windowSize
}

// Decompress decodes src into exactly len(dst) bytes as a fresh session.
func (d *Decompressor) Decompress(dst, src []byte) error {
	d.Reset()
	return d.DecompressAt(dst, 0, src)
}

// DecompressAt decodes src into window[start:] without resetting the session.
// Matches may reach back into window[:start], which must hold the output of
// the earlier calls. E8 translation positions are relative to window[0].
func (d *Decompressor) DecompressAt(window []byte, start int, src []byte) error {
	if len(window) > d.windowSize {
		return fmt.Errorf("lzx: %d byte output exceeds the %d byte window", len(window), d.windowSize)
	}
	if start < 0 || start > len(window) {
		return fmt.Errorf("lzx: start %d outside of %d byte window", start, len(window))
	}

	br := &d.br
	br.Reset(src)
	e8 := false
	pos := start
	for pos < len(window) {
		blockType, blockSize, err := d.readBlockHeader()
		if err != nil {
			return err
		}
		if blockSize < 1 || blockSize > len(window)-pos {
			return fmt.Errorf("lzx: block of %d bytes at output position %d, %d remaining: %w",
				blockSize, pos, len(window)-pos, compression.ErrInvalidBlockSize)
		}

		end := pos + blockSize
		if blockType == blockTypeUncompressed {
			if err := br.ReadBytes(window[pos:end]); err != nil {
				return fmt.Errorf("lzx: uncompressed block of %d bytes at output position %d: %w", blockSize, pos, err)
			}
			if blockSize&1 != 0 {
				br.ReadU8()
			}
			e8 = true
		} else {
			if err := d.decodeBlock(window[:end], pos, blockType == blockTypeAligned); err != nil {
				return err
			}
			e8 = e8 || d.mainLens[0xe8] != 0
		}
		pos = end
	}

	if e8 {
		undoE8(window[start:], start)
	}
	return nil
}

// readBlockHeader reads the block type and size and, depending on the type,
// either the block's Huffman codes or the recent offsets of an uncompressed block.
func (d *Decompressor) readBlockHeader() (int, int, error) {
	br := &d.br
	br.EnsureBits(4)
	blockType := int(br.PopBits(3))

	var blockSize int
	if br.PopBits(1) != 0 {
		blockSize = DefaultBlockSize
	} else {
		blockSize = int(br.ReadBits(8)) << 8
		blockSize |= int(br.ReadBits(8))
	}

	switch blockType {
	case blockTypeAligned:
		for i := range d.alignedLens {
			d.alignedLens[i] = uint8(br.ReadBits(3))
		}
		if err := d.alignedTable.Build(d.alignedLens[:], alignedTableBits, maxAlignedLen); err != nil {
			return 0, 0, fmt.Errorf("lzx: aligned offset code: %w", err)
		}
		fallthrough
	case blockTypeVerbatim:
		// The main code lengths come in two runs: literals, then match
		// headers. A run overflowing the literals leaves its lengths in the
		// match header slots, where they are the base for the second run.
		if err := d.readCodewordLens(d.mainLens, NumChars); err != nil {
			return 0, 0, err
		}
		if err := d.readCodewordLens(d.mainLens[NumChars:], d.numMainSyms-NumChars); err != nil {
			return 0, 0, err
		}
		if err := d.mainTable.Build(d.mainLens[:d.numMainSyms], mainTableBits, maxMainCodewordLen); err != nil {
			return 0, 0, fmt.Errorf("lzx: main code: %w", err)
		}
		if err := d.readCodewordLens(d.lenLens[:], LenCodeNumSymbols); err != nil {
			return 0, 0, err
		}
		if err := d.lenTable.Build(d.lenLens[:LenCodeNumSymbols], lenTableBits, maxLenCodewordLen); err != nil {
			return 0, 0, fmt.Errorf("lzx: length code: %w", err)
		}
	case blockTypeUncompressed:
		// Realign on a coding unit. If the stream is already aligned, the
		// next 16 bits are padding and are skipped too.
		br.EnsureBits(1)
		br.Align()
		for i := range d.recentOffsets {
			d.recentOffsets[i] = br.ReadU32()
			if d.recentOffsets[i] == 0 {
				return 0, 0, fmt.Errorf("lzx: zero recent offset R%d in uncompressed block header: %w", i, compression.ErrInvalidReference)
			}
		}
	default:
		return 0, 0, fmt.Errorf("lzx: block type %d: %w", blockType, compression.ErrInvalidBlockType)
	}
	return blockType, blockSize, nil
}

// readCodewordLens updates lens[:n] in place from a precode-compressed delta
// list. lens holds the previous block's lengths on entry. The last run may
// write up to readLensMaxOverrun bytes past n; lens must have room for them.
func (d *Decompressor) readCodewordLens(lens []uint8, n int) error {
	br := &d.br
	for i := range d.precodeLens {
		d.precodeLens[i] = uint8(br.ReadBits(4))
	}
	if err := d.precodeTable.Build(d.precodeLens[:], precodeTableBits, maxPrecodeLen); err != nil {
		return fmt.Errorf("lzx: precode: %w", err)
	}

	for i := 0; i < n; {
		presym := d.precodeTable.Decode(br, maxPrecodeLen)
		if presym < 17 {
			lens[i] = deltaLen(lens[i], presym)
			i++
			continue
		}

		var run int
		var l uint8
		switch presym {
		case 17:
			run = 4 + int(br.ReadBits(4))
		case 18:
			run = 20 + int(br.ReadBits(5))
		default:
			run = 4 + int(br.ReadBits(1))
			presym = d.precodeTable.Decode(br, maxPrecodeLen)
			if presym > 17 {
				return fmt.Errorf("lzx: precode symbol %d in a repeated length run: %w", presym, compression.ErrMalformedTable)
			}
			l = deltaLen(lens[i], presym)
		}
		for ; run > 0; run-- {
			lens[i] = l
			i++
		}
	}
	return nil
}

func deltaLen(prev uint8, presym int) uint8 {
	l := int(prev) - presym
	if l < 0 {
		l += 17
	}
	return uint8(l)
}

// decodeBlock decodes a verbatim or aligned offset block into out[pos:].
// out ends at the block end.
func (d *Decompressor) decodeBlock(out []byte, pos int, aligned bool) error {
	br := &d.br
	for pos < len(out) {
		mainsym := d.mainTable.Decode(br, maxMainCodewordLen)
		if mainsym < NumChars {
			out[pos] = byte(mainsym)
			pos++
			continue
		}

		mainsym -= NumChars
		matchLen := mainsym % NumLenHeaders
		slot := mainsym / NumLenHeaders
		if matchLen == NumPrimaryLens {
			matchLen += d.lenTable.Decode(br, maxLenCodewordLen)
		}
		matchLen += MinMatchLen

		var offset uint32
		if slot < NumRecentOffsets {
			// Not a true LRU: using R2 doesn't push R1 down. This lets a
			// single swap handle all three (it's a no-op for R0).
			offset = d.recentOffsets[slot]
			d.recentOffsets[slot] = d.recentOffsets[0]
			d.recentOffsets[0] = offset
		} else {
			extra := extraOffsetBits[slot]
			offset = offsetSlotBase[slot]
			if aligned && extra >= NumAlignedBits {
				offset += br.ReadBits(extra-NumAlignedBits) << NumAlignedBits
				offset += uint32(d.alignedTable.Decode(br, maxAlignedLen))
			} else {
				offset += br.ReadBits(extra)
			}
			offset -= OffsetAdjustment

			d.recentOffsets[2] = d.recentOffsets[1]
			d.recentOffsets[1] = d.recentOffsets[0]
			d.recentOffsets[0] = offset
		}

		if matchLen > len(out)-pos {
			return fmt.Errorf("lzx: match of length %d at output position %d overruns block ending at %d: %w",
				matchLen, pos, len(out), compression.ErrInvalidReference)
		}
		if uint64(offset) > uint64(pos) {
			return fmt.Errorf("lzx: offset %d at output position %d: %w", offset, pos, compression.ErrInvalidReference)
		}
		pos = lz.Copy(out, pos, matchLen, int(offset), MinMatchLen)
	}
	return nil
}
