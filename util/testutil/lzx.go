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

import "encoding/binary"

const (
	lzxNumChars          = 256
	lzxNumLenHeaders     = 8
	lzxNumPrimaryLens    = 7
	lzxMinMatchLen       = 2
	lzxMaxMatchLen       = 257
	lzxLenSymbols        = 249
	lzxPrecodeSymbols    = 20
	lzxAlignedSymbols    = 8
	lzxMaxMainLen        = 16
	lzxMaxLenLen         = 16
	lzxMaxPrecodeLen     = 15
	lzxMaxAlignedLen     = 7
	lzxDefaultBlockSize  = 32768
	lzxOffsetAdjustment  = 2
	lzxE8MagicFileSize   = 12000000
	lzxMaxOffsetSlots    = 36
	LZXBlockVerbatim     = 1
	LZXBlockAligned      = 2
	LZXBlockUncompressed = 3
)

var (
	lzxExtraBits [lzxMaxOffsetSlots]uint
	lzxSlotBase  [lzxMaxOffsetSlots + 1]uint32
)

func init() {
	for slot := range lzxExtraBits {
		if slot >= 4 {
			lzxExtraBits[slot] = uint(slot/2 - 1)
		}
		lzxSlotBase[slot+1] = lzxSlotBase[slot] + 1<<lzxExtraBits[slot]
	}
}

// LZXEncoder writes a stream for an LZX decompression session. Its recent
// offsets and previous codeword lengths track the decoder's, so blocks must
// be decoded in the order they were written.
type LZXEncoder struct {
	w           BitWriter
	numMainSyms int
	recent      [3]uint32
	mainLens    []uint8
	lenLens     []uint8

	// RunCodes enables the precode run symbols 17, 18 and 19.
	RunCodes bool
}

// NewLZXEncoder returns an encoder for a session with the given window size.
func NewLZXEncoder(windowSize int) *LZXEncoder {
	slots := 0
	for lzxSlotBase[slots] < uint32(windowSize) {
		slots++
	}
	n := lzxNumChars + slots*lzxNumLenHeaders
	return &LZXEncoder{
		numMainSyms: n,
		recent:      [3]uint32{1, 1, 1},
		mainLens:    make([]uint8, n),
		lenLens:     make([]uint8, lzxLenSymbols),
		RunCodes:    true,
	}
}

// CompressLZX encodes data (at most one 32 KiB window) as a fresh LZX session
// the way WOF does: E8 translation, then a single verbatim block.
func CompressLZX(data []byte) []byte {
	in := append([]byte(nil), data...)
	TranslateE8(in)
	e := NewLZXEncoder(lzxDefaultBlockSize)
	e.Block(LZXBlockVerbatim, GreedyParse(in, lzxMaxMatchLen, lzxDefaultBlockSize-3))
	return e.Bytes()
}

// TranslateE8 applies the x86 CALL operand translation an LZX compressor
// performs before encoding.
func TranslateE8(data []byte) {
	for i := 0; i < len(data)-10; i++ {
		if data[i] != 0xe8 {
			continue
		}
		pos := int32(i)
		rel := int32(binary.LittleEndian.Uint32(data[i+1:]))
		if rel >= -pos && rel < lzxE8MagicFileSize {
			var abs int32
			if rel < lzxE8MagicFileSize-pos {
				abs = rel + pos
			} else {
				abs = rel - lzxE8MagicFileSize
			}
			binary.LittleEndian.PutUint32(data[i+1:], uint32(abs))
		}
		i += 4
	}
}

type lzxItem struct {
	mainSym  int
	lenSym   int
	extra    uint
	extraVal uint32
}

// Block writes a verbatim or aligned block holding tokens. Matches whose
// offset equals a recent offset are coded as repeat matches.
func (e *LZXEncoder) Block(blockType int, tokens []Token) {
	e.BlockWithSize(blockType, tokens, -1)
}

// BlockWithSize is Block with the size field of the block header forced to
// size, for building corrupt streams. A negative size is computed from tokens.
func (e *LZXEncoder) BlockWithSize(blockType int, tokens []Token, headerSize int) {
	size := 0
	items := make([]lzxItem, len(tokens))
	mainFreqs := make([]uint32, e.numMainSyms)
	lenFreqs := make([]uint32, lzxLenSymbols)
	alignedFreqs := make([]uint32, lzxAlignedSymbols)
	aligned := blockType == LZXBlockAligned

	for i, t := range tokens {
		size += t.Size()
		if t.Length == 0 {
			items[i] = lzxItem{mainSym: int(t.Literal), lenSym: -1}
			mainFreqs[t.Literal]++
			continue
		}
		it := lzxItem{lenSym: -1}
		header := t.Length - lzxMinMatchLen
		if header >= lzxNumPrimaryLens {
			it.lenSym = header - lzxNumPrimaryLens
			header = lzxNumPrimaryLens
			lenFreqs[it.lenSym]++
		}

		offset := uint32(t.Offset)
		slot := -1
		for r := range e.recent {
			if e.recent[r] == offset {
				slot = r
				break
			}
		}
		if slot >= 0 {
			e.recent[slot] = e.recent[0]
			e.recent[0] = offset
		} else {
			adjusted := offset + lzxOffsetAdjustment
			slot = 3
			for lzxSlotBase[slot+1] <= adjusted {
				slot++
			}
			it.extra = lzxExtraBits[slot]
			it.extraVal = adjusted - lzxSlotBase[slot]
			if aligned && it.extra >= 3 {
				alignedFreqs[it.extraVal&7]++
			}
			e.recent[2] = e.recent[1]
			e.recent[1] = e.recent[0]
			e.recent[0] = offset
		}
		it.mainSym = lzxNumChars + slot*lzxNumLenHeaders + header
		mainFreqs[it.mainSym]++
		items[i] = it
	}

	mainLens := HuffmanLengths(mainFreqs, lzxMaxMainLen)
	lenLens := HuffmanLengths(lenFreqs, lzxMaxLenLen)
	if headerSize >= 0 {
		size = headerSize
	}
	e.blockHeader(blockType, size)

	var alignedCode *HuffmanCode
	if aligned {
		alignedCode = NewHuffmanCode(alignedFreqs, lzxMaxAlignedLen)
		for _, l := range alignedCode.Lens {
			e.w.WriteBits(uint32(l), 3)
		}
	}
	e.writeLens(e.mainLens[:lzxNumChars], mainLens[:lzxNumChars])
	e.writeLens(e.mainLens[lzxNumChars:], mainLens[lzxNumChars:])
	e.writeLens(e.lenLens, lenLens)
	copy(e.mainLens, mainLens)
	copy(e.lenLens, lenLens)

	mainCode := &HuffmanCode{Lens: mainLens, Codes: CanonicalCodes(mainLens)}
	lenCode := &HuffmanCode{Lens: lenLens, Codes: CanonicalCodes(lenLens)}
	for _, it := range items {
		mainCode.Put(&e.w, it.mainSym, lzxMaxMainLen)
		if it.lenSym >= 0 {
			lenCode.Put(&e.w, it.lenSym, lzxMaxLenLen)
		}
		if aligned && it.extra >= 3 {
			e.w.WriteBits(it.extraVal>>3, it.extra-3)
			alignedCode.Put(&e.w, int(it.extraVal&7), lzxMaxAlignedLen)
		} else {
			e.w.WriteBits(it.extraVal, it.extra)
		}
	}
}

// UncompressedBlock writes data as an uncompressed block.
func (e *LZXEncoder) UncompressedBlock(data []byte) {
	e.UncompressedBlockRecent(data, e.recent)
}

// UncompressedBlockRecent writes data as an uncompressed block whose header
// resets the recent offsets to recent.
func (e *LZXEncoder) UncompressedBlockRecent(data []byte, recent [3]uint32) {
	e.recent = recent
	e.blockHeader(LZXBlockUncompressed, len(data))
	e.w.EnsureBits(1)
	e.w.Align()
	for _, r := range e.recent {
		e.w.PutU32(r)
	}
	e.w.PutBytes(data)
	if len(data)&1 != 0 {
		e.w.PutU8(0)
	}
}

// RawBlockHeader writes just a block type and size, for building corrupt streams.
func (e *LZXEncoder) RawBlockHeader(blockType, size int) {
	e.blockHeader(blockType, size)
}

func (e *LZXEncoder) blockHeader(blockType, size int) {
	e.w.EnsureBits(4)
	e.w.PutBits(uint32(blockType), 3)
	if size == lzxDefaultBlockSize {
		e.w.PutBits(1, 1)
		return
	}
	e.w.PutBits(0, 1)
	e.w.WriteBits(uint32(size>>8), 8)
	e.w.WriteBits(uint32(size&0xff), 8)
}

type presymItem struct {
	sym      int
	extra    uint32
	extraLen uint
	// second is the delta symbol following a 19 run.
	second int
}

// writeLens codes cur as deltas against prev through a precode.
func (e *LZXEncoder) writeLens(prev, cur []uint8) {
	delta := func(i int) int {
		return (int(prev[i]) - int(cur[i]) + 17) % 17
	}
	var items []presymItem
	freqs := make([]uint32, lzxPrecodeSymbols)
	for i := 0; i < len(cur); {
		run := 1
		for i+run < len(cur) && cur[i+run] == cur[i] {
			run++
		}
		switch {
		case e.RunCodes && cur[i] == 0 && run >= 20:
			run = min(run, 51)
			items = append(items, presymItem{sym: 18, extra: uint32(run - 20), extraLen: 5})
		case e.RunCodes && cur[i] == 0 && run >= 4:
			run = min(run, 19)
			items = append(items, presymItem{sym: 17, extra: uint32(run - 4), extraLen: 4})
		case e.RunCodes && run >= 4:
			run = min(run, 5)
			items = append(items, presymItem{sym: 19, extra: uint32(run - 4), extraLen: 1, second: delta(i)})
			freqs[delta(i)]++
		default:
			run = 1
			items = append(items, presymItem{sym: delta(i)})
		}
		freqs[items[len(items)-1].sym]++
		i += run
	}

	code := NewHuffmanCode(freqs, lzxMaxPrecodeLen)
	for _, l := range code.Lens {
		e.w.WriteBits(uint32(l), 4)
	}
	for _, it := range items {
		code.Put(&e.w, it.sym, lzxMaxPrecodeLen)
		if it.extraLen > 0 {
			e.w.WriteBits(it.extra, it.extraLen)
		}
		if it.sym == 19 {
			code.Put(&e.w, it.second, lzxMaxPrecodeLen)
		}
	}
}

// Bytes returns the stream written so far.
func (e *LZXEncoder) Bytes() []byte {
	return e.w.Bytes()
}

// Take returns the stream written so far and starts a new one that continues
// the same session.
func (e *LZXEncoder) Take() []byte {
	b := e.w.Bytes()
	e.w = BitWriter{}
	return b
}
