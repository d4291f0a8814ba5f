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

package lzx

const (
	// NumChars is the number of literal symbols at the start of the main alphabet.
	NumChars = 256
	// NumPrimaryLens is the number of match lengths coded directly in a main symbol.
	NumPrimaryLens = 7
	// NumLenHeaders is the number of length headers per offset slot; the last
	// one defers to the length code.
	NumLenHeaders = NumPrimaryLens + 1
	// MinMatchLen is added to every coded match length.
	MinMatchLen = 2
	// MaxMatchLen is the longest match the format can code.
	MaxMatchLen = 257
	// NumRecentOffsets is the number of recent offsets (R0, R1, R2).
	NumRecentOffsets = 3
	// OffsetAdjustment is subtracted from explicit offsets, which never
	// collide with the recent offset slots.
	OffsetAdjustment = NumRecentOffsets - 1
	// DefaultBlockSize is the size of a block whose header sets the default flag.
	DefaultBlockSize = 32768
	// LenCodeNumSymbols is the size of the length code alphabet.
	LenCodeNumSymbols = 249
	// PrecodeNumSymbols is the size of the precode used for codeword lengths.
	PrecodeNumSymbols = 20
	// AlignedNumSymbols is the size of the aligned offset code alphabet.
	AlignedNumSymbols = 8
	// NumAlignedBits is the number of low offset bits the aligned code carries.
	NumAlignedBits = 3
	// MinWindowSize and MaxWindowSize bound the supported window sizes.
	MinWindowSize = 1 << 15
	MaxWindowSize = 1 << 18

	e8MagicFileSize    = 12000000
	maxPrecodeLen      = 15
	maxMainCodewordLen = 16
	maxLenCodewordLen  = 16
	maxAlignedLen      = 7

	mainTableBits    = 11
	lenTableBits     = 10
	precodeTableBits = 6
	alignedTableBits = 7

	blockTypeVerbatim     = 1
	blockTypeAligned      = 2
	blockTypeUncompressed = 3

	maxOffsetSlots = 36

	// readLensMaxOverrun is how far a single length run can go past the end
	// of an alphabet: the longest run less one.
	readLensMaxOverrun = 50
)

var (
	// extraOffsetBits[slot] is the number of extra bits following an offset slot.
	extraOffsetBits [maxOffsetSlots]uint
	// offsetSlotBase[slot] is the smallest adjusted offset coded by slot.
	offsetSlotBase [maxOffsetSlots + 1]uint32
)

func init() {
	for slot := range extraOffsetBits {
		if slot >= 4 {
			extraOffsetBits[slot] = uint(slot/2 - 1)
		}
		offsetSlotBase[slot+1] = offsetSlotBase[slot] + 1<<extraOffsetBits[slot]
	}
}

// numOffsetSlots returns how many offset slots a window of the given size uses.
func numOffsetSlots(windowSize int) int {
	n := 0
	for offsetSlotBase[n] < uint32(windowSize) {
		n++
	}
	return n
}

// NumMainSymbols returns the size of the main code alphabet for windowSize.
func NumMainSymbols(windowSize int) int {
	return NumChars + numOffsetSlots(windowSize)*NumLenHeaders
}
