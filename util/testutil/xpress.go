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

import "math/bits"

const (
	xpressNumSymbols     = 512
	xpressMaxCodewordLen = 15
	xpressMaxOffset      = 1<<16 - 1
	xpressMaxMatchLen    = 3 + 1<<16 - 1
)

// CompressXpress encodes data as one XPRESS-Huffman chunk using a greedy parse.
func CompressXpress(data []byte) []byte {
	return EncodeXpress(GreedyParse(data, xpressMaxMatchLen, xpressMaxOffset))
}

// EncodeXpress encodes a parse as one XPRESS-Huffman chunk. The tokens are
// not checked against any data, so invalid streams can be built on purpose.
func EncodeXpress(tokens []Token) []byte {
	syms := make([]int, len(tokens))
	freqs := make([]uint32, xpressNumSymbols)
	for i, t := range tokens {
		if t.Length == 0 {
			syms[i] = int(t.Literal)
		} else {
			l := min(t.Length-3, 15)
			syms[i] = 256 | (bits.Len(uint(t.Offset))-1)<<4 | l
		}
		freqs[syms[i]]++
	}
	code := NewHuffmanCode(freqs, xpressMaxCodewordLen)
	return EncodeXpressWithLens(tokens, code.Lens)
}

// EncodeXpressWithLens is EncodeXpress with caller supplied codeword lengths,
// which must give every symbol in tokens a codeword.
func EncodeXpressWithLens(tokens []Token, lens []uint8) []byte {
	codes := CanonicalCodes(lens)
	code := &HuffmanCode{Lens: lens, Codes: codes}

	var w BitWriter
	hdr := make([]byte, xpressNumSymbols/2)
	for i := range hdr {
		hdr[i] = lens[2*i]&0xf | lens[2*i+1]<<4
	}
	w.PutBytes(hdr)

	for _, t := range tokens {
		if t.Length == 0 {
			code.Put(&w, int(t.Literal), xpressMaxCodewordLen)
			continue
		}
		log2 := uint(bits.Len(uint(t.Offset)) - 1)
		l := t.Length - 3
		code.Put(&w, 256|int(log2)<<4|min(l, 15), xpressMaxCodewordLen)
		w.EnsureBits(16)
		w.PutBits(uint32(t.Offset)-1<<log2, log2)
		if l >= 15 {
			if l-15 < 0xff {
				w.PutU8(byte(l - 15))
			} else {
				w.PutU8(0xff)
				w.PutU16(uint16(l))
			}
		}
	}
	return w.Bytes()
}
