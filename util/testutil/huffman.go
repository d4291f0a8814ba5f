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

// HuffmanCode is a canonical prefix code built from symbol frequencies.
type HuffmanCode struct {
	Lens  []uint8
	Codes []uint32
}

// NewHuffmanCode builds a code of at most maxLen bits per codeword for the
// symbols with a non-zero frequency. A single used symbol gets a one bit code.
func NewHuffmanCode(freqs []uint32, maxLen uint) *HuffmanCode {
	lens := HuffmanLengths(freqs, maxLen)
	return &HuffmanCode{Lens: lens, Codes: CanonicalCodes(lens)}
}

// Put writes sym the way huffman.Table.Decode reads it.
func (c *HuffmanCode) Put(w *BitWriter, sym int, maxLen uint) {
	if c.Lens[sym] == 0 {
		panic("testutil: symbol has no codeword")
	}
	w.EnsureBits(maxLen)
	w.PutBits(c.Codes[sym], uint(c.Lens[sym]))
}

// CanonicalCodes assigns codewords in order of increasing length, then
// increasing symbol.
func CanonicalCodes(lens []uint8) []uint32 {
	var counts [33]uint32
	for _, l := range lens {
		counts[l]++
	}
	counts[0] = 0
	var next [33]uint32
	code := uint32(0)
	for l := 1; l < len(next); l++ {
		code = (code + counts[l-1]) << 1
		next[l] = code
	}
	codes := make([]uint32, len(lens))
	for sym, l := range lens {
		if l != 0 {
			codes[sym] = next[l]
			next[l]++
		}
	}
	return codes
}

// HuffmanLengths computes length-limited Huffman codeword lengths. When the
// tree is too deep the frequencies are halved and the tree rebuilt.
func HuffmanLengths(freqs []uint32, maxLen uint) []uint8 {
	f := append([]uint32(nil), freqs...)
	for {
		lens, depth := huffmanLengths(f)
		if depth <= maxLen {
			return lens
		}
		for i := range f {
			if f[i] > 1 {
				f[i] = (f[i] + 1) / 2
			}
		}
	}
}

type huffNode struct {
	freq        uint64
	left, right int
}

func huffmanLengths(freqs []uint32) ([]uint8, uint) {
	lens := make([]uint8, len(freqs))
	var nodes []huffNode
	var leaves []int
	var active []int
	for sym, f := range freqs {
		if f == 0 {
			continue
		}
		active = append(active, len(nodes))
		leaves = append(leaves, sym)
		nodes = append(nodes, huffNode{freq: uint64(f), left: -1, right: -1})
	}
	switch len(active) {
	case 0:
		return lens, 0
	case 1:
		lens[leaves[0]] = 1
		return lens, 1
	}

	takeMin := func() int {
		best := 0
		for i := range active {
			if nodes[active[i]].freq < nodes[active[best]].freq {
				best = i
			}
		}
		n := active[best]
		active = append(active[:best], active[best+1:]...)
		return n
	}
	for len(active) > 1 {
		a := takeMin()
		b := takeMin()
		active = append(active, len(nodes))
		nodes = append(nodes, huffNode{freq: nodes[a].freq + nodes[b].freq, left: a, right: b})
	}

	var maxDepth uint
	var walk func(n int, depth uint)
	walk = func(n int, depth uint) {
		if nodes[n].left < 0 {
			lens[leaves[n]] = uint8(depth)
			maxDepth = max(maxDepth, depth)
			return
		}
		walk(nodes[n].left, depth+1)
		walk(nodes[n].right, depth+1)
	}
	walk(active[0], 0)
	return lens, maxDepth
}
