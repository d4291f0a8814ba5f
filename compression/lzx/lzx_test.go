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

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/awslabs/syscompress/compression"
	"github.com/awslabs/syscompress/util/testutil"
	"github.com/google/go-cmp/cmp"
)

func newTestDecompressor(t *testing.T, windowSize int) *Decompressor {
	t.Helper()
	d, err := NewDecompressor(windowSize)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestNewDecompressorWindowSize(t *testing.T) {
	for _, size := range []int{0, 1 << 14, 3 << 14, 1 << 19} {
		if _, err := NewDecompressor(size); err == nil {
			t.Fatalf("window size %d accepted", size)
		}
	}
	for _, size := range []int{1 << 15, 1 << 16, 1 << 17, 1 << 18} {
		d := newTestDecompressor(t, size)
		if d.WindowSize() != size {
			t.Fatalf("unexpected window size %d", d.WindowSize())
		}
	}
	if n := NumMainSymbols(1 << 15); n != 496 {
		t.Fatalf("unexpected main symbol count %d for a 32k window", n)
	}
}

func withCalls(rand *testutil.TestRand, size int) []byte {
	data := rand.CompressibleData(size)
	for i := 0; i+5 <= len(data); i += 50 + rand.IntN(200) {
		data[i] = 0xe8
		var rel int32
		switch rand.IntN(4) {
		case 0:
			rel = int32(rand.IntN(1 << 16))
		case 1:
			rel = -int32(rand.IntN(i + 1))
		case 2:
			rel = int32(rand.Uint32())
		default:
			rel = e8MagicFileSize - int32(rand.IntN(i+1))
		}
		binary.LittleEndian.PutUint32(data[i+1:], uint32(rel))
	}
	return data
}

func TestDecompress(t *testing.T) {
	rand := testutil.NewTestRand(t)
	tests := []struct {
		name string
		data []byte
	}{
		{name: "single byte", data: []byte{'z'}},
		{name: "text", data: rand.CompressibleData(10000)},
		{name: "full window", data: rand.CompressibleData(DefaultBlockSize)},
		{name: "random", data: rand.RandomByteData(DefaultBlockSize)},
		{name: "zeros", data: make([]byte, 30000)},
		{name: "x86 calls", data: withCalls(rand, DefaultBlockSize)},
		{name: "call in tail", data: append(rand.RandomText(100), 0xe8, 1, 2, 3, 4, 5, 6)},
	}
	d := newTestDecompressor(t, DefaultBlockSize)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dst := make([]byte, len(tc.data))
			if err := d.Decompress(dst, testutil.CompressLZX(tc.data)); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.data, dst); diff != "" {
				t.Fatalf("unexpected output (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecompressWithoutRunCodes(t *testing.T) {
	rand := testutil.NewTestRand(t)
	data := rand.CompressibleData(5000)
	e := testutil.NewLZXEncoder(DefaultBlockSize)
	e.RunCodes = false
	e.Block(testutil.LZXBlockVerbatim, testutil.GreedyParse(data, MaxMatchLen, DefaultBlockSize-3))
	dst := make([]byte, len(data))
	if err := newTestDecompressor(t, DefaultBlockSize).Decompress(dst, e.Bytes()); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, dst) {
		t.Fatal("unexpected output")
	}
}

func TestDecompressBlockTypes(t *testing.T) {
	for _, windowSize := range []int{1 << 15, 1 << 17} {
		rand := testutil.NewTestRand(t)
		e := testutil.NewLZXEncoder(windowSize)
		var want []byte

		// Verbatim block with explicit offsets.
		text := rand.RandomText(3000)
		tokens := testutil.GreedyParse(append(text, text[:1000]...), MaxMatchLen, windowSize)
		e.Block(testutil.LZXBlockVerbatim, tokens)
		want = testutil.Expand(want, tokens)

		// Aligned block: far offsets use the aligned code, near ones do not.
		tokens = []testutil.Token{testutil.Lit('!')}
		for _, off := range []int{1, 3, 6, 13, 100, 1000, 2999, 1000, 3000, 100} {
			tokens = append(tokens, testutil.Match(off, 2+rand.IntN(MaxMatchLen-1)))
		}
		e.Block(testutil.LZXBlockAligned, tokens)
		want = testutil.Expand(want, tokens)

		// Odd sized uncompressed block, so a pad byte follows.
		raw := rand.RandomByteData(777)
		e.UncompressedBlock(raw)
		want = append(want, raw...)

		// Repeat offsets carry over the uncompressed block.
		tokens = []testutil.Token{
			testutil.Match(100, 20),
			testutil.Match(3000, 9),
			testutil.Match(1000, 43),
			testutil.Match(3000, 2),
			testutil.Lit('.'),
		}
		e.Block(testutil.LZXBlockVerbatim, tokens)
		want = testutil.Expand(want, tokens)

		// An uncompressed block header sets the recent offsets.
		raw = rand.RandomByteData(64)
		e.UncompressedBlockRecent(raw, [3]uint32{7, 33, 64})
		want = append(want, raw...)
		tokens = []testutil.Token{testutil.Match(33, 40), testutil.Match(64, 8), testutil.Match(7, 7)}
		e.Block(testutil.LZXBlockAligned, tokens)
		want = testutil.Expand(want, tokens)

		dst := make([]byte, len(want))
		if err := newTestDecompressor(t, windowSize).Decompress(dst, e.Bytes()); err != nil {
			t.Fatalf("window %d: %v", windowSize, err)
		}
		if diff := cmp.Diff(want, dst); diff != "" {
			t.Fatalf("window %d: unexpected output (-want +got):\n%s", windowSize, diff)
		}
	}
}

func TestDecompressAtContinuesSession(t *testing.T) {
	rand := testutil.NewTestRand(t)
	first := rand.RandomText(5000)
	e := testutil.NewLZXEncoder(DefaultBlockSize)
	e.Block(testutil.LZXBlockVerbatim, testutil.Literals(first))
	src1 := e.Take()

	tokens := []testutil.Token{
		testutil.Match(5000, 200),
		testutil.Lit('#'),
		testutil.Match(5000, 100),
		testutil.Match(17, 30),
	}
	e.Block(testutil.LZXBlockVerbatim, tokens)
	src2 := e.Take()
	want := testutil.Expand(first, tokens)

	d := newTestDecompressor(t, DefaultBlockSize)
	window := make([]byte, len(want))
	if err := d.DecompressAt(window[:len(first)], 0, src1); err != nil {
		t.Fatal(err)
	}
	if err := d.DecompressAt(window, len(first), src2); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, window); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}

	// A fresh session does not know the earlier lengths or offsets.
	d.Reset()
	if err := d.DecompressAt(window, len(first), src2); err == nil {
		if bytes.Equal(want, window) {
			t.Fatal("continuation decoded without its session state")
		}
	}
}

func TestDecompressErrors(t *testing.T) {
	rawHeader := func(blockType, size int) []byte {
		e := testutil.NewLZXEncoder(DefaultBlockSize)
		e.RawBlockHeader(blockType, size)
		return append(e.Bytes(), make([]byte, 64)...)
	}
	uncompressed := func(data []byte, recent [3]uint32) []byte {
		e := testutil.NewLZXEncoder(DefaultBlockSize)
		e.UncompressedBlockRecent(data, recent)
		return e.Bytes()
	}
	verbatim := func(tokens ...testutil.Token) []byte {
		e := testutil.NewLZXEncoder(DefaultBlockSize)
		e.Block(testutil.LZXBlockVerbatim, tokens)
		return e.Bytes()
	}
	overrun := testutil.NewLZXEncoder(DefaultBlockSize)
	overrun.BlockWithSize(testutil.LZXBlockVerbatim, []testutil.Token{testutil.Lit('a'), testutil.Match(1, 10)}, 5)
	truncated := uncompressed(make([]byte, 20), [3]uint32{1, 1, 1})
	truncated = truncated[:len(truncated)-5]

	tests := []struct {
		name    string
		src     []byte
		size    int
		wantErr error
	}{
		{name: "block type 0", src: rawHeader(0, 10), size: 10, wantErr: compression.ErrInvalidBlockType},
		{name: "block type 4", src: rawHeader(4, 10), size: 10, wantErr: compression.ErrInvalidBlockType},
		{name: "block type 7", src: rawHeader(7, 10), size: 10, wantErr: compression.ErrInvalidBlockType},
		{name: "empty block", src: rawHeader(1, 0), size: 10, wantErr: compression.ErrInvalidBlockSize},
		{name: "block larger than output", src: rawHeader(1, 100), size: 50, wantErr: compression.ErrInvalidBlockSize},
		{name: "zero recent offset", src: uncompressed(make([]byte, 4), [3]uint32{1, 0, 1}), size: 4, wantErr: compression.ErrInvalidReference},
		{name: "short uncompressed block", src: truncated, size: 20, wantErr: compression.ErrTruncatedInput},
		{name: "match overruns block", src: overrun.Bytes(), size: 5, wantErr: compression.ErrInvalidReference},
		{name: "offset before start", src: verbatim(testutil.Lit('a'), testutil.Match(5, 3)), size: 4, wantErr: compression.ErrInvalidReference},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := newTestDecompressor(t, DefaultBlockSize).Decompress(make([]byte, tc.size), tc.src)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestDecompressTruncatedTerminates(t *testing.T) {
	rand := testutil.NewTestRand(t)
	data := withCalls(rand, 20000)
	src := testutil.CompressLZX(data)
	d := newTestDecompressor(t, DefaultBlockSize)
	dst := make([]byte, len(data))
	for _, n := range []int{0, 1, 2, 10, len(src) / 3, len(src) - 1} {
		_ = d.Decompress(dst, src[:n])
	}
}

func TestUndoE8(t *testing.T) {
	tests := []struct {
		name string
		pos  int
		in   int32
		want int32
	}{
		{name: "absolute target", pos: 100, in: 150, want: 50},
		{name: "negative relative", pos: 100, in: 40, want: -60},
		{name: "compensated", pos: 100, in: -20, want: e8MagicFileSize - 20},
		{name: "past file size", pos: 100, in: e8MagicFileSize, want: e8MagicFileSize},
		{name: "before start", pos: 100, in: -101, want: -101},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data := make([]byte, tc.pos+20)
			data[tc.pos] = 0xe8
			binary.LittleEndian.PutUint32(data[tc.pos+1:], uint32(tc.in))
			undoE8(data, 0)
			if got := int32(binary.LittleEndian.Uint32(data[tc.pos+1:])); got != tc.want {
				t.Fatalf("want=%d got=%d", tc.want, got)
			}

			// The same call seen through a window offset by base.
			data2 := make([]byte, 20)
			data2[0] = 0xe8
			binary.LittleEndian.PutUint32(data2[1:], uint32(tc.in))
			undoE8(data2, tc.pos)
			if got := int32(binary.LittleEndian.Uint32(data2[1:])); got != tc.want {
				t.Fatalf("with base: want=%d got=%d", tc.want, got)
			}
		})
	}
}

func TestUndoE8InvertsTranslation(t *testing.T) {
	rand := testutil.NewTestRand(t)
	data := withCalls(rand, 8000)
	translated := bytes.Clone(data)
	testutil.TranslateE8(translated)
	if bytes.Equal(data, translated) {
		t.Fatal("translation changed nothing")
	}
	undoE8(translated, 0)
	if diff := cmp.Diff(data, translated); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
}
