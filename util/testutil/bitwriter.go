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

// BitWriter produces input for bitstream.Reader. It mirrors the reader's
// refill pattern: every EnsureBits that would make the reader fetch a coding
// unit reserves one at the current end of the output, and literal bytes are
// appended after the last reserved unit, which is where the reader's byte
// cursor will be when it reads them.
//
// Callers must issue the same EnsureBits/PutBits/literal sequence the decoder
// issues EnsureBits/RemoveBits/literal reads.
type BitWriter struct {
	out []byte
	// units holds the offsets of reserved coding units that still have room,
	// oldest first; used counts the bits written into units[0].
	units []int
	used  uint
}

func (w *BitWriter) avail() uint {
	return uint(16*len(w.units)) - w.used
}

// EnsureBits mirrors bitstream.Reader.EnsureBits.
func (w *BitWriter) EnsureBits(n uint) {
	if w.avail() >= n {
		return
	}
	w.units = append(w.units, len(w.out))
	w.out = append(w.out, 0, 0)
}

// PutBits writes the low n bits of v, most significant first, into bits
// previously made available by EnsureBits.
func (w *BitWriter) PutBits(v uint32, n uint) {
	if n > w.avail() {
		panic("testutil: PutBits without EnsureBits")
	}
	for i := int(n) - 1; i >= 0; i-- {
		if v>>uint(i)&1 != 0 {
			off := w.units[0]
			unit := binary.LittleEndian.Uint16(w.out[off:])
			unit |= 1 << (15 - w.used)
			binary.LittleEndian.PutUint16(w.out[off:], unit)
		}
		w.used++
		if w.used == 16 {
			w.units = w.units[1:]
			w.used = 0
		}
	}
}

// WriteBits mirrors bitstream.Reader.ReadBits.
func (w *BitWriter) WriteBits(v uint32, n uint) {
	w.EnsureBits(n)
	w.PutBits(v, n)
}

// PutU8 appends a literal byte.
func (w *BitWriter) PutU8(b byte) {
	w.out = append(w.out, b)
}

// PutU16 appends a literal little endian uint16.
func (w *BitWriter) PutU16(v uint16) {
	w.out = binary.LittleEndian.AppendUint16(w.out, v)
}

// PutU32 appends a literal little endian uint32.
func (w *BitWriter) PutU32(v uint32) {
	w.out = binary.LittleEndian.AppendUint32(w.out, v)
}

// PutBytes appends literal bytes.
func (w *BitWriter) PutBytes(b []byte) {
	w.out = append(w.out, b...)
}

// Align mirrors bitstream.Reader.Align: the unused bits of reserved units stay zero.
func (w *BitWriter) Align() {
	w.units = w.units[:0]
	w.used = 0
}

// Bytes returns the stream written so far.
func (w *BitWriter) Bytes() []byte {
	return w.out
}
