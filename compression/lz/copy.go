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

// Package lz expands LZ77 back references in place.
package lz

import "encoding/binary"

const wordSize = 8

// Copy copies a match of length bytes starting offset bytes back from pos into
// buf[pos:], and returns pos+length. The result is the same as a left-to-right
// byte copy, so overlapping matches (offset < length) repeat with period offset.
//
// The caller has validated the match: 1 <= offset <= pos, length >= 1 and
// pos+length <= len(buf). Copy may write scratch bytes between pos+length and
// len(buf) but never past len(buf). minLength is the smallest match the format
// can encode; matches that short skip the bulk paths.
func Copy(buf []byte, pos, length, offset, minLength int) int {
	end := pos + length
	src := pos - offset

	if length > minLength && len(buf)-end >= wordSize-1 {
		switch {
		case offset >= wordSize:
			for pos < end {
				binary.LittleEndian.PutUint64(buf[pos:], binary.LittleEndian.Uint64(buf[src:]))
				pos += wordSize
				src += wordSize
			}
			return end
		case offset == 1:
			v := uint64(buf[pos-1]) * 0x0101010101010101
			for pos < end {
				binary.LittleEndian.PutUint64(buf[pos:], v)
				pos += wordSize
			}
			return end
		}
	}

	if length <= minLength {
		for ; pos < end; pos, src = pos+1, src+1 {
			buf[pos] = buf[src]
		}
		return end
	}
	if offset >= length {
		copy(buf[pos:end], buf[src:src+length])
		return end
	}

	// Overlapping copy: buf[src:pos] is periodic in offset, so it can be
	// doubled into the destination until the match is complete.
	for pos < end {
		pos += copy(buf[pos:end], buf[src:pos])
	}
	return end
}
