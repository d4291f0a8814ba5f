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

import "encoding/binary"

// undoE8 reverses the x86 CALL translation applied before compression. Each
// 0xE8 byte is followed by a 32-bit operand that the encoder turned from a
// relative into an absolute target; base is the stream position of data[0].
// The last 10 bytes are never translated.
func undoE8(data []byte, base int) {
	for i := 0; i < len(data)-10; i++ {
		if data[i] != 0xe8 {
			continue
		}
		pos := int32(base + i)
		abs := int32(binary.LittleEndian.Uint32(data[i+1:]))
		if abs >= 0 {
			if abs < e8MagicFileSize {
				binary.LittleEndian.PutUint32(data[i+1:], uint32(abs-pos))
			}
		} else if abs >= -pos {
			binary.LittleEndian.PutUint32(data[i+1:], uint32(abs+e8MagicFileSize))
		}
		i += 4
	}
}
