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

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/awslabs/syscompress/compression"
)

// ChunkCompressor compresses one chunk. Returning nil stores the chunk raw.
type ChunkCompressor func(chunk []byte) []byte

// CompressorFor returns the reference compressor for format.
func CompressorFor(format compression.Format) ChunkCompressor {
	if format == compression.LZX {
		return CompressLZX
	}
	return CompressXpress
}

// BuildWOFStream lays data out as a WofCompressedData stream: the chunk
// offset table followed by each chunk, compressed when that saves space.
func BuildWOFStream(data []byte, chunkSize int, compress ChunkCompressor) []byte {
	var chunks [][]byte
	for off := 0; off < len(data); off += chunkSize {
		chunk := data[off:min(off+chunkSize, len(data))]
		c := compress(chunk)
		if c == nil || len(c) >= len(chunk) {
			c = chunk
		}
		chunks = append(chunks, c)
	}
	return AssembleWOFStream(int64(len(data)), chunks)
}

// AssembleWOFStream writes the chunk table for already stored chunks and
// appends them. size is the logical file size and picks the entry width.
func AssembleWOFStream(size int64, chunks [][]byte) []byte {
	var buf bytes.Buffer
	end := uint64(0)
	for i, c := range chunks {
		end += uint64(len(c))
		if i == len(chunks)-1 {
			break
		}
		if size > math.MaxUint32 {
			binary.Write(&buf, binary.LittleEndian, end)
		} else {
			binary.Write(&buf, binary.LittleEndian, uint32(end))
		}
	}
	for _, c := range chunks {
		buf.Write(c)
	}
	return buf.Bytes()
}
