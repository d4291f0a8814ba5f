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

package wof

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/awslabs/syscompress/compression"
)

// chunkTable holds the absolute start of every chunk in the compressed
// stream, followed by the stream length, so chunk i occupies
// [offsets[i], offsets[i+1]).
type chunkTable struct {
	offsets []int64
}

func (t *chunkTable) numChunks() int {
	return len(t.offsets) - 1
}

func (t *chunkTable) storedSize(id compression.ChunkID) int64 {
	return t.offsets[id+1] - t.offsets[id]
}

func numChunks(size int64, chunkSize int) int64 {
	n := size / int64(chunkSize)
	if size%int64(chunkSize) != 0 {
		n++
	}
	return n
}

func chunkLen(size int64, chunkSize int, id compression.ChunkID) int {
	start := int64(id) * int64(chunkSize)
	if rem := size - start; rem < int64(chunkSize) {
		return int(rem)
	}
	return chunkSize
}

// readChunkTable reads the table at the head of the compressed stream. It
// holds one entry per chunk after the first, each giving the chunk's start
// relative to the end of the table.
func readChunkTable(r io.ReaderAt, compressedSize, size int64, chunkSize int) (*chunkTable, error) {
	n := numChunks(size, chunkSize)
	if n == 0 {
		return &chunkTable{offsets: []int64{0}}, nil
	}
	entrySize := int64(4)
	if size > math.MaxUint32 {
		entrySize = 8
	}
	// Every chunk stores at least one byte after the table.
	if n > compressedSize || n-1 > (compressedSize-n)/entrySize {
		return nil, fmt.Errorf("%d chunks and their table do not fit in %d byte stream: %w",
			n, compressedSize, compression.ErrInvalidMetadata)
	}
	tableSize := (n - 1) * entrySize
	raw := make([]byte, tableSize)
	if err := readFull(r, raw, 0); err != nil {
		return nil, fmt.Errorf("failed to read chunk table: %w", err)
	}

	offsets := make([]int64, n+1)
	offsets[0] = tableSize
	for i := int64(1); i < n; i++ {
		var rel uint64
		if entrySize == 4 {
			rel = uint64(binary.LittleEndian.Uint32(raw[(i-1)*4:]))
		} else {
			rel = binary.LittleEndian.Uint64(raw[(i-1)*8:])
		}
		if rel > uint64(compressedSize-tableSize) {
			return nil, fmt.Errorf("chunk %d starts past the end of the stream: %w", i, compression.ErrInvalidMetadata)
		}
		offsets[i] = tableSize + int64(rel)
	}
	offsets[n] = compressedSize

	for i := int64(0); i < n; i++ {
		stored := offsets[i+1] - offsets[i]
		if stored <= 0 {
			return nil, fmt.Errorf("chunk %d has stored size %d: %w", i, stored, compression.ErrInvalidMetadata)
		}
		if stored > int64(chunkLen(size, chunkSize, compression.ChunkID(i))) {
			return nil, fmt.Errorf("chunk %d stored size %d exceeds its uncompressed size: %w",
				i, stored, compression.ErrInvalidMetadata)
		}
	}
	return &chunkTable{offsets: offsets}, nil
}

// readFull fills b from r at off. A short read is io.ErrUnexpectedEOF.
func readFull(r io.ReaderAt, b []byte, off int64) error {
	n, err := r.ReadAt(b, off)
	if n == len(b) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}
