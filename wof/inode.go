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
	"io"

	"github.com/awslabs/syscompress/compression"
)

// Inode is what a Context needs from the filesystem layer.
type Inode interface {
	// ReadAt reads the compressed stream (the WofCompressedData named stream).
	io.ReaderAt
	// CompressedSize is the length of the compressed stream.
	CompressedSize() int64
	// Size is the logical, uncompressed size of the file.
	Size() int64
	// ReparsePoint returns the file's raw reparse buffer.
	ReparsePoint() ([]byte, error)
}

type streamInode struct {
	io.ReaderAt
	compressedSize int64
	size           int64
	reparse        []byte
}

// NewStreamInode returns an Inode for a compressed stream that is already at
// hand, e.g. a copy of a file's WofCompressedData stream.
func NewStreamInode(r io.ReaderAt, compressedSize, size int64, format compression.Format) Inode {
	return &streamInode{
		ReaderAt:       r,
		compressedSize: compressedSize,
		size:           size,
		reparse:        MarshalReparsePoint(format),
	}
}

func (s *streamInode) CompressedSize() int64 { return s.compressedSize }

func (s *streamInode) Size() int64 { return s.size }

func (s *streamInode) ReparsePoint() ([]byte, error) { return s.reparse, nil }
