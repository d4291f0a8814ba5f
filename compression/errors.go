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

package compression

import "errors"

var (
	// ErrMalformedTable is returned when a set of codeword lengths can't form a prefix code.
	ErrMalformedTable = errors.New("malformed huffman code lengths")
	// ErrTruncatedInput is returned when the compressed data ends before a declared literal run.
	ErrTruncatedInput = errors.New("compressed data truncated")
	// ErrInvalidReference is returned when a match reaches before the start of the
	// output or past the end of the block.
	ErrInvalidReference = errors.New("invalid match reference")
	// ErrInvalidBlockType is returned for an unknown LZX block type.
	ErrInvalidBlockType = errors.New("invalid block type")
	// ErrInvalidBlockSize is returned when an LZX block is empty or overruns the output.
	ErrInvalidBlockSize = errors.New("invalid block size")
	// ErrInvalidMetadata is returned when the reparse point or chunk table doesn't
	// describe a usable compressed stream.
	ErrInvalidMetadata = errors.New("invalid system compression metadata")
)
