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

import (
	"fmt"
	"strings"
)

// ChunkID will hold any chunk related values (chunk index, chunk count, etc)
type ChunkID int64

// Format is the compression algorithm recorded in a WOF file provider reparse point.
// The numeric values are the on-disk FILE_PROVIDER_COMPRESSION_* values.
type Format uint32

const (
	XPRESS4K  Format = 0
	LZX       Format = 1
	XPRESS8K  Format = 2
	XPRESS16K Format = 3
)

// ChunkSize returns the uncompressed size of every chunk but the last.
func (f Format) ChunkSize() int {
	switch f {
	case XPRESS4K:
		return 4096
	case LZX:
		return 32768
	case XPRESS8K:
		return 8192
	case XPRESS16K:
		return 16384
	}
	return 0
}

// Valid reports whether f is one of the four known algorithms.
func (f Format) Valid() bool {
	return f <= XPRESS16K
}

func (f Format) String() string {
	switch f {
	case XPRESS4K:
		return "xpress4k"
	case LZX:
		return "lzx"
	case XPRESS8K:
		return "xpress8k"
	case XPRESS16K:
		return "xpress16k"
	}
	return fmt.Sprintf("unknown(%d)", uint32(f))
}

// ParseFormat is the inverse of Format.String.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "xpress4k", "xpress":
		return XPRESS4K, nil
	case "lzx":
		return LZX, nil
	case "xpress8k":
		return XPRESS8K, nil
	case "xpress16k":
		return XPRESS16K, nil
	}
	return 0, fmt.Errorf("unexpected compression format: %q", s)
}

// Decompressor decodes a single chunk. dst must be sized to the chunk's
// uncompressed length; it is filled completely or an error is returned.
type Decompressor interface {
	Decompress(dst, src []byte) error
}

func (f Format) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("unexpected compression format: %d", uint32(f))
	}
	return []byte(f.String()), nil
}

func (f *Format) UnmarshalText(b []byte) error {
	v, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
