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

	"github.com/awslabs/syscompress/compression"
)

const (
	// ReparseTagWOF is IO_REPARSE_TAG_WOF.
	ReparseTagWOF = 0x80000017

	wofCurrentVersion          = 1
	wofProviderFile            = 2
	fileProviderCurrentVersion = 1

	reparseHeaderSize = 8
	// wofExternalInfo (version, provider) followed by
	// fileProviderExternalInfoV1 (version, algorithm).
	wofReparseDataSize = 16
	ReparsePointSize   = reparseHeaderSize + wofReparseDataSize
)

// ParseReparsePoint returns the compression format recorded in a WOF file
// provider reparse buffer.
func ParseReparsePoint(b []byte) (compression.Format, error) {
	if len(b) < ReparsePointSize {
		return 0, fmt.Errorf("reparse point is %d bytes, want at least %d: %w", len(b), ReparsePointSize, compression.ErrInvalidMetadata)
	}
	if tag := binary.LittleEndian.Uint32(b[0:]); tag != ReparseTagWOF {
		return 0, fmt.Errorf("reparse tag 0x%08x is not WOF: %w", tag, compression.ErrInvalidMetadata)
	}
	if n := binary.LittleEndian.Uint16(b[4:]); n != wofReparseDataSize {
		return 0, fmt.Errorf("WOF reparse data is %d bytes, want %d: %w", n, wofReparseDataSize, compression.ErrInvalidMetadata)
	}
	data := b[reparseHeaderSize:]
	if v := binary.LittleEndian.Uint32(data[0:]); v != wofCurrentVersion {
		return 0, fmt.Errorf("unsupported WOF version %d: %w", v, compression.ErrInvalidMetadata)
	}
	if p := binary.LittleEndian.Uint32(data[4:]); p != wofProviderFile {
		return 0, fmt.Errorf("WOF provider %d is not the file provider: %w", p, compression.ErrInvalidMetadata)
	}
	if v := binary.LittleEndian.Uint32(data[8:]); v != fileProviderCurrentVersion {
		return 0, fmt.Errorf("unsupported file provider version %d: %w", v, compression.ErrInvalidMetadata)
	}
	format := compression.Format(binary.LittleEndian.Uint32(data[12:]))
	if !format.Valid() {
		return 0, fmt.Errorf("compression algorithm %s: %w", format, compression.ErrInvalidMetadata)
	}
	return format, nil
}

// MarshalReparsePoint builds the reparse buffer Windows writes for a file
// compressed with format.
func MarshalReparsePoint(format compression.Format) []byte {
	b := make([]byte, ReparsePointSize)
	binary.LittleEndian.PutUint32(b[0:], ReparseTagWOF)
	binary.LittleEndian.PutUint16(b[4:], wofReparseDataSize)
	binary.LittleEndian.PutUint32(b[8:], wofCurrentVersion)
	binary.LittleEndian.PutUint32(b[12:], wofProviderFile)
	binary.LittleEndian.PutUint32(b[16:], fileProviderCurrentVersion)
	binary.LittleEndian.PutUint32(b[20:], uint32(format))
	return b
}
