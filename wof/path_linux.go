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
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	// ntfs-3g exposes the raw reparse buffer through this xattr.
	reparseXattr = "system.ntfs_reparse_data"
	// Named stream holding the compressed data, reachable on an ntfs-3g
	// mount with streams_interface=windows.
	compressedStreamSuffix = ":WofCompressedData"
)

// FileInode is an Inode backed by a file on an ntfs-3g mount.
type FileInode struct {
	*os.File
	compressedSize int64
	size           int64
	reparse        []byte
}

var _ Inode = &FileInode{}

// OpenPath opens the system compressed file at path. The caller closes the
// returned inode.
func OpenPath(path string) (*FileInode, error) {
	rp, err := getxattr(path, reparseXattr)
	if err != nil {
		return nil, fmt.Errorf("failed to read reparse point of %q: %w", path, err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path + compressedStreamSuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed stream of %q: %w", path, err)
	}
	sfi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &FileInode{
		File:           f,
		compressedSize: sfi.Size(),
		size:           fi.Size(),
		reparse:        rp,
	}, nil
}

func (f *FileInode) CompressedSize() int64 { return f.compressedSize }

func (f *FileInode) Size() int64 { return f.size }

func (f *FileInode) ReparsePoint() ([]byte, error) { return f.reparse, nil }

func getxattr(path, attr string) ([]byte, error) {
	buf := make([]byte, 128)
	for {
		n, err := unix.Getxattr(path, attr, buf)
		if errors.Is(err, unix.ERANGE) {
			sz, err := unix.Getxattr(path, attr, nil)
			if err != nil {
				return nil, err
			}
			buf = make([]byte, sz)
			continue
		}
		if err != nil {
			return nil, err
		}
		return buf[:n], nil
	}
}
