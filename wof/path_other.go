//go:build !linux

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
	"os"
)

// FileInode is an Inode backed by a file on an ntfs-3g mount.
type FileInode struct {
	*os.File
	compressedSize int64
	size           int64
	reparse        []byte
}

// OpenPath is only supported on Linux.
func OpenPath(path string) (*FileInode, error) {
	return nil, errors.New("wof: opening system compressed files by path is only supported on linux")
}

func (f *FileInode) CompressedSize() int64 { return f.compressedSize }

func (f *FileInode) Size() int64 { return f.size }

func (f *FileInode) ReparsePoint() ([]byte, error) { return f.reparse, nil }
