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

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/awslabs/syscompress/compression"
	"github.com/awslabs/syscompress/wof"
	"github.com/containerd/log"
	"github.com/urfave/cli"
)

const (
	formatFlag = "format"
	sizeFlag   = "size"
)

// streamFlags let a command read a copied WofCompressedData stream instead
// of a file on an ntfs-3g mount.
var streamFlags = []cli.Flag{
	cli.StringFlag{
		Name:  formatFlag,
		Usage: "treat arguments as raw compressed streams of this format [xpress4k, xpress8k, xpress16k, lzx]",
	},
	cli.Int64Flag{
		Name:  sizeFlag,
		Usage: "logical (uncompressed) size of the raw streams; required with --format",
		Value: -1,
	},
}

// openFile opens path as a system compressed file. The returned function
// closes both the context and the underlying file, logging any error.
func openFile(ctx context.Context, c *cli.Context, path string) (*wof.Context, func(), error) {
	var (
		inode  wof.Inode
		closer io.Closer
	)
	if f := c.String(formatFlag); f != "" {
		format, err := compression.ParseFormat(f)
		if err != nil {
			return nil, nil, err
		}
		size := c.Int64(sizeFlag)
		if size < 0 {
			return nil, nil, fmt.Errorf("--%s is required with --%s", sizeFlag, formatFlag)
		}
		file, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		fi, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, nil, err
		}
		inode, closer = wof.NewStreamInode(file, fi.Size(), size, format), file
	} else {
		fi, err := wof.OpenPath(path)
		if err != nil {
			return nil, nil, err
		}
		inode, closer = fi, fi
	}

	wc, err := wof.Open(ctx, inode, wof.WithName(path))
	if err != nil {
		closer.Close()
		return nil, nil, fmt.Errorf("failed to open %q: %w", path, err)
	}
	return wc, func() {
		l := log.G(ctx).WithField("path", path)
		if err := wc.Close(); err != nil {
			l.WithError(err).Debug("failed to close system compressed file")
		}
		if err := closer.Close(); err != nil {
			l.WithError(err).Debug("failed to close file")
		}
	}, nil
}
