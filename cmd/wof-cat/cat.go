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
	"fmt"
	"io"
	"os"

	"github.com/awslabs/syscompress/config"
	"github.com/awslabs/syscompress/tracing"
	"github.com/awslabs/syscompress/util/ioutils"
	"github.com/containerd/log"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/urfave/cli"
	"go.opentelemetry.io/otel/attribute"
)

const (
	outputFlag            = "output"
	outputCompressionFlag = "output-compression"
)

var catCommand = cli.Command{
	Name:      "cat",
	Usage:     "decompress files and write their contents",
	ArgsUsage: "<file> [<file>...]",
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:  outputFlag + ", o",
			Usage: "write to this file instead of stdout",
		},
		cli.StringFlag{
			Name:  outputCompressionFlag,
			Usage: "recompress the output [none, gzip, zstd]; overrides extract.output_compression in the config file",
		},
	}, streamFlags...),
	Action: func(c *cli.Context) (retErr error) {
		if c.NArg() == 0 {
			return fmt.Errorf("at least one file is required")
		}
		cfg := appConfig(c)
		comp := cfg.ExtractConfig.OutputCompression
		if v := c.String(outputCompressionFlag); v != "" {
			comp = v
		}

		var dst io.Writer = c.App.Writer
		if path := c.String(outputFlag); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer func() {
				if err := f.Close(); err != nil && retErr == nil {
					retErr = fmt.Errorf("failed to close %q: %w", path, err)
				}
			}()
			dst = f
		}
		out := ioutils.NewPositionTrackerWriter(dst)
		w, err := newOutputWriter(out, comp, cfg.ExtractConfig.ZstdLevel)
		if err != nil {
			return err
		}
		for _, path := range c.Args() {
			if err := catFile(c, w, path, cfg.ExtractConfig.BufferSize); err != nil {
				w.Close()
				return err
			}
		}
		if err := w.Close(); err != nil {
			return err
		}
		log.G(appContext(c)).WithFields(log.Fields{
			"files":       c.NArg(),
			"compression": comp,
			"written":     out.CurrentPos(),
		}).Debug("cat done")
		return nil
	},
}

func catFile(c *cli.Context, w io.Writer, path string, bufferSize int64) (retErr error) {
	ctx, span := tracing.StartSpan(appContext(c), "wof-cat.cat", attribute.String("path", path))
	defer func() { tracing.End(span, retErr) }()

	wc, closeFn, err := openFile(ctx, c, path)
	if err != nil {
		return err
	}
	defer closeFn()

	span.SetAttributes(attribute.String("format", wc.Format().String()), attribute.Int64("size", wc.Size()))
	n, err := io.CopyBuffer(w, io.NewSectionReader(wc.ReaderAt(ctx), 0, wc.Size()), make([]byte, bufferSize))
	if err != nil {
		return fmt.Errorf("failed to decompress %q: %w", path, err)
	}
	log.G(ctx).WithField("path", path).WithField("bytes", n).Debug("decompressed file")
	return nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// newOutputWriter wraps w with the requested compression. Closing the result
// flushes the compressor but leaves w open.
func newOutputWriter(w io.Writer, compression string, zstdLevel int) (io.WriteCloser, error) {
	switch compression {
	case "", config.OutputCompressionNone:
		return nopWriteCloser{w}, nil
	case config.OutputCompressionGzip:
		return gzip.NewWriter(w), nil
	case config.OutputCompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(zstdLevel)))
		if err != nil {
			return nil, err
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("unknown output compression %q", compression)
	}
}
