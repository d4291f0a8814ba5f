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

	"github.com/awslabs/syscompress/tracing"
	"github.com/opencontainers/go-digest"
	"github.com/urfave/cli"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const expectFlag = "expect"

var verifyCommand = cli.Command{
	Name:      "verify",
	Usage:     "decompress files completely and print their sha256 digests",
	ArgsUsage: "<file> [<file>...]",
	Flags: append([]cli.Flag{
		cli.StringFlag{
			Name:  expectFlag,
			Usage: "fail unless every file has this digest",
		},
	}, streamFlags...),
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return fmt.Errorf("at least one file is required")
		}
		var expected digest.Digest
		if v := c.String(expectFlag); v != "" {
			expected = digest.Digest(v)
			if err := expected.Validate(); err != nil {
				return fmt.Errorf("invalid --%s: %w", expectFlag, err)
			}
		}

		cfg := appConfig(c)
		paths := c.Args()
		digests := make([]digest.Digest, len(paths))
		eg, ctx := errgroup.WithContext(appContext(c))
		eg.SetLimit(int(cfg.ExtractConfig.MaxConcurrency))
		for i, path := range paths {
			eg.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				dgst, err := digestFile(ctx, c, path, cfg.ExtractConfig.BufferSize)
				if err != nil {
					return err
				}
				digests[i] = dgst
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}

		var mismatched int
		for i, path := range paths {
			fmt.Fprintf(c.App.Writer, "%s  %s\n", digests[i], path)
			if expected != "" && digests[i] != expected {
				mismatched++
			}
		}
		if mismatched > 0 {
			return fmt.Errorf("%d of %d files do not match %s", mismatched, len(paths), expected)
		}
		return nil
	},
}

func digestFile(ctx context.Context, c *cli.Context, path string, bufferSize int64) (_ digest.Digest, retErr error) {
	ctx, span := tracing.StartSpan(ctx, "wof-cat.verify", attribute.String("path", path))
	defer func() { tracing.End(span, retErr) }()

	wc, closeFn, err := openFile(ctx, c, path)
	if err != nil {
		return "", err
	}
	defer closeFn()

	dgstr := digest.SHA256.Digester()
	if _, err := io.CopyBuffer(dgstr.Hash(), io.NewSectionReader(wc.ReaderAt(ctx), 0, wc.Size()), make([]byte, bufferSize)); err != nil {
		return "", fmt.Errorf("failed to decompress %q: %w", path, err)
	}
	span.SetAttributes(attribute.String("digest", dgstr.Digest().String()))
	return dgstr.Digest(), nil
}
