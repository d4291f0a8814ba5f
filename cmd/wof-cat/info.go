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
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/awslabs/syscompress/tracing"
	"github.com/awslabs/syscompress/wof"
	"github.com/urfave/cli"
	"go.opentelemetry.io/otel/attribute"
)

const (
	jsonFlag   = "json"
	chunksFlag = "chunks"
)

type fileInfo struct {
	Path string `json:"path"`
	wof.Info
}

var infoCommand = cli.Command{
	Name:      "info",
	Usage:     "show the compression format and chunk layout of files",
	ArgsUsage: "<file> [<file>...]",
	Flags: append([]cli.Flag{
		cli.BoolFlag{
			Name:  jsonFlag,
			Usage: "print as json",
		},
		cli.BoolFlag{
			Name:  chunksFlag,
			Usage: "list every chunk",
		},
	}, streamFlags...),
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return fmt.Errorf("at least one file is required")
		}
		ctx := appContext(c)
		var infos []fileInfo
		for _, path := range c.Args() {
			info, err := statFile(ctx, c, path)
			if err != nil {
				return err
			}
			if !c.Bool(chunksFlag) && !c.Bool(jsonFlag) {
				info.Chunks = info.Chunks[:0]
			}
			infos = append(infos, fileInfo{Path: path, Info: info})
		}

		if c.Bool(jsonFlag) {
			b, err := json.MarshalIndent(infos, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, string(b))
			return err
		}

		w := tabwriter.NewWriter(c.App.Writer, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tFORMAT\tSIZE\tCOMPRESSED\tCHUNK SIZE\tCHUNKS")
		for _, fi := range infos {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n", fi.Path, fi.Format, fi.Size, fi.CompressedSize, fi.ChunkSize, numChunks(fi))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if !c.Bool(chunksFlag) {
			return nil
		}
		for _, fi := range infos {
			fmt.Fprintf(c.App.Writer, "\n%s:\n", fi.Path)
			w := tabwriter.NewWriter(c.App.Writer, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tOFFSET\tSTORED\tSIZE\tRAW")
			for _, ch := range fi.Chunks {
				fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%t\n", ch.ID, ch.Offset, ch.StoredSize, ch.Size, ch.Raw)
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
		return nil
	},
}

func numChunks(fi fileInfo) int64 {
	if fi.ChunkSize == 0 {
		return 0
	}
	n := fi.Size / int64(fi.ChunkSize)
	if fi.Size%int64(fi.ChunkSize) != 0 {
		n++
	}
	return n
}

func statFile(ctx context.Context, c *cli.Context, path string) (_ wof.Info, retErr error) {
	ctx, span := tracing.StartSpan(ctx, "wof-cat.info", attribute.String("path", path))
	defer func() { tracing.End(span, retErr) }()

	wc, closeFn, err := openFile(ctx, c, path)
	if err != nil {
		return wof.Info{}, err
	}
	defer closeFn()
	return wc.Info(), nil
}
