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
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/awslabs/syscompress/compression"
	"github.com/awslabs/syscompress/util/testutil"
	"github.com/awslabs/syscompress/wof"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testFile struct {
	path   string
	data   []byte
	format compression.Format
}

func (f testFile) streamArgs() []string {
	return []string{"--format", f.format.String(), "--size", strconv.Itoa(len(f.data))}
}

func writeTestStream(t *testing.T, dir, name string, format compression.Format, data []byte) testFile {
	t.Helper()
	stream := testutil.BuildWOFStream(data, format.ChunkSize(), testutil.CompressorFor(format))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, stream, 0644); err != nil {
		t.Fatalf("failed to write stream: %v", err)
	}
	return testFile{path: path, data: data, format: format}
}

func writeTestConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func runApp(t *testing.T, configPath string, args ...string) ([]byte, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(context.Background(), &out)
	err := app.Run(append([]string{"wof-cat", "--config", configPath}, args...))
	return out.Bytes(), err
}

func TestCat(t *testing.T) {
	rand := testutil.NewTestRand(t)
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, "")

	for _, format := range []compression.Format{compression.XPRESS4K, compression.LZX, compression.XPRESS8K, compression.XPRESS16K} {
		t.Run(format.String(), func(t *testing.T) {
			f := writeTestStream(t, dir, format.String(), format, rand.CompressibleData(3*format.ChunkSize()+123))
			out, err := runApp(t, configPath, append(append([]string{"cat"}, f.streamArgs()...), f.path)...)
			require.NoError(t, err)
			require.Equal(t, f.data, out)
		})
	}
}

func TestCatMultipleFilesToOutputFile(t *testing.T) {
	rand := testutil.NewTestRand(t)
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, "")
	a := writeTestStream(t, dir, "a", compression.XPRESS4K, rand.CompressibleData(10000))
	b := writeTestStream(t, dir, "b", compression.XPRESS4K, rand.CompressibleData(10000))
	outPath := filepath.Join(dir, "out")

	args := append([]string{"cat", "-o", outPath}, a.streamArgs()...)
	// Both streams are the same size so one --size covers them.
	out, err := runApp(t, configPath, append(args, a.path, b.path)...)
	require.NoError(t, err)
	require.Empty(t, out)

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, append(append([]byte{}, a.data...), b.data...), got)
}

func TestCatOutputCompression(t *testing.T) {
	rand := testutil.NewTestRand(t)
	dir := t.TempDir()
	f := writeTestStream(t, dir, "lzx", compression.LZX, rand.CompressibleData(70000))

	decoders := map[string]func(t *testing.T, r io.Reader) []byte{
		"gzip": func(t *testing.T, r io.Reader) []byte {
			zr, err := gzip.NewReader(r)
			require.NoError(t, err)
			defer zr.Close()
			b, err := io.ReadAll(zr)
			require.NoError(t, err)
			return b
		},
		"zstd": func(t *testing.T, r io.Reader) []byte {
			zr, err := zstd.NewReader(r)
			require.NoError(t, err)
			defer zr.Close()
			b, err := io.ReadAll(zr)
			require.NoError(t, err)
			return b
		},
	}

	for name, decode := range decoders {
		t.Run("flag/"+name, func(t *testing.T) {
			configPath := writeTestConfig(t, t.TempDir(), "")
			args := append([]string{"cat", "--output-compression", name}, f.streamArgs()...)
			out, err := runApp(t, configPath, append(args, f.path)...)
			require.NoError(t, err)
			require.Equal(t, f.data, decode(t, bytes.NewReader(out)))
		})
		t.Run("config/"+name, func(t *testing.T) {
			configPath := writeTestConfig(t, t.TempDir(), "[extract]\noutput_compression = \""+name+"\"\n")
			args := append([]string{"cat"}, f.streamArgs()...)
			out, err := runApp(t, configPath, append(args, f.path)...)
			require.NoError(t, err)
			require.Equal(t, f.data, decode(t, bytes.NewReader(out)))
		})
	}
}

func TestCatErrors(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, "")
	f := writeTestStream(t, dir, "x", compression.XPRESS4K, []byte(strings.Repeat("abc", 5000)))

	tests := []struct {
		name string
		args []string
	}{
		{"no files", []string{"cat"}},
		{"missing size", []string{"cat", "--format", "xpress4k", f.path}},
		{"bad format", []string{"cat", "--format", "deflate", "--size", "15000", f.path}},
		{"bad output compression", []string{"cat", "--output-compression", "brotli", "--format", "xpress4k", "--size", "15000", f.path}},
		{"missing file", []string{"cat", "--format", "xpress4k", "--size", "15000", filepath.Join(dir, "nope")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runApp(t, configPath, tc.args...)
			require.Error(t, err)
		})
	}
}

func TestInfoJSON(t *testing.T) {
	rand := testutil.NewTestRand(t)
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, "")
	f := writeTestStream(t, dir, "x8k", compression.XPRESS8K, rand.CompressibleData(3*8192+1))

	args := append([]string{"info", "--json"}, f.streamArgs()...)
	out, err := runApp(t, configPath, append(args, f.path)...)
	require.NoError(t, err)

	var infos []fileInfo
	require.NoError(t, json.Unmarshal(out, &infos))
	require.Len(t, infos, 1)
	info := infos[0]
	require.Equal(t, f.path, info.Path)
	require.Equal(t, compression.XPRESS8K, info.Format)
	require.Equal(t, int64(len(f.data)), info.Size)
	require.Equal(t, 8192, info.ChunkSize)
	require.Len(t, info.Chunks, 4)
	require.Equal(t, 1, info.Chunks[3].Size)
	require.True(t, info.Chunks[3].Raw)

	stat, err := os.Stat(f.path)
	require.NoError(t, err)
	require.Equal(t, stat.Size(), info.CompressedSize)
}

func TestInfoTable(t *testing.T) {
	rand := testutil.NewTestRand(t)
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, "")
	f := writeTestStream(t, dir, "lzx", compression.LZX, rand.CompressibleData(40000))

	args := append([]string{"info", "--chunks"}, f.streamArgs()...)
	out, err := runApp(t, configPath, append(args, f.path)...)
	require.NoError(t, err)
	require.Contains(t, string(out), "lzx")
	require.Contains(t, string(out), "32768")
	require.Contains(t, string(out), "ID")
}

func TestVerify(t *testing.T) {
	rand := testutil.NewTestRand(t)
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, "[extract]\nmax_concurrency = 2\n")

	data := rand.CompressibleData(50000)
	var files []testFile
	for _, name := range []string{"a", "b", "c"} {
		files = append(files, writeTestStream(t, dir, name, compression.XPRESS16K, data))
	}

	args := append([]string{"verify"}, files[0].streamArgs()...)
	for _, f := range files {
		args = append(args, f.path)
	}
	out, err := runApp(t, configPath, args...)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, len(files))
	want := digest.FromBytes(data)
	for i, line := range lines {
		require.Equal(t, want.String()+"  "+files[i].path, line)
	}

	t.Run("expect", func(t *testing.T) {
		expectArgs := append([]string{"verify", "--expect", want.String()}, args[1:]...)
		_, err := runApp(t, configPath, expectArgs...)
		require.NoError(t, err)
	})
	t.Run("expect mismatch", func(t *testing.T) {
		expectArgs := append([]string{"verify", "--expect", digest.FromString("other").String()}, args[1:]...)
		_, err := runApp(t, configPath, expectArgs...)
		require.Error(t, err)
	})
	t.Run("invalid expect", func(t *testing.T) {
		expectArgs := append([]string{"verify", "--expect", "sha256:zz"}, args[1:]...)
		_, err := runApp(t, configPath, expectArgs...)
		require.Error(t, err)
	})
	t.Run("spans", func(t *testing.T) {
		sr := testutil.RecordSpans(t)
		_, err := runApp(t, configPath, args...)
		require.NoError(t, err)
		for _, f := range files {
			spans := testutil.EndedSpans(sr, "wof-cat.verify", attribute.String("path", f.path))
			require.Len(t, spans, 1)
			dgst, ok := testutil.SpanAttr(spans[0], "digest")
			require.True(t, ok)
			require.Equal(t, want.String(), dgst.AsString())
		}
		opens := 0
		for _, s := range sr.Ended() {
			if s.Name() == "wof.Open" {
				opens++
			}
		}
		require.Equal(t, len(files), opens)
	})
}

func TestBench(t *testing.T) {
	rand := testutil.NewTestRand(t)
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, "[bench]\niterations = 3\nread_size = \"10kb\"\n")
	f := writeTestStream(t, dir, "lzx", compression.LZX, rand.CompressibleData(100000))

	args := append([]string{"bench", "--json"}, f.streamArgs()...)
	out, err := runApp(t, configPath, append(args, f.path)...)
	require.NoError(t, err)

	var results []benchStats
	require.NoError(t, json.Unmarshal(out, &results))
	require.Len(t, results, 1)
	s := results[0]
	require.Len(t, s.Times, 3)
	require.Equal(t, "lzx", s.Format)
	require.Equal(t, int64(100000), s.Size)
	require.Equal(t, int64(10*1024), s.ReadSize)
	require.LessOrEqual(t, s.Min, s.Pct50)
	require.LessOrEqual(t, s.Pct50, s.Max)

	t.Run("iterations flag", func(t *testing.T) {
		args := append([]string{"bench", "--json", "--iterations", "2"}, f.streamArgs()...)
		out, err := runApp(t, configPath, append(args, f.path)...)
		require.NoError(t, err)
		var results []benchStats
		require.NoError(t, json.Unmarshal(out, &results))
		require.Len(t, results[0].Times, 2)
	})
}

func TestGlobalFlags(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, "")
	f := writeTestStream(t, dir, "x", compression.XPRESS4K, []byte(strings.Repeat("wof", 3000)))
	args := append([]string{"cat"}, f.streamArgs()...)
	args = append(args, f.path)

	t.Run("metrics", func(t *testing.T) {
		out, err := runApp(t, configPath, append([]string{"--metrics-address", "127.0.0.1:0"}, args...)...)
		require.NoError(t, err)
		require.Equal(t, f.data, out)
	})
	t.Run("bad log level", func(t *testing.T) {
		_, err := runApp(t, configPath, append([]string{"--log-level", "loud"}, args...)...)
		require.Error(t, err)
	})
	t.Run("missing config", func(t *testing.T) {
		_, err := runApp(t, filepath.Join(dir, "missing.toml"), args...)
		require.Error(t, err)
	})
	t.Run("unknown config key", func(t *testing.T) {
		_, err := runApp(t, writeTestConfig(t, t.TempDir(), "no_such_key = 1\n"), args...)
		require.Error(t, err)
	})
}

func TestOpenFileClose(t *testing.T) {
	rand := testutil.NewTestRand(t)
	dir := t.TempDir()
	f := writeTestStream(t, dir, "a", compression.LZX, rand.CompressibleData(40000))

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String(formatFlag, f.format.String(), "")
	set.Int64(sizeFlag, int64(len(f.data)), "")
	c := cli.NewContext(cli.NewApp(), set, nil)

	wc, closeFn, err := openFile(testutil.TestContext(t), c, f.path)
	require.NoError(t, err)
	p := make([]byte, 100)
	_, err = wc.Read(0, p)
	require.NoError(t, err)
	require.Equal(t, f.data[:100], p)

	closeFn()
	_, err = wc.Read(0, p)
	require.ErrorIs(t, err, wof.ErrClosed)
	// Closing twice only logs.
	closeFn()

	require.NoError(t, set.Set(sizeFlag, "-1"))
	_, _, err = openFile(testutil.TestContext(t), c, f.path)
	require.Error(t, err)
}

func TestInfoNumChunks(t *testing.T) {
	tests := []struct {
		size      int64
		chunkSize int
		want      int64
	}{
		{0, 0, 0},
		{0, 4096, 0},
		{4096, 4096, 1},
		{4097, 4096, 2},
		{math.MaxInt64, 32768, math.MaxInt64/32768 + 1},
	}
	for _, tc := range tests {
		fi := fileInfo{Info: wof.Info{Size: tc.size, ChunkSize: tc.chunkSize}}
		require.Equal(t, tc.want, numChunks(fi), "size %d chunk size %d", tc.size, tc.chunkSize)
	}
}
