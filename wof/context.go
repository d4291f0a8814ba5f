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
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/awslabs/syscompress/compression"
	commonmetrics "github.com/awslabs/syscompress/metrics/common"
	"github.com/awslabs/syscompress/tracing"
	"github.com/containerd/log"
	"github.com/rs/xid"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrClosed is returned by reads on a closed Context.
	ErrClosed = errors.New("wof: context is closed")

	errNegativeOffset = errors.New("wof: negative offset")
)

type options struct {
	name string
}

// Option configures Open.
type Option func(*options)

// WithName attaches a file name to the context's log entries.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// Context gives random access to the logical contents of one system
// compressed file. It keeps the most recently decompressed chunk.
// A Context is safe for concurrent use; reads are serialized.
type Context struct {
	mu sync.Mutex

	id           string
	inode        Inode
	format       compression.Format
	label        string
	chunkSize    int
	size         int64
	compSize     int64
	table        *chunkTable
	decompressor compression.Decompressor
	log          *log.Entry

	// cache holds chunk cacheID when cacheValid is set.
	cache      []byte
	cacheID    compression.ChunkID
	cacheValid bool
	// tmp receives compressed chunk bytes before decoding.
	tmp []byte

	closed bool
}

// Open validates inode's reparse point and chunk table and returns a
// Context reading its logical contents.
func Open(ctx context.Context, inode Inode, opts ...Option) (_ *Context, retErr error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	start := time.Now()
	id := xid.New().String()
	ctx, span := tracing.StartSpan(ctx, "wof.Open", attribute.String("wof.id", id), attribute.String("wof.file", o.name))
	defer func() { tracing.End(span, retErr) }()
	l := log.G(ctx).WithField("wof_ctx", id)
	if o.name != "" {
		l = l.WithField("file", o.name)
	}

	c, err := open(inode, id, l)
	if err != nil {
		commonmetrics.IncOperationCount(commonmetrics.ContextOpenFail, "unknown")
		l.WithError(err).Debug("failed to open system compressed file")
		return nil, err
	}
	commonmetrics.MeasureLatencyInMicroseconds(commonmetrics.ContextOpen, c.label, start)
	span.SetAttributes(
		attribute.String("wof.format", c.label),
		attribute.Int64("wof.size", c.size),
		attribute.Int64("wof.compressed_size", c.compSize),
		attribute.Int("wof.chunks", c.table.numChunks()),
	)
	l.WithFields(log.Fields{
		"format":          c.format.String(),
		"size":            c.size,
		"compressed_size": inode.CompressedSize(),
		"chunks":          c.table.numChunks(),
	}).Debug("opened system compressed file")
	return c, nil
}

func open(inode Inode, id string, l *log.Entry) (*Context, error) {
	rp, err := inode.ReparsePoint()
	if err != nil {
		return nil, fmt.Errorf("failed to read reparse point: %w", err)
	}
	format, err := ParseReparsePoint(rp)
	if err != nil {
		return nil, err
	}
	size := inode.Size()
	if size < 0 {
		return nil, fmt.Errorf("negative file size %d: %w", size, compression.ErrInvalidMetadata)
	}
	compressedSize := inode.CompressedSize()
	if compressedSize < 0 {
		return nil, fmt.Errorf("negative compressed stream size %d: %w", compressedSize, compression.ErrInvalidMetadata)
	}
	chunkSize := format.ChunkSize()
	table, err := readChunkTable(inode, compressedSize, size, chunkSize)
	if err != nil {
		return nil, err
	}
	dec, err := newDecompressor(format)
	if err != nil {
		return nil, err
	}
	return &Context{
		id:           id,
		inode:        inode,
		format:       format,
		label:        format.String(),
		chunkSize:    chunkSize,
		size:         size,
		compSize:     compressedSize,
		table:        table,
		decompressor: dec,
		log:          l.WithField("format", format.String()),
		cache:        make([]byte, chunkSize),
		tmp:          make([]byte, chunkSize),
	}, nil
}

// ID identifies the context in log entries.
func (c *Context) ID() string {
	return c.id
}

// Format returns the file's compression format.
func (c *Context) Format() compression.Format {
	return c.format
}

// Size returns the logical size of the file.
func (c *Context) Size() int64 {
	return c.size
}

// Read copies the logical bytes at [pos, pos+len(p)) into p and returns the
// count. Reads are clamped to the file size; reading at or past the end
// returns 0 and no error. On failure nothing is counted as read.
func (c *Context) Read(pos int64, p []byte) (int, error) {
	return c.ReadContext(context.Background(), pos, p)
}

// ReadContext is Read with chunk loads traced under ctx.
func (c *Context) ReadContext(ctx context.Context, pos int64, p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrClosed
	}
	if pos < 0 {
		return 0, fmt.Errorf("%w: %d", errNegativeOffset, pos)
	}
	if pos >= c.size || len(p) == 0 {
		if pos >= c.size {
			commonmetrics.IncOperationCount(commonmetrics.ContextReadEOF, c.label)
		}
		return 0, nil
	}
	start := time.Now()
	end := c.size
	if int64(len(p)) < c.size-pos {
		end = pos + int64(len(p))
	}

	cs := int64(c.chunkSize)
	n := 0
	for id := compression.ChunkID(pos / cs); int64(id)*cs < end; id++ {
		chunk, err := c.chunk(ctx, id)
		if err != nil {
			return 0, err
		}
		chunkStart := int64(id) * cs
		from := max(pos, chunkStart) - chunkStart
		to := min(end, chunkStart+int64(len(chunk))) - chunkStart
		n += copy(p[n:], chunk[from:to])
	}
	commonmetrics.MeasureLatencyInMicroseconds(commonmetrics.ContextRead, c.label, start)
	commonmetrics.AddBytesCount(commonmetrics.ReadBytesServed, c.label, int64(n))
	return n, nil
}

// ReadAt implements io.ReaderAt over the logical contents.
func (c *Context) ReadAt(p []byte, off int64) (int, error) {
	return c.readAt(context.Background(), p, off)
}

// ReaderAt returns an io.ReaderAt over the logical contents whose chunk loads
// are traced under ctx.
func (c *Context) ReaderAt(ctx context.Context) io.ReaderAt {
	return &ctxReaderAt{c: c, ctx: ctx}
}

type ctxReaderAt struct {
	c   *Context
	ctx context.Context
}

func (r *ctxReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return r.c.readAt(r.ctx, p, off)
}

func (c *Context) readAt(ctx context.Context, p []byte, off int64) (int, error) {
	n, err := c.ReadContext(ctx, off, p)
	if err != nil {
		return 0, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close releases the chunk buffers. It is safe to call more than once.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.cache = nil
	c.tmp = nil
	c.cacheValid = false
	c.decompressor = nil
	c.log.Debug("closed system compressed file")
	return nil
}

// chunk returns the uncompressed contents of chunk id, decompressing it into
// the cache when it is not already there. The returned slice aliases the
// cache and is only valid until the next call. Callers hold c.mu.
func (c *Context) chunk(ctx context.Context, id compression.ChunkID) ([]byte, error) {
	ulen := chunkLen(c.size, c.chunkSize, id)
	if c.cacheValid && c.cacheID == id {
		commonmetrics.IncOperationCount(commonmetrics.ChunkCacheHit, c.label)
		return c.cache[:ulen], nil
	}
	commonmetrics.IncOperationCount(commonmetrics.ChunkCacheMiss, c.label)

	c.cacheValid = false
	if err := c.loadChunk(ctx, id, c.cache[:ulen]); err != nil {
		commonmetrics.IncOperationCount(commonmetrics.ChunkDecompressFailureCount, c.label)
		c.log.WithError(err).WithField("chunk", id).Warn("failed to decompress chunk")
		return nil, err
	}
	c.cacheID = id
	c.cacheValid = true
	return c.cache[:ulen], nil
}

func (c *Context) loadChunk(ctx context.Context, id compression.ChunkID, dst []byte) (retErr error) {
	off := c.table.offsets[id]
	stored := c.table.storedSize(id)
	start := time.Now()
	// A chunk that did not shrink is stored as is.
	raw := stored == int64(len(dst))

	_, span := tracing.StartSpan(ctx, "wof.loadChunk",
		attribute.String("wof.id", c.id),
		attribute.String("wof.format", c.label),
		attribute.Int64("wof.chunk", int64(id)),
		attribute.Int64("wof.stored_size", stored),
		attribute.Int("wof.chunk_size", len(dst)),
		attribute.Bool("wof.raw", raw),
	)
	defer func() { tracing.End(span, retErr) }()

	if raw {
		if err := readFull(c.inode, dst, off); err != nil {
			return fmt.Errorf("failed to read raw chunk %d (%d bytes at offset %d): %w", id, stored, off, err)
		}
		commonmetrics.IncOperationCount(commonmetrics.ChunkRawCount, c.label)
		commonmetrics.MeasureLatencyInMicroseconds(commonmetrics.ChunkRawRead, c.label, start)
		return nil
	}

	src := c.tmp[:stored]
	if err := readFull(c.inode, src, off); err != nil {
		return fmt.Errorf("failed to read chunk %d (%d bytes at offset %d): %w", id, stored, off, err)
	}
	if err := c.decompressor.Decompress(dst, src); err != nil {
		return fmt.Errorf("failed to decompress chunk %d: %w", id, err)
	}
	commonmetrics.MeasureLatencyInMicroseconds(commonmetrics.ChunkDecompress, c.label, start)
	commonmetrics.AddBytesCount(commonmetrics.ChunkBytesDecompressed, c.label, int64(len(dst)))
	return nil
}

// ChunkInfo describes one chunk of the compressed stream.
type ChunkInfo struct {
	ID         compression.ChunkID
	Offset     int64
	StoredSize int64
	Size       int
	Raw        bool
}

// Info summarizes a system compressed file.
type Info struct {
	Format         compression.Format
	Size           int64
	CompressedSize int64
	ChunkSize      int
	Chunks         []ChunkInfo
}

// Info returns the file's format, sizes and chunk layout.
func (c *Context) Info() Info {
	info := Info{
		Format:         c.format,
		Size:           c.size,
		CompressedSize: c.compSize,
		ChunkSize:      c.chunkSize,
		Chunks:         make([]ChunkInfo, c.table.numChunks()),
	}
	for i := range info.Chunks {
		id := compression.ChunkID(i)
		size := chunkLen(c.size, c.chunkSize, id)
		stored := c.table.storedSize(id)
		info.Chunks[i] = ChunkInfo{
			ID:         id,
			Offset:     c.table.offsets[id],
			StoredSize: stored,
			Size:       size,
			Raw:        stored == int64(size),
		}
	}
	return info
}

// Stat opens inode, returns its Info and closes it again.
func Stat(ctx context.Context, inode Inode) (Info, error) {
	c, err := Open(ctx, inode)
	if err != nil {
		return Info{}, err
	}
	defer c.Close()
	return c.Info(), nil
}
