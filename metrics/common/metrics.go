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

package commonmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OperationLatencyKeyMicroseconds is the key for operation latency metrics in microseconds.
	OperationLatencyKeyMicroseconds = "operation_duration_microseconds"

	// OperationCountKey is the key for operation count metrics.
	OperationCountKey = "operation_count"

	// BytesServedKey is the key for any metric related to counting bytes served as the part of specific operation.
	BytesServedKey = "bytes_served"

	namespace = "syscompress"
	subsystem = "wof"
)

// Lists all metric labels.
const (
	// latency
	ContextOpen     = "context_open"
	ContextRead     = "context_read"
	ChunkDecompress = "chunk_decompress"
	ChunkRawRead    = "chunk_raw_read"

	// counts
	ChunkCacheHit   = "chunk_cache_hit"
	ChunkCacheMiss  = "chunk_cache_miss"
	ChunkRawCount   = "chunk_raw_count"
	ContextReadEOF  = "context_read_eof"
	ContextOpenFail = "context_open_failure_count"

	// Number of chunks whose compressed data could not be read or decoded.
	ChunkDecompressFailureCount = "chunk_decompress_failure_count"

	// bytes
	ReadBytesServed        = "read_bytes_served"
	ChunkBytesDecompressed = "chunk_bytes_decompressed"
)

var (
	latencyBucketsMicroseconds = []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096, 8192} // in microseconds

	// operationLatencyMicroseconds collects operation latency numbers in microseconds grouped by
	// operation type and compression format.
	operationLatencyMicroseconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      OperationLatencyKeyMicroseconds,
			Help:      "Latency in microseconds of system decompression operations. Broken down by operation type and compression format.",
			Buckets:   latencyBucketsMicroseconds,
		},
		[]string{"operation_type", "format"},
	)

	operationCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      OperationCountKey,
			Help:      "The count of system decompression operations. Broken down by operation type and compression format.",
		},
		[]string{"operation_type", "format"},
	)

	// bytesCount reflects the number of bytes served as the part of specific operation type per format.
	bytesCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      BytesServedKey,
			Help:      "The number of bytes served per system decompression operation. Broken down by operation type and compression format.",
		},
		[]string{"operation_type", "format"},
	)
)

var register sync.Once

// sinceInMicroseconds gets the time since the specified start in microseconds.
// The division keeps sub-microsecond precision that .Microseconds() would drop.
func sinceInMicroseconds(start time.Time) float64 {
	return float64(time.Since(start).Nanoseconds()) / float64(time.Microsecond/time.Nanosecond)
}

// Register registers metrics. This is always called only once.
func Register() {
	register.Do(func() {
		prometheus.MustRegister(operationLatencyMicroseconds)
		prometheus.MustRegister(operationCount)
		prometheus.MustRegister(bytesCount)
	})
}

// MeasureLatencyInMicroseconds wraps the labels attachment as well as calling Observe into a single method.
func MeasureLatencyInMicroseconds(operation, format string, start time.Time) {
	operationLatencyMicroseconds.WithLabelValues(operation, format).Observe(sinceInMicroseconds(start))
}

// IncOperationCount wraps the labels attachment as well as calling Inc into a single method.
func IncOperationCount(operation, format string) {
	operationCount.WithLabelValues(operation, format).Inc()
}

// AddBytesCount wraps the labels attachment as well as calling Add into a single method.
func AddBytesCount(operation, format string, bytes int64) {
	bytesCount.WithLabelValues(operation, format).Add(float64(bytes))
}
