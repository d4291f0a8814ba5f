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
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOperationCount(t *testing.T) {
	before := testutil.ToFloat64(operationCount.WithLabelValues(ChunkCacheHit, "test"))
	IncOperationCount(ChunkCacheHit, "test")
	IncOperationCount(ChunkCacheHit, "test")
	if got := testutil.ToFloat64(operationCount.WithLabelValues(ChunkCacheHit, "test")); got != before+2 {
		t.Fatalf("unexpected count; want=%v got=%v", before+2, got)
	}
}

func TestBytesCount(t *testing.T) {
	before := testutil.ToFloat64(bytesCount.WithLabelValues(ReadBytesServed, "test"))
	AddBytesCount(ReadBytesServed, "test", 4096)
	if got := testutil.ToFloat64(bytesCount.WithLabelValues(ReadBytesServed, "test")); got != before+4096 {
		t.Fatalf("unexpected bytes; want=%v got=%v", before+4096, got)
	}
}

func TestRegisterTwice(t *testing.T) {
	Register()
	Register()
	MeasureLatencyInMicroseconds(ContextRead, "test", time.Now())
	if n := testutil.CollectAndCount(operationLatencyMicroseconds); n == 0 {
		t.Fatal("expected at least one latency series")
	}
}
