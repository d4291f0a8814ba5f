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

package config

// Config (root) defaults
const (
	defaultLogLevel       = "info"
	defaultMetricsNetwork = "tcp"
)

// ExtractConfig defaults
const (
	// defaultMaxConcurrency is the maximum number of files decompressed at once by verify.
	defaultMaxConcurrency = 4
	// defaultOutputCompression leaves extracted data as is.
	defaultOutputCompression = OutputCompressionNone
	defaultZstdLevel         = 3
	// defaultBufferSize is the size of each read issued against a file.
	defaultBufferSize = 1 << 20
)

// BenchConfig defaults
const (
	defaultBenchIterations = 10
	defaultBenchReadSize   = 64 << 10
)
