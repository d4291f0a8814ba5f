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

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	OutputCompressionNone = "none"
	OutputCompressionGzip = "gzip"
	OutputCompressionZstd = "zstd"
)

var (
	sizeRegex = regexp.MustCompile(`(?i)^\s*(\d+(\.\d+)?)(\s*(gb|mb|kb|b)?)?\s*$`)

	unitMultipliers = map[string]float64{
		"":   1, // no unit specified, treat as bytes
		"b":  1,
		"kb": 1024,
		"mb": 1024 * 1024,
		"gb": 1024 * 1024 * 1024,
	}
)

// ExtractConfig modifies how files are decompressed by cat and verify.
type ExtractConfig struct {
	// MaxConcurrency is the number of files verify decompresses at once.
	MaxConcurrency int64 `toml:"max_concurrency"`

	// OutputCompression recompresses cat output: none, gzip or zstd.
	OutputCompression string `toml:"output_compression"`

	// ZstdLevel is the zstd encoder level (1-4, fastest to best compression).
	ZstdLevel int `toml:"zstd_level"`

	BufferSizeStr string `toml:"buffer_size"`
	BufferSize    int64  `toml:"-"`
}

func parseExtractConfig(cfg *Config) error {
	c := &cfg.ExtractConfig
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = defaultMaxConcurrency
	}
	switch strings.ToLower(c.OutputCompression) {
	case "":
		c.OutputCompression = defaultOutputCompression
	case OutputCompressionNone, OutputCompressionGzip, OutputCompressionZstd:
		c.OutputCompression = strings.ToLower(c.OutputCompression)
	default:
		return fmt.Errorf("unknown output compression %q", c.OutputCompression)
	}
	if c.ZstdLevel == 0 {
		c.ZstdLevel = defaultZstdLevel
	}
	size, err := parseSize(c.BufferSizeStr, defaultBufferSize)
	if err != nil {
		return err
	}
	c.BufferSize = size
	return nil
}

// BenchConfig modifies the read pattern of bench.
type BenchConfig struct {
	Iterations int `toml:"iterations"`

	ReadSizeStr string `toml:"read_size"`
	ReadSize    int64  `toml:"-"`
}

func parseBenchConfig(cfg *Config) error {
	c := &cfg.BenchConfig
	if c.Iterations <= 0 {
		c.Iterations = defaultBenchIterations
	}
	size, err := parseSize(c.ReadSizeStr, defaultBenchReadSize)
	if err != nil {
		return err
	}
	c.ReadSize = size
	return nil
}

// parseSize parses sizes such as "64kb" or "1.5 MB". Empty and zero sizes
// give def.
func parseSize(sizeStr string, def int64) (int64, error) {
	if sizeStr == "" {
		return def, nil
	}

	matches := sizeRegex.FindStringSubmatch(sizeStr)
	if matches == nil {
		return 0, fmt.Errorf("invalid size format: %s", sizeStr)
	}

	numStr, unitStr := matches[1], strings.ToLower(strings.TrimSpace(matches[4]))
	num, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse size number: %v", err)
	}

	multiplier, ok := unitMultipliers[unitStr]
	if !ok {
		return 0, fmt.Errorf("unknown size unit: %s", unitStr)
	}

	size := int64(num * multiplier)
	if size == 0 {
		size = def
	}
	return size, nil
}
