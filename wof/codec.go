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
	"fmt"

	"github.com/awslabs/syscompress/compression"
	"github.com/awslabs/syscompress/compression/lzx"
	"github.com/awslabs/syscompress/compression/xpress"
)

// newDecompressor returns the chunk decoder for format.
func newDecompressor(format compression.Format) (compression.Decompressor, error) {
	switch format {
	case compression.XPRESS4K, compression.XPRESS8K, compression.XPRESS16K:
		return xpress.NewDecompressor(), nil
	case compression.LZX:
		d, err := lzx.NewDecompressor(format.ChunkSize())
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unexpected compression format %s: %w", format, compression.ErrInvalidMetadata)
	}
}
