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

package ioutils

import (
	"io"
)

// PositionTrackerWriter is an `io.Writer` that counts the bytes accepted by
// an underlying `io.Writer`
type PositionTrackerWriter struct {
	w   io.Writer
	pos int64
}

func NewPositionTrackerWriter(w io.Writer) *PositionTrackerWriter {
	return &PositionTrackerWriter{w: w}
}

// Write counts what the underlying writer reports as written, even when it
// also returns an error.
func (p *PositionTrackerWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.pos += int64(n)
	return n, err
}

// CurrentPos is the number of bytes written so far.
func (p *PositionTrackerWriter) CurrentPos() int64 {
	return p.pos
}
