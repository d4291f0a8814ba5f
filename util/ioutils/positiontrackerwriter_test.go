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
	"bytes"
	"errors"
	"io"
	"testing"
)

var bs = []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

type testWriter struct {
	n   int
	err error
}

func (s *testWriter) Write(b []byte) (int, error) {
	return s.n, s.err
}

func TestPositionTrackerWriter(t *testing.T) {
	tests := []struct {
		name        string
		w           io.Writer
		writes      int
		expectedPos int64
		expectedErr error
	}{
		{
			name:        "full write tracks position correctly",
			w:           &bytes.Buffer{},
			writes:      1,
			expectedPos: 10,
		},
		{
			name:        "repeated writes accumulate",
			w:           &bytes.Buffer{},
			writes:      3,
			expectedPos: 30,
		},
		{
			name:        "short write tracks position correctly",
			w:           &testWriter{5, io.ErrShortWrite},
			writes:      1,
			expectedPos: 5,
			expectedErr: io.ErrShortWrite,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pt := NewPositionTrackerWriter(tc.w)
			var err error
			for i := 0; i < tc.writes; i++ {
				_, err = pt.Write(bs)
			}
			if pt.CurrentPos() != tc.expectedPos {
				t.Fatalf("incorrect position. Expected %d, Actual %d", tc.expectedPos, pt.CurrentPos())
			}
			if tc.expectedErr != nil && !errors.Is(err, tc.expectedErr) {
				t.Fatalf("incorrect error. Expected %v, Actual %v", tc.expectedErr, err)
			}
		})
	}
}
