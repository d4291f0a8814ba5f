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

package lz

import (
	"bytes"
	"testing"

	"github.com/awslabs/syscompress/util/testutil"
	"github.com/google/go-cmp/cmp"
)

func referenceCopy(buf []byte, pos, length, offset int) {
	for i := 0; i < length; i++ {
		buf[pos+i] = buf[pos-offset+i]
	}
}

func TestCopyMatchesBytewise(t *testing.T) {
	rand := testutil.NewTestRand(t)
	const sentinel = 0xa5
	for _, minLength := range []int{2, 3} {
		for offset := 1; offset <= 24; offset++ {
			for length := 1; length <= 48; length++ {
				// slack 0 forces the bytewise paths, 7 and more allow word copies.
				for _, slack := range []int{0, 3, 7, 16} {
					pos := offset + rand.IntN(8)
					size := pos + length + slack
					backing := make([]byte, size+8)
					for i := range backing {
						backing[i] = sentinel
					}
					buf := backing[:size]
					rand.Read(buf[:pos])
					want := bytes.Clone(buf)
					referenceCopy(want, pos, length, offset)

					if end := Copy(buf, pos, length, offset, minLength); end != pos+length {
						t.Fatalf("offset %d length %d: returned %d, want %d", offset, length, end, pos+length)
					}
					if diff := cmp.Diff(want[:pos+length], buf[:pos+length]); diff != "" {
						t.Fatalf("offset %d length %d slack %d: unexpected output (-want +got):\n%s", offset, length, slack, diff)
					}
					for i := size; i < len(backing); i++ {
						if backing[i] != sentinel {
							t.Fatalf("offset %d length %d slack %d: wrote past the end of the buffer at %d", offset, length, slack, i)
						}
					}
				}
			}
		}
	}
}

func TestCopyRun(t *testing.T) {
	buf := make([]byte, 300)
	buf[0] = 'x'
	if end := Copy(buf, 1, 258, 1, 3); end != 259 {
		t.Fatalf("unexpected end %d", end)
	}
	if diff := cmp.Diff(bytes.Repeat([]byte{'x'}, 259), buf[:259]); diff != "" {
		t.Fatalf("unexpected run (-want +got):\n%s", diff)
	}
}
