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

package testutil

// Token is one step of an LZ77 parse: a literal when Length is 0, otherwise
// a copy of Length bytes from Offset bytes back.
type Token struct {
	Literal byte
	Offset  int
	Length  int
}

// Lit returns a literal token.
func Lit(b byte) Token { return Token{Literal: b} }

// Match returns a match token.
func Match(offset, length int) Token { return Token{Offset: offset, Length: length} }

// Size returns the number of output bytes t produces.
func (t Token) Size() int {
	if t.Length == 0 {
		return 1
	}
	return t.Length
}

// Literals parses data as literals only.
func Literals(data []byte) []Token {
	tokens := make([]Token, len(data))
	for i, b := range data {
		tokens[i] = Lit(b)
	}
	return tokens
}

// GreedyParse returns a greedy LZ77 parse of data using a hash chain over
// three byte prefixes. Matches are between 3 and maxLen bytes long and reach
// at most maxOffset bytes back.
func GreedyParse(data []byte, maxLen, maxOffset int) []Token {
	const maxChain = 64
	key := func(i int) uint32 {
		return uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16
	}
	head := make(map[uint32]int)
	prev := make([]int, len(data))
	insert := func(i int) {
		if i+3 > len(data) {
			return
		}
		k := key(i)
		if p, ok := head[k]; ok {
			prev[i] = p
		} else {
			prev[i] = -1
		}
		head[k] = i
	}

	var tokens []Token
	for i := 0; i < len(data); {
		bestLen, bestOff := 0, 0
		if i+3 <= len(data) {
			limit := min(maxLen, len(data)-i)
			p := -1
			if v, ok := head[key(i)]; ok {
				p = v
			}
			for depth := 0; p >= 0 && depth < maxChain; depth++ {
				off := i - p
				if off > maxOffset {
					break
				}
				n := 0
				for n < limit && data[p+n] == data[i+n] {
					n++
				}
				if n > bestLen {
					bestLen, bestOff = n, off
				}
				p = prev[p]
			}
		}
		if bestLen >= 3 {
			tokens = append(tokens, Match(bestOff, bestLen))
			for j := i; j < i+bestLen; j++ {
				insert(j)
			}
			i += bestLen
			continue
		}
		tokens = append(tokens, Lit(data[i]))
		insert(i)
		i++
	}
	return tokens
}

// Expand returns the bytes a parse decodes to, appended to prefix.
func Expand(prefix []byte, tokens []Token) []byte {
	out := append([]byte(nil), prefix...)
	for _, t := range tokens {
		if t.Length == 0 {
			out = append(out, t.Literal)
			continue
		}
		for i := 0; i < t.Length; i++ {
			out = append(out, out[len(out)-t.Offset])
		}
	}
	return out
}
