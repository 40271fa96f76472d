// Package supplies turns the supply vocabulary found on printer web panels
// into canonical names and metric keys.
package supplies

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidEntry is returned by NewNormalizer for empty or contradictory entries.
var ErrInvalidEntry = errors.New("invalid dictionary entry")

// maxPasses bounds re-scanning of substituted output.
const maxPasses = 8

type phrase struct {
	key       []rune
	canonical string
}

// Normalizer translates supply names using an immutable dictionary. It is
// safe for concurrent use.
type Normalizer struct {
	exact   map[string]string
	byFirst map[rune][]phrase
}

// NewNormalizer builds a normalizer from entries. Matching is case-insensitive
// and whitespace-insensitive. Every canonical name is also registered as a
// phrase mapping to itself; a canonical name that is already a key with a
// different translation is rejected.
func NewNormalizer(entries []Entry) (*Normalizer, error) {
	n := &Normalizer{
		exact:   make(map[string]string, len(entries)*2),
		byFirst: make(map[rune][]phrase),
	}

	for i, e := range entries {
		key, canonical := foldKey(e.Phrase), clean(e.Canonical)
		if key == "" || canonical == "" {
			return nil, fmt.Errorf("%w: entry %d is empty", ErrInvalidEntry, i)
		}
		if prev, ok := n.exact[key]; ok && prev != canonical {
			return nil, fmt.Errorf("%w: %q maps to both %q and %q", ErrInvalidEntry, e.Phrase, prev, canonical)
		}
		n.exact[key] = canonical
	}

	for _, e := range entries {
		canonical := clean(e.Canonical)
		key := foldKey(canonical)
		if prev, ok := n.exact[key]; ok {
			if prev != canonical {
				return nil, fmt.Errorf("%w: canonical %q is also a key translating to %q", ErrInvalidEntry, canonical, prev)
			}
			continue
		}
		n.exact[key] = canonical
	}

	for key, canonical := range n.exact {
		rs := []rune(key)
		n.byFirst[rs[0]] = append(n.byFirst[rs[0]], phrase{key: rs, canonical: canonical})
	}
	for r := range n.byFirst {
		list := n.byFirst[r]
		sort.Slice(list, func(i, j int) bool {
			if len(list[i].key) != len(list[j].key) {
				return len(list[i].key) > len(list[j].key)
			}
			return string(list[i].key) < string(list[j].key)
		})
	}
	return n, nil
}

// Translate returns the canonical form of name: an exact dictionary hit if
// there is one, then whole-word substitution of every recognized phrase,
// longest first, repeated until the text stops changing. Unrecognized words
// are kept as written. Translate is idempotent.
func (n *Normalizer) Translate(name string) string {
	s := clean(name)
	if s == "" {
		return ""
	}
	if c, ok := n.exact[string(lowerRunes([]rune(s)))]; ok {
		s = c
	}
	for i := 0; i < maxPasses; i++ {
		next := n.substitute(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

// Known reports whether text contains at least one recognized phrase.
func (n *Normalizer) Known(text string) bool {
	rs := []rune(clean(text))
	lower := lowerRunes(rs)
	for i := range rs {
		if isWordStart(rs, i) {
			if _, ok := n.match(lower, i); ok {
				return true
			}
		}
	}
	return false
}

func (n *Normalizer) substitute(s string) string {
	rs := []rune(s)
	lower := lowerRunes(rs)

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(rs); {
		if isWordStart(rs, i) {
			if p, ok := n.match(lower, i); ok {
				b.WriteString(p.canonical)
				i += len(p.key)
				continue
			}
		}
		b.WriteRune(rs[i])
		i++
	}
	return b.String()
}

func (n *Normalizer) match(lower []rune, at int) (phrase, bool) {
	for _, p := range n.byFirst[lower[at]] {
		end := at + len(p.key)
		if end > len(lower) {
			continue
		}
		if end < len(lower) && isWordRune(lower[end]) {
			continue
		}
		if equalRunes(lower[at:end], p.key) {
			return p, true
		}
	}
	return phrase{}, false
}

func isWordStart(rs []rune, i int) bool {
	return i == 0 || !isWordRune(rs[i-1])
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func equalRunes(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func lowerRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

// clean composes to NFC and collapses whitespace runs.
func clean(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func foldKey(s string) string {
	return string(lowerRunes([]rune(clean(s))))
}
