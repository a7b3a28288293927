package classify

import (
	"github.com/cloudflare/ahocorasick"
)

// Keywords is a fixed vocabulary matched against text in a single pass with
// an Aho-Corasick automaton. Words are matched as raw bytes, so callers fold
// case before matching. The zero value matches nothing.
type Keywords struct {
	words   []string
	index   map[string]int
	matcher *ahocorasick.Matcher
}

// NewKeywords builds a vocabulary. Duplicate and empty words are dropped.
func NewKeywords(words ...string) *Keywords {
	k := &Keywords{}
	for _, w := range words {
		k.add(w)
	}
	k.build()
	return k
}

// add registers w and returns its dictionary slot, or -1 for an empty word.
// The automaton holds one entry per distinct word: it reports only the last
// index of a repeated entry.
func (k *Keywords) add(w string) int {
	if w == "" {
		return -1
	}
	if k.index == nil {
		k.index = make(map[string]int)
	}
	if i, ok := k.index[w]; ok {
		return i
	}
	k.index[w] = len(k.words)
	k.words = append(k.words, w)
	return len(k.words) - 1
}

func (k *Keywords) build() {
	if len(k.words) > 0 {
		k.matcher = ahocorasick.NewStringMatcher(k.words)
	}
}

// Len is the number of distinct words.
func (k *Keywords) Len() int { return len(k.words) }

// In reports whether any word occurs in text.
func (k *Keywords) In(text string) bool {
	return k != nil && k.matcher != nil && k.matcher.Contains([]byte(text))
}

// Find returns the words occurring in text, in vocabulary order.
func (k *Keywords) Find(text string) []string {
	var out []string
	for i, hit := range k.hits(text) {
		if hit {
			out = append(out, k.words[i])
		}
	}
	return out
}

// hits marks, per dictionary slot, whether the word occurs in text. Safe for
// concurrent use.
func (k *Keywords) hits(text string) []bool {
	if k == nil || k.matcher == nil {
		return nil
	}
	found := make([]bool, len(k.words))
	for _, i := range k.matcher.MatchThreadSafe([]byte(text)) {
		found[i] = true
	}
	return found
}
