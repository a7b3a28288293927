package classify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywords(t *testing.T) {
	k := NewKeywords("cup", "hiccup", "pee wee", "cup", "")
	assert.Equal(t, 3, k.Len())

	assert.True(t, k.In("squirt hiccups"))
	assert.Equal(t, []string{"cup", "hiccup"}, k.Find("hiccup"), "overlapping words are all reported")
	assert.Equal(t, []string{"pee wee"}, k.Find("pee wee a"))
	assert.False(t, k.In("peewee"))
	assert.Nil(t, k.Find("bantam"))

	var zero Keywords
	assert.False(t, zero.In("cup"))
	var none *Keywords
	assert.False(t, none.In("cup"))
	assert.Nil(t, none.Find("cup"))
}

func TestKeywordsConcurrentFind(t *testing.T) {
	k := NewKeywords("mite", "squirt", "bantam")
	texts := map[string][]string{
		"mite 3 green":     {"mite"},
		"squirt b1 gold":   {"squirt"},
		"bantam vs squirt": {"squirt", "bantam"},
		"peewee a":         nil,
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				for text, want := range texts {
					assert.Equal(t, want, k.Find(text), text)
				}
			}
		}()
	}
	wg.Wait()
}

func TestRuleTableOrderWithSharedScans(t *testing.T) {
	c, err := NewClassifierWithRules([]Rule{
		{Name: "exact-case", Target: TargetName, Pattern: "Cup"},
		{Name: "folded", Target: TargetName, Pattern: "cup", Fold: true},
		{Name: "folded-again", Target: TargetName, Pattern: "cup", Fold: true, Verdict: Accept},
		{Name: "any-url", Target: TargetURL},
	}, nil)
	require.NoError(t, err)

	reject, rule := c.IsLikelyNonTeamPage("Summer Cup", "")
	assert.True(t, reject)
	assert.Equal(t, "exact-case", rule)

	reject, rule = c.IsLikelyNonTeamPage("Summer CUP", "")
	assert.True(t, reject)
	assert.Equal(t, "folded", rule, "an earlier rule wins over a duplicate pattern")

	_, rule = c.IsLikelyNonTeamPage("Bantam A", "https://x.org")
	assert.Equal(t, "any-url", rule, "an empty pattern matches everything")

	names := make([]string, 0, 4)
	for _, r := range c.Rules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"exact-case", "folded", "folded-again", "any-url"}, names)

	_, rule = DefaultClassifier().IsLikelyNonTeamPage("Bantam Tournament Cup", "https://x.org/page/show/1")
	assert.Equal(t, "name:tournament", rule)
}
