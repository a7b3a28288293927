package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kareemsasa3/rinkcal/internal/config"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

// Target selects which input a Rule inspects.
type Target int

const (
	TargetName Target = iota
	TargetURL
)

func (t Target) String() string {
	if t == TargetURL {
		return "url"
	}
	return "name"
}

// MatchKind selects how a Rule's pattern is applied.
type MatchKind int

const (
	MatchContains MatchKind = iota
	MatchSuffix
	MatchRegex
)

func (k MatchKind) String() string {
	switch k {
	case MatchSuffix:
		return "suffix"
	case MatchRegex:
		return "regex"
	}
	return "contains"
}

// Verdict is the outcome of the first rule that matches.
type Verdict int

const (
	Reject Verdict = iota
	Accept
)

func (v Verdict) String() string {
	if v == Accept {
		return "accept"
	}
	return "reject"
}

// Rule is one entry of an ordered page-rejection table. Fold lowercases the
// target before matching; Unless suppresses the rule when the (possibly
// folded) target contains it. Contains rules sharing a Target and Fold are
// matched together by one keyword automaton.
type Rule struct {
	Name    string
	Target  Target
	Kind    MatchKind
	Pattern string
	Fold    bool
	Unless  string
	Verdict Verdict

	re   *regexp.Regexp
	word int // slot in the scan's Keywords, -1 for an empty pattern
}

func (r *Rule) compile() error {
	if r.Kind != MatchRegex {
		return nil
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return fmt.Errorf("rule %s: %w", r.Name, err)
	}
	r.re = re
	return nil
}

type scanKey struct {
	target Target
	fold   bool
}

type scanInput struct {
	name, url, lowerName, lowerURL string
}

// text picks the input a scan inspects.
func (k scanKey) text(in scanInput) string {
	switch {
	case k.target == TargetURL && k.fold:
		return in.lowerURL
	case k.target == TargetURL:
		return in.url
	case k.fold:
		return in.lowerName
	}
	return in.name
}

// matches applies the rule. Contains rules read their verdict from the
// automaton hits computed for the whole table.
func (r *Rule) matches(in scanInput, hits map[scanKey][]bool) bool {
	key := scanKey{r.Target, r.Fold}
	s := key.text(in)
	if r.Unless != "" && strings.Contains(s, r.Unless) {
		return false
	}
	switch r.Kind {
	case MatchSuffix:
		return strings.HasSuffix(s, r.Pattern)
	case MatchRegex:
		return r.re != nil && r.re.MatchString(s)
	}
	if r.word < 0 {
		return true
	}
	found := hits[key]
	return r.word < len(found) && found[r.word]
}

var nonTeamNameKeywords = []string{
	"click me", "click here", "register", "registration",
	"jamboree", "bracket", "volunteer", "fundraiser",
	"frequently asked", "faq", "info page", "information",
	"contact", "board", "coaching corner", "coaches corner",
	"game day roster", "layout", "cost", "fees",
	"camp", "clinic", "article", "news", "trophy", "achievement",
	"photo album", "pictures", "picture", "photo", "champions", "congratulations",
	"schedule and results", "tournament", "classic", "showcase",
	"festival", "cup", "invite", "invitational", "preview", "goalie",
}

var nonTeamURLKeywords = []string{
	"tournament", "team-placement", "camp-and-team-placement",
	"responsibilities", "awards", "photo-day",
}

var externalURLMarkers = []string{
	"givemn.org", "gamesheetstats.com", "google.com/spreadsheets", "onenationexteriors.com",
	"discover.sportsengineplay.com", "/trophycase", "/news_article/", "/news/",
	"youtube.com", "youtu.be",
}

// DefaultNonTeamRules returns the built-in rejection table in evaluation order.
func DefaultNonTeamRules() []Rule {
	var rules []Rule
	for _, kw := range nonTeamNameKeywords {
		rules = append(rules, Rule{Name: "name:" + kw, Target: TargetName, Pattern: kw, Fold: true})
	}
	rules = append(rules, Rule{Name: "name:breadcrumb", Target: TargetName, Pattern: ">"})
	for _, kw := range nonTeamURLKeywords {
		rules = append(rules, Rule{Name: "url:" + kw, Target: TargetURL, Pattern: kw, Fold: true})
	}
	for _, ext := range []string{".pdf", ".doc", ".docx"} {
		rules = append(rules, Rule{Name: "url:document" + ext, Target: TargetURL, Kind: MatchSuffix, Pattern: ext})
	}
	rules = append(rules, Rule{Name: "url:attachment", Target: TargetURL, Pattern: "/attachments/document/"})
	for _, m := range externalURLMarkers {
		rules = append(rules, Rule{Name: "url:external:" + m, Target: TargetURL, Pattern: m})
	}
	rules = append(rules,
		Rule{Name: "url:generic-schedule", Target: TargetURL, Kind: MatchSuffix, Pattern: "/schedule", Fold: true, Unless: "/team/"},
		Rule{Name: "url:facility-schedule", Target: TargetURL, Pattern: "/schedule/facility", Fold: true, Unless: "/team/"},
	)
	return rules
}

var aggregateKeywords = []string{
	"team", "teams", "program", "league", "open", "intro", "skills",
	"clinic", "camp", "practice", "edge work", "3v3", "3 v 3",
	"scrimmage", "tournament", "jamboree", "classic", "cup", "tornado",
	"coach", "manager", "schedule", "miska", "wild night", "evaluation", "evaluations", "mini mite",
	"night", "session", "summer", "level", "jersey", "travel", "in house", "house", "ih", "goalie",
}

// numbered Mite groups survive aggregate keywords unless one of these appears
var numberedMiteBlockers = NewKeywords("mini mite", "mini-mite", "intro", "house", "session", "summer", "sunday")

var (
	numberedMiteRe = regexp.MustCompile(`\b[1-4]\b`)
	miteColorRe    = regexp.MustCompile(`(black|white|blue|gold|red|green|purple|navy|orange|gray|grey|silver|maroon|royal|aa|a|b1|b2|b|c|d)`)
	inHouseRe      = regexp.MustCompile(`ih`)
)

// Classifier holds the rejection table and aggregate vocabulary.
type Classifier struct {
	rules     []Rule
	scans     map[scanKey]*Keywords
	aggregate *Keywords
}

// NewClassifier builds the default table extended by configured entries.
// Extension patterns prefixed with "re:" are regular expressions, everything
// else is a case-insensitive substring.
func NewClassifier(cfg config.RulesConfig) (*Classifier, error) {
	rules := DefaultNonTeamRules()
	for _, p := range cfg.NonTeamNames {
		rules = append(rules, extensionRule("config:name", TargetName, p))
	}
	for _, p := range cfg.NonTeamURLs {
		rules = append(rules, extensionRule("config:url", TargetURL, p))
	}
	aggregate := append(append([]string(nil), aggregateKeywords...), lowerAll(cfg.AggregateKeywords)...)
	return NewClassifierWithRules(rules, aggregate)
}

// NewClassifierWithRules builds a classifier from an explicit table.
func NewClassifierWithRules(rules []Rule, aggregate []string) (*Classifier, error) {
	c := &Classifier{
		rules:     make([]Rule, len(rules)),
		scans:     make(map[scanKey]*Keywords),
		aggregate: NewKeywords(aggregate...),
	}
	copy(c.rules, rules)
	for i := range c.rules {
		r := &c.rules[i]
		if err := r.compile(); err != nil {
			return nil, err
		}
		if r.Kind != MatchContains {
			continue
		}
		key := scanKey{r.Target, r.Fold}
		kw, ok := c.scans[key]
		if !ok {
			kw = &Keywords{}
			c.scans[key] = kw
		}
		r.word = kw.add(r.Pattern)
	}
	for _, kw := range c.scans {
		kw.build()
	}
	return c, nil
}

// DefaultClassifier returns the built-in table with no extensions.
func DefaultClassifier() *Classifier {
	c, err := NewClassifier(config.RulesConfig{})
	if err != nil {
		panic(err)
	}
	return c
}

func extensionRule(prefix string, target Target, pattern string) Rule {
	if strings.HasPrefix(pattern, "re:") {
		p := strings.TrimPrefix(pattern, "re:")
		return Rule{Name: prefix + ":" + p, Target: target, Kind: MatchRegex, Pattern: "(?i)" + p}
	}
	p := strings.ToLower(pattern)
	return Rule{Name: prefix + ":" + p, Target: target, Pattern: p, Fold: true}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Rules returns a copy of the table in evaluation order.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// IsLikelyNonTeamPage evaluates the table against a link text or title and
// its URL. The first matching rule decides; its name is returned for logging.
func (c *Classifier) IsLikelyNonTeamPage(name, url string) (bool, string) {
	in := scanInput{name: name, url: url, lowerName: strings.ToLower(name), lowerURL: strings.ToLower(url)}
	hits := make(map[scanKey][]bool, len(c.scans))
	for key, kw := range c.scans {
		hits[key] = kw.hits(key.text(in))
	}
	for i := range c.rules {
		r := &c.rules[i]
		if r.matches(in, hits) {
			return r.Verdict == Reject, r.Name
		}
	}
	return false, ""
}

// IsAggregateOrInHouse reports names that describe a program, event or
// in-house group rather than one competitive team.
func (c *Classifier) IsAggregateOrInHouse(name, detail string) bool {
	return c.aggregate.In(collapse(name + " " + detail))
}

// ShouldSkipTeam decides whether a named candidate is noise. detail must
// already be normalized for the age group.
func (c *Classifier) ShouldSkipTeam(age types.AgeGroup, detail, name string) bool {
	lowerName := strings.ToLower(name)
	lowerDetail := strings.ToLower(detail)

	if IsAggregateLevelDetail(detail) {
		return true
	}
	if lowerDetail == "unknown" &&
		whitespaceRe.ReplaceAllString(lowerName, "") == whitespaceRe.ReplaceAllString(strings.ToLower(string(age)), "") {
		return true
	}
	if age == types.Mites {
		if inHouseRe.MatchString(lowerName) {
			return true
		}
		if lowerDetail == "8u" && strings.Contains(lowerName, "mite") && !miteColorRe.MatchString(lowerName) {
			return true
		}
		if strings.Contains(lowerName, "hockey mite") {
			return true
		}
	}
	if c.IsAggregateOrInHouse(name, detail) {
		if age != types.Mites || !numberedMiteRe.MatchString(detail) {
			return true
		}
		if numberedMiteBlockers.In(lowerName + " " + lowerDetail) {
			return true
		}
	}
	token, ok := LevelToken(age, detail)
	if !ok {
		if token, ok = LevelToken(age, name); !ok {
			token = detail
		}
	}
	return !IsValidCompetitiveLevel(age, token)
}
