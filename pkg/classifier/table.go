package classifier

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// RuleKind tags the two kinds of match rule.
type RuleKind int

const (
	// KeywordRule fires when any term appears as a whole word.
	KeywordRule RuleKind = iota + 1
	// EmojiRule fires when any term appears as a substring.
	EmojiRule
)

func (k RuleKind) String() string {
	switch k {
	case KeywordRule:
		return "keyword"
	case EmojiRule:
		return "emoji"
	default:
		return "invalid"
	}
}

// Rule is one entry in a category's rule list.
type Rule struct {
	Kind  RuleKind
	Terms []string
	re    *regexp.Regexp
}

// wordClass approximates a regex word character for any script.
const wordClass = `\p{L}\p{N}_`

func newKeywordRule(terms []string) (Rule, error) {
	alts := make([]string, 0, len(terms))
	lowered := make([]string, 0, len(terms))
	for _, term := range terms {
		term = lower(strings.TrimSpace(term))
		if !isWordEdge(term) {
			return Rule{}, fmt.Errorf("keyword %q must start and end with a letter or digit", term)
		}
		lowered = append(lowered, term)
		alts = append(alts, regexp.QuoteMeta(term))
	}

	re, err := regexp.Compile(`(?i)(?:^|[^` + wordClass + `])(?:` + strings.Join(alts, "|") + `)(?:[^` + wordClass + `]|$)`)
	if err != nil {
		return Rule{}, fmt.Errorf("compiling keyword rule: %w", err)
	}
	return Rule{Kind: KeywordRule, Terms: lowered, re: re}, nil
}

func isWordEdge(term string) bool {
	if term == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(term)
	last, _ := utf8.DecodeLastRuneInString(term)
	return isWordRune(first) && isWordRune(last)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// Matches reports whether the rule fires anywhere in content.
// content is expected to be lower-cased already.
func (r Rule) Matches(content string) bool {
	switch r.Kind {
	case KeywordRule:
		return r.re.MatchString(content)
	case EmojiRule:
		for _, term := range r.Terms {
			if strings.Contains(content, term) {
				return true
			}
		}
	}
	return false
}

// CategoryRules is the ordered rule list of one category.
type CategoryRules struct {
	Category Category
	Rules    []Rule
}

// FastPathEntry maps one emoji straight to a category.
type FastPathEntry struct {
	Emoji    string
	Category Category
}

// Table is an immutable, ordered pattern table.
type Table struct {
	fastPath   []FastPathEntry
	categories []CategoryRules
}

type tableFile struct {
	EmojiFastPath []struct {
		Emoji    string `yaml:"emoji"`
		Category string `yaml:"category"`
	} `yaml:"emoji_fast_path"`
	Categories []struct {
		Category string `yaml:"category"`
		Rules    []struct {
			Keywords []string `yaml:"keywords"`
			Emoji    []string `yaml:"emoji"`
		} `yaml:"rules"`
	} `yaml:"categories"`
}

// Load parses a YAML pattern table. Categories keep their file order.
func Load(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing patterns: %w", err)
	}

	t := &Table{}
	for _, entry := range f.EmojiFastPath {
		cat := Category(entry.Category)
		if !cat.Valid() {
			return nil, fmt.Errorf("fast path emoji %q: unknown category %q", entry.Emoji, entry.Category)
		}
		if entry.Emoji == "" {
			return nil, fmt.Errorf("fast path entry for %q: empty emoji", entry.Category)
		}
		t.fastPath = append(t.fastPath, FastPathEntry{Emoji: entry.Emoji, Category: cat})
	}

	seen := make(map[Category]bool, len(f.Categories))
	for _, c := range f.Categories {
		cat := Category(c.Category)
		if !cat.Valid() {
			return nil, fmt.Errorf("unknown category %q", c.Category)
		}
		if seen[cat] {
			return nil, fmt.Errorf("category %q declared twice", c.Category)
		}
		seen[cat] = true

		rules := make([]Rule, 0, len(c.Rules))
		for i, raw := range c.Rules {
			switch {
			case len(raw.Keywords) > 0 && len(raw.Emoji) > 0:
				return nil, fmt.Errorf("%s rule %d: keywords and emoji are exclusive", cat, i)
			case len(raw.Keywords) > 0:
				rule, err := newKeywordRule(raw.Keywords)
				if err != nil {
					return nil, fmt.Errorf("%s rule %d: %w", cat, i, err)
				}
				rules = append(rules, rule)
			case len(raw.Emoji) > 0:
				rules = append(rules, Rule{Kind: EmojiRule, Terms: raw.Emoji})
			default:
				return nil, fmt.Errorf("%s rule %d: empty rule", cat, i)
			}
		}
		t.categories = append(t.categories, CategoryRules{Category: cat, Rules: rules})
	}

	return t, nil
}

// Categories returns the category rule lists in declaration order.
func (t *Table) Categories() []CategoryRules {
	out := make([]CategoryRules, len(t.categories))
	copy(out, t.categories)
	return out
}

// FastPath returns the emoji fast path entries in match order.
func (t *Table) FastPath() []FastPathEntry {
	out := make([]FastPathEntry, len(t.fastPath))
	copy(out, t.fastPath)
	return out
}

// ClassifyEmoji returns the category of the first fast path emoji contained
// in text, or Unknown.
func (t *Table) ClassifyEmoji(text string) Category {
	if text == "" {
		return Unknown
	}
	for _, entry := range t.fastPath {
		if strings.Contains(text, entry.Emoji) {
			return entry.Category
		}
	}
	return Unknown
}

// Classify scores title and text against every category and returns the
// category with the most matching rules, or Unknown when nothing fires.
func (t *Table) Classify(title, text string) Category {
	best, bestScore := Unknown, 0
	for _, s := range t.Scores(title, text) {
		if s.Matches > bestScore {
			best, bestScore = s.Category, s.Matches
		}
	}
	return best
}

// Detect tries the emoji fast path on text, then the keyword stage on title and text.
func (t *Table) Detect(title, text string) (Category, Stage) {
	if cat := t.ClassifyEmoji(text); cat != Unknown {
		return cat, StageEmoji
	}
	if cat := t.Classify(title, text); cat != Unknown {
		return cat, StageKeyword
	}
	return Unknown, StageNone
}

// Scores returns how many rules fired for each category, in declaration order.
func (t *Table) Scores(title, text string) []Score {
	content := lower(title)
	if text != "" {
		content += " " + lower(text)
	}

	scores := make([]Score, 0, len(t.categories))
	for _, c := range t.categories {
		n := 0
		for _, rule := range c.Rules {
			if rule.Matches(content) {
				n++
			}
		}
		scores = append(scores, Score{Category: c.Category, Matches: n})
	}
	return scores
}
