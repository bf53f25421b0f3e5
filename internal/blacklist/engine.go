package blacklist

import (
	"regexp"
	"strings"

	"shelfrank/internal/model"
)

// Verdict is the outcome of matching one book against the policy.
type Verdict struct {
	Matched bool
	Reason  string
	Pattern string
}

type authorRule struct {
	raw        string
	normalized string
	lastToken  string
}

// titleRule carries a compiled word-boundary expression, or nil when the
// pattern could not form one, in which case matching falls back to plain
// substring containment.
type titleRule struct {
	raw        string
	normalized string
	re         *regexp.Regexp
}

// Engine is a compiled policy. Rules are evaluated author-first, then
// title patterns, then legacy patterns; the first match wins.
type Engine struct {
	authors       []authorRule
	titles        []titleRule
	legacyAuthors []authorRule
	legacyTitles  []titleRule
}

// Compile pre-compiles every policy entry.
func Compile(p Policy) *Engine {
	e := &Engine{}

	for _, a := range p.Authors {
		if r, ok := compileAuthorRule(a); ok {
			e.authors = append(e.authors, r)
		}
	}
	for _, t := range p.TitlePatterns {
		if r, ok := compileTitleRule(t); ok {
			e.titles = append(e.titles, r)
		}
	}
	for _, entry := range p.Patterns {
		if rest, ok := strings.CutPrefix(entry, "title:"); ok {
			if r, ok := compileTitleRule(rest); ok {
				r.raw = entry
				e.legacyTitles = append(e.legacyTitles, r)
			}
			continue
		}
		if r, ok := compileAuthorRule(entry); ok {
			e.legacyAuthors = append(e.legacyAuthors, r)
		}
	}

	return e
}

// Match evaluates a book's title and author against the compiled policy.
func (e *Engine) Match(title, author string) Verdict {
	normAuthor := normalizeAuthor(author)
	normTitle := normalizeTitle(title)

	for _, r := range e.authors {
		if authorMatches(r, normAuthor) {
			return Verdict{Matched: true, Reason: model.ReasonBlacklistedAuthor, Pattern: r.raw}
		}
	}
	for _, r := range e.titles {
		if titleMatches(r, normTitle) {
			return Verdict{Matched: true, Reason: model.ReasonBlacklistedTitle, Pattern: r.raw}
		}
	}
	for _, r := range e.legacyAuthors {
		if authorMatches(r, normAuthor) {
			return Verdict{Matched: true, Reason: model.ReasonBlacklistedAuthor, Pattern: r.raw}
		}
	}
	for _, r := range e.legacyTitles {
		if titleMatches(r, normTitle) {
			return Verdict{Matched: true, Reason: model.ReasonBlacklistedTitle, Pattern: r.raw}
		}
	}

	return Verdict{}
}

func (e *Engine) RuleCount() int {
	return len(e.authors) + len(e.titles) + len(e.legacyAuthors) + len(e.legacyTitles)
}

func compileAuthorRule(raw string) (authorRule, bool) {
	norm := normalizeAuthor(raw)
	if norm == "" {
		return authorRule{}, false
	}
	tokens := strings.Fields(norm)
	last := ""
	if len(tokens) > 0 {
		last = tokens[len(tokens)-1]
	}
	return authorRule{raw: raw, normalized: norm, lastToken: last}, true
}

func compileTitleRule(raw string) (titleRule, bool) {
	norm := normalizeTitle(raw)
	if norm == "" {
		return titleRule{}, false
	}
	r := titleRule{raw: raw, normalized: norm}
	if re, err := regexp.Compile(`\b` + norm + `\b`); err == nil {
		r.re = re
	}
	return r, true
}

// authorMatches applies the three author strategies against a normalized
// author name: exact equality, substring containment in either direction,
// or a shared last token longer than 3 characters.
func authorMatches(r authorRule, normAuthor string) bool {
	if normAuthor == "" {
		return false
	}
	if normAuthor == r.normalized {
		return true
	}
	if strings.Contains(normAuthor, r.normalized) || strings.Contains(r.normalized, normAuthor) {
		return true
	}
	if len(r.lastToken) > 3 {
		tokens := strings.Fields(normAuthor)
		if len(tokens) > 0 && tokens[len(tokens)-1] == r.lastToken {
			return true
		}
	}
	return false
}

func titleMatches(r titleRule, normTitle string) bool {
	if normTitle == "" {
		return false
	}
	if r.re != nil {
		return r.re.MatchString(normTitle)
	}
	return strings.Contains(normTitle, r.normalized)
}

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
var whitespace = regexp.MustCompile(`\s+`)

// normalizeAuthor lowercases, strips punctuation and collapses whitespace.
func normalizeAuthor(s string) string {
	s = strings.ToLower(s)
	s = punctuation.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// normalizeTitle lowercases and collapses whitespace, keeping punctuation
// so patterns may target it.
func normalizeTitle(s string) string {
	s = strings.ToLower(s)
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
