package blacklist

import (
	"testing"

	"shelfrank/internal/model"
)

func TestMatch_AuthorExact(t *testing.T) {
	e := Compile(Policy{Authors: []string{"Stephen King"}})

	v := e.Match("The Shining", "Stephen King")
	if !v.Matched {
		t.Fatal("expected match")
	}
	if v.Reason != model.ReasonBlacklistedAuthor {
		t.Errorf("reason: got %q", v.Reason)
	}
	if v.Pattern != "Stephen King" {
		t.Errorf("pattern: got %q", v.Pattern)
	}
}

func TestMatch_AuthorNormalization(t *testing.T) {
	e := Compile(Policy{Authors: []string{"J.K. Rowling"}})

	// Punctuation and casing differences must not defeat the rule
	if v := e.Match("Some Book", "j k rowling"); !v.Matched {
		t.Error("expected match for punctuation-stripped author")
	}
	if v := e.Match("Some Book", "J K ROWLING"); !v.Matched {
		t.Error("expected match for uppercased author")
	}
}

func TestMatch_AuthorContainment(t *testing.T) {
	e := Compile(Policy{Authors: []string{"king"}})

	// Rule contained in author
	if v := e.Match("Some Book", "Stephen King"); !v.Matched {
		t.Error("expected match when rule is contained in author")
	}

	// Author contained in rule
	e2 := Compile(Policy{Authors: []string{"Stephen Edwin King"}})
	if v := e2.Match("Some Book", "Edwin King"); !v.Matched {
		t.Error("expected match when author is contained in rule")
	}
}

func TestMatch_AuthorSharedLastToken(t *testing.T) {
	e := Compile(Policy{Authors: []string{"Richard Castle"}})

	if v := e.Match("Some Book", "Jane Castle"); !v.Matched {
		t.Error("expected match on shared surname")
	}

	// Last tokens of 3 characters or fewer are too ambiguous to match on
	e2 := Compile(Policy{Authors: []string{"Li Bo"}})
	if v := e2.Match("Some Book", "Xa Bo"); v.Matched {
		t.Error("short last token should not match on its own")
	}
}

func TestMatch_AuthorNoMatch(t *testing.T) {
	e := Compile(Policy{Authors: []string{"Stephen King"}})

	if v := e.Match("Some Book", "Ursula K. Le Guin"); v.Matched {
		t.Errorf("unexpected match: %+v", v)
	}
	if v := e.Match("Some Book", ""); v.Matched {
		t.Error("empty author must never match")
	}
}

func TestMatch_TitleWordBoundary(t *testing.T) {
	e := Compile(Policy{TitlePatterns: []string{"crypto"}})

	v := e.Match("Crypto Secrets Revealed", "Anon")
	if !v.Matched {
		t.Fatal("expected match on whole word")
	}
	if v.Reason != model.ReasonBlacklistedTitle {
		t.Errorf("reason: got %q", v.Reason)
	}

	// "crypto" inside "cryptography" is not a whole-word hit
	if v := e.Match("Cryptography Engineering", "Anon"); v.Matched {
		t.Error("substring inside a longer word should not match")
	}
}

func TestMatch_TitleRegexFallback(t *testing.T) {
	// "c++ primer" does not compile as a regexp, so the rule degrades
	// to plain substring containment
	e := Compile(Policy{TitlePatterns: []string{"c++ primer"}})

	if v := e.Match("The C++ Primer, 5th Edition", "Lippman"); !v.Matched {
		t.Error("expected substring fallback to match")
	}
	if v := e.Match("A C Primer", "Someone"); v.Matched {
		t.Error("fallback should still require the full pattern text")
	}
}

func TestMatch_LegacyPatterns(t *testing.T) {
	e := Compile(Policy{Patterns: []string{"title:forbidden", "Hack Author"}})

	v := e.Match("The Forbidden Chronicle", "Nobody")
	if !v.Matched || v.Reason != model.ReasonBlacklistedTitle {
		t.Errorf("legacy title rule: got %+v", v)
	}
	if v.Pattern != "title:forbidden" {
		t.Errorf("pattern should keep the raw entry, got %q", v.Pattern)
	}

	v = e.Match("Clean Book", "Hack Author")
	if !v.Matched || v.Reason != model.ReasonBlacklistedAuthor {
		t.Errorf("legacy author rule: got %+v", v)
	}
}

func TestMatch_AuthorRulesTakePrecedence(t *testing.T) {
	e := Compile(Policy{
		Authors:       []string{"Bad Writer"},
		TitlePatterns: []string{"banned"},
	})

	// Book matches both an author and a title rule; the author reason wins
	v := e.Match("The Banned Tome", "Bad Writer")
	if !v.Matched {
		t.Fatal("expected match")
	}
	if v.Reason != model.ReasonBlacklistedAuthor {
		t.Errorf("reason: got %q, want %q", v.Reason, model.ReasonBlacklistedAuthor)
	}
}

func TestMatch_EmptyPolicy(t *testing.T) {
	e := Compile(Policy{})

	if v := e.Match("Any Title", "Any Author"); v.Matched {
		t.Errorf("empty policy must match nothing, got %+v", v)
	}
	if e.RuleCount() != 0 {
		t.Errorf("RuleCount: got %d, want 0", e.RuleCount())
	}
}

func TestCompile_SkipsBlankEntries(t *testing.T) {
	e := Compile(Policy{
		Authors:       []string{"", "   ", "Real Author"},
		TitlePatterns: []string{""},
	})

	if e.RuleCount() != 1 {
		t.Errorf("RuleCount: got %d, want 1", e.RuleCount())
	}
}
