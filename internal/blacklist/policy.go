// Package blacklist loads the filter policy document and compiles it into
// a matching engine with author, title and legacy pattern strategies.
package blacklist

import (
	"errors"

	"shelfrank/internal/logging"
	"shelfrank/internal/store"
)

// Policy is the persisted blacklist document. Patterns is the legacy list
// kept for backward compatibility: entries prefixed "title:" are title
// patterns, anything else is an author pattern.
type Policy struct {
	Authors       []string `json:"authors"`
	TitlePatterns []string `json:"title_patterns"`
	Patterns      []string `json:"patterns"`
	Version       string   `json:"version"`
	LastUpdated   string   `json:"last_updated"`
}

func Empty() Policy {
	return Policy{
		Authors:       []string{},
		TitlePatterns: []string{},
		Patterns:      []string{},
	}
}

func (p Policy) IsEmpty() bool {
	return len(p.Authors) == 0 && len(p.TitlePatterns) == 0 && len(p.Patterns) == 0
}

// Load reads the policy at path. A missing document is an empty policy; a
// malformed one is logged and also treated as empty rather than aborting
// the filter stage.
func Load(path string, logger *logging.Logger) Policy {
	var p Policy
	err := store.Read(path, &p)
	switch {
	case err == nil:
		if p.Authors == nil {
			p.Authors = []string{}
		}
		if p.TitlePatterns == nil {
			p.TitlePatterns = []string{}
		}
		if p.Patterns == nil {
			p.Patterns = []string{}
		}
		return p
	case errors.Is(err, store.ErrNotFound):
		return Empty()
	default:
		if logger != nil {
			logger.Warnf("blacklist unreadable, falling back to empty policy: %v", err)
		}
		return Empty()
	}
}
