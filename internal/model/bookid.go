package model

import (
	"regexp"
	"strings"
)

// Book IDs are 10-character alphanumeric identifiers embedded at a fixed
// position in product URLs: /dp/<id>, /gp/product/<id> or /product/<id>.
var bookIDPattern = regexp.MustCompile(`(?i)/(?:dp|gp/product|product)/([A-Z0-9]{10})(?:[/?#]|$)`)

// ExtractBookID returns the book ID embedded in rawURL. It is a pure
// function: the same URL always yields the same ID, or always none.
func ExtractBookID(rawURL string) (string, bool) {
	m := bookIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}
