package parse

import (
	"regexp"
	"strings"
)

var (
	isbnPattern       = regexp.MustCompile(`(?i)ISBN-1[03]`)
	dimensionsPattern = regexp.MustCompile(`(?i)(?:Dimensions|Product\s+Dimensions)|(?:\d+(?:\.\d+)?\s*x\s*\d+(?:\.\d+)?\s*x\s*\d+(?:\.\d+)?\s*(?:inches|cm))`)
)

// MatchesFormat checks that the page describes the required binding using
// three independent signals; any single signal passing is enough.
func (p *Product) MatchesFormat(required string) bool {
	matched, _ := p.FormatSignals(required)
	return matched
}

// FormatSignals reports which of the independent format signals matched:
// the format label, ISBN presence, or physical dimensions presence.
func (p *Product) FormatSignals(required string) (bool, []string) {
	var signals []string
	required = strings.ToLower(strings.TrimSpace(required))
	if required == "" {
		return true, signals
	}

	haystack := strings.ToLower(p.subtitleText + " " + p.detailText)
	if strings.Contains(haystack, required) {
		signals = append(signals, "format_label")
	}
	if isbnPattern.MatchString(p.detailText) {
		signals = append(signals, "isbn")
	}
	if dimensionsPattern.MatchString(p.detailText) {
		signals = append(signals, "dimensions")
	}

	return len(signals) > 0, signals
}
