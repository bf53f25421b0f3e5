package fetch

import (
	"bytes"
	"strings"
)

// Markers that identify an anti-automation challenge page served with a
// 200 status. Matching is case-insensitive over the body.
var challengeMarkers = []string{
	"enter the characters you see below",
	"type the characters you see in this image",
	"to discuss automated access",
	"robot check",
	"/errors/validatecaptcha",
	"api-services-support@",
}

// Limit how much of the body is scanned; challenge pages are small and
// their markers appear early.
const challengeScanBytes = 64 * 1024

func IsChallenge(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	scan := body
	if len(scan) > challengeScanBytes {
		scan = scan[:challengeScanBytes]
	}
	lower := bytes.ToLower(scan)
	for _, marker := range challengeMarkers {
		if bytes.Contains(lower, []byte(strings.ToLower(marker))) {
			return true
		}
	}
	return false
}
