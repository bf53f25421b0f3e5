package model

// RejectionRecord is the append-only audit snapshot of a purged book.
type RejectionRecord struct {
	BookID         string `json:"book_id"`
	Title          string `json:"title"`
	Author         string `json:"author"`
	SourceURL      string `json:"source_url"`
	RankValue      any    `json:"rank_value"`
	Reason         string `json:"reason"`
	MatchedPattern string `json:"matched_pattern"`
	Timestamp      string `json:"timestamp"`
}

// CleanupRecord is the append-only audit entry for a removed submission.
type CleanupRecord struct {
	URL         string `json:"url"`
	SubmittedAt string `json:"submitted_at"`
	Reason      string `json:"reason"`
	Timestamp   string `json:"timestamp"`
}
