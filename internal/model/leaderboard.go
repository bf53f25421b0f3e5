package model

// Leaderboard is the published, read-only artifact. Books is keyed by book ID
// and every entry carries a dense 1..N rank.
type Leaderboard struct {
	Version     string                      `json:"version"`
	LastUpdated string                      `json:"last_updated"`
	Books       map[string]LeaderboardEntry `json:"books"`
}

type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	CoverURL  string `json:"cover_url"`
	RankValue int    `json:"rank_value"`
	SourceURL string `json:"source_url"`
}

func NewLeaderboard(version string) *Leaderboard {
	return &Leaderboard{
		Version: version,
		Books:   map[string]LeaderboardEntry{},
	}
}
