package model

// Metadata is the process-wide state document. The embedded CycleStatus is
// rewritten by the orchestrator before and after every stage.
type Metadata struct {
	SchemaVersion int         `json:"schema_version"`
	FileType      string      `json:"file_type"`
	Cycle         CycleStatus `json:"cycle"`
	UpdatedAt     string      `json:"updated_at"`
}

func NewMetadata() *Metadata {
	return &Metadata{
		SchemaVersion: 1,
		FileType:      "metadata",
		Cycle:         CycleStatus{State: CycleIdle},
	}
}

type CycleStatus struct {
	State       CycleState  `json:"state"`
	RunID       string      `json:"run_id,omitempty"`
	StartedAt   *string     `json:"started_at"`
	CompletedAt *string     `json:"completed_at"`
	FailedAt    *string     `json:"failed_at"`
	Duration    float64     `json:"duration"`
	FailedStage string      `json:"failed_stage,omitempty"`
	LastError   *string     `json:"last_error"`
	Stats       *CycleStats `json:"stats"`
}

// CycleStats collects per-stage statistics. A nil stage pointer means the
// stage did not run, whether the run aborted early or was a filter-only
// refresh.
type CycleStats struct {
	Cleaner     *CleanStats   `json:"cleaner,omitempty"`
	Acquisition *AcquireStats `json:"acquisition,omitempty"`
	Filter      *FilterStats  `json:"filter,omitempty"`
	Publication *PublishStats `json:"publication,omitempty"`
}

type CleanStats struct {
	Checked   int `json:"checked"`
	Removed   int `json:"removed"`
	Remaining int `json:"remaining"`
}

type AcquireStats struct {
	Attempted  int `json:"attempted"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	BooksTotal int `json:"books_total"`
}

type FilterStats struct {
	Scanned   int `json:"scanned"`
	Purged    int `json:"purged"`
	Remaining int `json:"remaining"`
}

type PublishStats struct {
	Considered  int    `json:"considered"`
	Ranked      int    `json:"ranked"`
	PublishedAt string `json:"published_at"`
}
