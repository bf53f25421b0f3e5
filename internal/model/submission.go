package model

// Submission is a pending request to track one book.
type Submission struct {
	ID             string `json:"id,omitempty"`
	URL            string `json:"url"`
	SubmittedAt    string `json:"submitted_at"`
	Submitter      string `json:"submitter"`
	FailedAttempts int    `json:"failed_attempts"`
}

type SubmissionQueue struct {
	SchemaVersion int          `json:"schema_version"`
	FileType      string       `json:"file_type"`
	Submissions   []Submission `json:"submissions"`
}

func NewSubmissionQueue() *SubmissionQueue {
	return &SubmissionQueue{
		SchemaVersion: 1,
		FileType:      "submissions",
		Submissions:   []Submission{},
	}
}
