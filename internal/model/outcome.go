package model

// Outcome classifies one acquisition attempt. Only network errors are
// retryable inside the acquisition stage; the rest are terminal for the
// submission within the current cycle.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeInvalidKey      Outcome = "invalid_key"
	OutcomeWrongFormat     Outcome = "wrong_format"
	OutcomeMissingRank     Outcome = "missing_rank_value"
	OutcomeMissingMetadata Outcome = "missing_metadata"
	OutcomeNetworkError    Outcome = "network_error"
)

// Cleanup removal reasons.
const (
	RemovalInvalidKey     = "invalid_key"
	RemovalFailedOrPurged = "failed_or_purged"
)

// Rejection reasons recorded by the filter stage.
const (
	ReasonBlacklistedAuthor = "blacklisted_author"
	ReasonBlacklistedTitle  = "blacklisted_title"
	ReasonErrorDuringCheck  = "error_during_check"
)
