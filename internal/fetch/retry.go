package fetch

import (
	"math"
	"math/rand"
	"net/http"
	"time"
)

// RetryPolicy controls the capped exponential backoff applied to
// retryable fetch failures.
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   5,
		BaseDelay:     1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.2,
	}
}

// Delay returns the backoff before retry number attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	jitter := 1.0 + (rand.Float64()-0.5)*p.JitterFactor
	delay *= jitter
	return time.Duration(delay)
}

// Decision is a classifier's verdict on one attempt.
type Decision struct {
	Retry  bool
	Reason string
}

// Classifier inspects one attempt's response, body and transport error and
// decides whether the attempt is retryable. A single classifier replaces
// per-error-type retry loops so rate limits, transient errors and
// challenge pages all share the same backoff path.
type Classifier func(resp *http.Response, body []byte, err error) Decision

// Retry reasons reported by the default classifier.
const (
	ReasonTransportError = "transport_error"
	ReasonRateLimited    = "rate_limited"
	ReasonUnavailable    = "service_unavailable"
	ReasonChallenge      = "challenge_page"
)

// DefaultClassifier retries transient transport errors, HTTP 429/503 and
// detected anti-automation challenge pages. Everything else is final.
func DefaultClassifier(resp *http.Response, body []byte, err error) Decision {
	if err != nil {
		return Decision{Retry: true, Reason: ReasonTransportError}
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return Decision{Retry: true, Reason: ReasonRateLimited}
	case http.StatusServiceUnavailable:
		return Decision{Retry: true, Reason: ReasonUnavailable}
	}
	if resp.StatusCode == http.StatusOK && IsChallenge(body) {
		return Decision{Retry: true, Reason: ReasonChallenge}
	}
	return Decision{}
}
