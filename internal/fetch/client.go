// Package fetch retrieves product pages from a source that actively
// resists automation. One retry policy with a pluggable classifier covers
// rate limits, transient transport errors and challenge pages.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"shelfrank/internal/logging"
)

// ErrRetriesExhausted reports that every attempt was consumed without a
// final response.
var ErrRetriesExhausted = errors.New("retries exhausted")

const maxBodyBytes = 10 * 1024 * 1024

// Result is a final fetch outcome. A non-200 status that the classifier
// declined to retry is still a Result, not an error; callers decide what
// to do with it.
type Result struct {
	StatusCode int
	Body       []byte
	FinalURL   string
	Attempts   int
}

type Options struct {
	Timeout      time.Duration
	MaxRedirects int
}

// Client fetches pages with retry, backoff and challenge handling.
// OnRetry, when set, observes every scheduled retry.
type Client struct {
	opts     Options
	policy   RetryPolicy
	classify Classifier
	logger   *logging.Logger

	OnRetry func(reason string)
}

func NewClient(opts Options, policy RetryPolicy, classify Classifier, logger *logging.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 5
	}
	if classify == nil {
		classify = DefaultClassifier
	}
	return &Client{opts: opts, policy: policy, classify: classify, logger: logger}
}

// Fetch retrieves rawURL, retrying per the policy. The returned session
// reflects cookie and User-Agent state changes and must be threaded into
// the next call.
func (c *Client) Fetch(ctx context.Context, rawURL string, sess Session) (*Result, Session, error) {
	var lastReason string

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.policy.Delay(attempt - 1)
			c.logger.Debugf("retry %d/%d for %s after %s (%s)",
				attempt, c.policy.MaxAttempts, rawURL, delay.Round(time.Millisecond), lastReason)
			if c.OnRetry != nil {
				c.OnRetry(lastReason)
			}
			select {
			case <-ctx.Done():
				return nil, sess, fmt.Errorf("fetch cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, body, err := c.do(ctx, rawURL, sess)
		decision := c.classify(resp, body, err)
		if !decision.Retry {
			if err != nil {
				return nil, sess, fmt.Errorf("fetch %s: %w", rawURL, err)
			}
			result := &Result{
				StatusCode: resp.StatusCode,
				Body:       body,
				FinalURL:   resp.Request.URL.String(),
				Attempts:   attempt,
			}
			return result, sess, nil
		}

		lastReason = decision.Reason
		if decision.Reason == ReasonChallenge {
			c.logger.Warnf("challenge page detected for %s, rotating user agent", rawURL)
			sess = sess.RotateAgent()
		}
	}

	return nil, sess, fmt.Errorf("%w after %d attempts for %s (last: %s)",
		ErrRetriesExhausted, c.policy.MaxAttempts, rawURL, lastReason)
}

// do performs one attempt. Redirects are followed within the hop limit and
// do not count as retry attempts.
func (c *Client) do(ctx context.Context, rawURL string, sess Session) (*http.Response, []byte, error) {
	maxRedirects := c.opts.MaxRedirects
	client := &http.Client{
		Timeout: c.opts.Timeout,
		Jar:     sess.jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", sess.UserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, err
	}

	return resp, body, nil
}
