package deployer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mattskanaut/car-cs-deployment/pkg/utils/retrypolicy"
)

const (
	fetchAttempts = 3
	fetchInterval = 5 * time.Second
)

// Fetcher retrieves archive bytes from a location reference. The transport
// details (TLS, signed URLs) are the location's concern; the fetcher either
// returns bytes or fails.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// HTTPFetcher fetches archives over HTTP(S) with bounded constant-backoff
// retries for transient failures.
type HTTPFetcher struct {
	client *http.Client
	policy retrypolicy.Policy
}

// FetcherOption customizes an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithFetchPolicy overrides the fetch retry budget.
func WithFetchPolicy(policy retrypolicy.Policy) FetcherOption {
	return func(f *HTTPFetcher) {
		f.policy = policy
	}
}

// NewHTTPFetcher creates an HTTPFetcher with the default retry budget.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	fetcher := &HTTPFetcher{
		client: &http.Client{},
		policy: retrypolicy.Policy{Interval: fetchInterval, MaxAttempts: fetchAttempts},
	}

	for _, opt := range opts {
		opt(fetcher)
	}

	return fetcher
}

// Fetch downloads the archive at location, retrying transient failures.
func (f *HTTPFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	var payload []byte

	err := f.policy.Do(ctx, func() error {
		body, attemptErr := f.fetchOnce(ctx, location)
		if attemptErr != nil {
			log.WithError(attemptErr).WithField("location", location).
				Debug("archive fetch attempt failed")

			return attemptErr
		}

		payload = body

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, location, err)
	}

	return payload, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, location string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, retrypolicy.Permanent(fmt.Errorf("build request: %w", err))
	}

	response, err := f.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", location, err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		err = fmt.Errorf("get %q: unexpected status %s", location, response.Status)
		// Client errors will not heal on retry; server errors might.
		if response.StatusCode >= 400 && response.StatusCode < 500 {
			return nil, retrypolicy.Permanent(err)
		}

		return nil, err
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}
