package deployer_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattskanaut/car-cs-deployment/pkg/svc/deployer"
	"github.com/mattskanaut/car-cs-deployment/pkg/utils/retrypolicy"
)

func fastFetchPolicy() deployer.FetcherOption {
	return deployer.WithFetchPolicy(retrypolicy.Policy{
		Interval:    time.Millisecond,
		MaxAttempts: 3,
	})
}

func TestHTTPFetcher_ReturnsPayload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("archive-bytes"))
	}))
	defer server.Close()

	fetcher := deployer.NewHTTPFetcher(fastFetchPolicy())

	payload, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("archive-bytes"), payload)
}

func TestHTTPFetcher_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		_, _ = w.Write([]byte("eventually"))
	}))
	defer server.Close()

	fetcher := deployer.NewHTTPFetcher(fastFetchPolicy())

	payload, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("eventually"), payload)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPFetcher_ExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	fetcher := deployer.NewHTTPFetcher(fastFetchPolicy())

	_, err := fetcher.Fetch(context.Background(), server.URL)
	require.ErrorIs(t, err, deployer.ErrFetchFailed)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPFetcher_ClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := deployer.NewHTTPFetcher(fastFetchPolicy())

	_, err := fetcher.Fetch(context.Background(), server.URL)
	require.ErrorIs(t, err, deployer.ErrFetchFailed)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses must not burn the retry budget")
}
