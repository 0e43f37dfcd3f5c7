// Package fetch downloads web pages and raw image bytes over HTTP.
package fetch

import (
	"context"
	"errors"

	errs "phototimer/pkg/errors"
)

// Fetcher returns the raw markup of a page
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// PageFetcher is the HTTP Fetcher
type PageFetcher struct {
	client   *Client
	maxBytes int64
}

// NewPageFetcher creates a PageFetcher reading at most maxBytes per page
func NewPageFetcher(client *Client, maxBytes int64) *PageFetcher {
	return &PageFetcher{client: client, maxBytes: maxBytes}
}

// Fetch returns the page body as text. Failures are *errors.FetchError.
func (f *PageFetcher) Fetch(ctx context.Context, url string) (string, error) {
	resp, err := f.client.Get(ctx, url, f.maxBytes)
	if err != nil {
		return "", newFetchError(url, err)
	}
	return string(resp.Body), nil
}

func newFetchError(url string, err error) *errs.FetchError {
	fe := &errs.FetchError{URL: url, Reason: err.Error(), Err: Classify(err)}
	switch {
	case errors.Is(err, context.Canceled):
		fe.Reason = "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		fe.Reason = "timed out"
	case fe.Err != nil:
		fe.Reason = fe.Err.Message
	}
	return fe
}
