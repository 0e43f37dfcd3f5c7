// Package retry retries page and image requests that fail transiently.
//
// Errors classified through pkg/errors decide both whether a retry happens
// (errors.IsRetryable) and how long to wait (ErrorTypeBackoff): rate limited
// responses back off much longer than dropped connections. Cancellation of
// the context always stops retrying.
//
//	cfg := retry.FromSettings(appConfig.Retry, log)
//	body, err := retry.DoWithResult(ctx, cfg, func(ctx context.Context) ([]byte, error) {
//		return fetchOnce(ctx, url)
//	})
package retry
