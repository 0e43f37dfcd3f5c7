// Package ratelimit throttles the requests phototimer sends to a photo host.
//
// Fetching a page and then resolving one image per interval is light traffic,
// but a user stepping through a list quickly, or a retry storm against a
// struggling server, can burst. The image loader pool and the page fetcher
// share one Limiter built from the rate_limit section:
//
//	limiter := ratelimit.PerMinute(cfg.RateLimit.Strategy, cfg.RateLimit.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//
// rate_limit.strategy picks token_bucket, which refills all at once per
// period, or sliding_window, which spreads the same budget over a moving
// window and is the default.
package ratelimit
