// Package ratelimit provides the token bucket that gates outbound messages.
//
// The bucket starts full. Each TryAcquire refills it from elapsed time,
// capped at capacity, and then takes a token if one is available:
//
//	l, err := ratelimit.New(100, 50)
//	if err != nil {
//	    return err
//	}
//	if !l.TryAcquire() {
//	    return errRateLimited
//	}
//
// The limiter knows nothing about routes or messages.
package ratelimit
