package gexdata

import "errors"

var (
	// ErrDataUnavailable means the upstream fetch failed or returned no
	// expiries. Callers must not fabricate a summary from it.
	ErrDataUnavailable = errors.New("gamma data unavailable")

	ErrRateLimited = errors.New("rate limited by provider")
	ErrAuthFailed  = errors.New("provider authentication failed")
)
