// Package ratelimit implements fixed-window request counting per
// identifier. A window admits up to MaxRequests calls and then denies until
// it expires, so up to twice the nominal rate can pass across a window
// boundary. Callers that need smoothing must use a different algorithm.
package ratelimit

import (
	"context"
	"time"
)

type Policy struct {
	MaxRequests int
	Window      time.Duration
}

type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Limiter counts calls per identifier. Identifiers are expected to be
// namespaced by action ("vote:203.0.113.9") so actions never share a budget.
type Limiter interface {
	Check(ctx context.Context, identifier string, p Policy) (Result, error)
}

// Key builds the identifier for an action performed from ip.
func Key(action, ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return action + ":" + ip
}
