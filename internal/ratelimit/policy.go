package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	ActionVote       = "vote"
	ActionComment    = "comment"
	ActionSuggestion = "suggestion"
	ActionSignIn     = "signin"
	ActionSignUp     = "signup"
	ActionProfile    = "profile"
	ActionPassword   = "password"
)

// DefaultPolicies are the per-action budgets for one client IP.
var DefaultPolicies = map[string]Policy{
	ActionVote:       {MaxRequests: 30, Window: time.Minute},
	ActionComment:    {MaxRequests: 10, Window: time.Minute},
	ActionSuggestion: {MaxRequests: 5, Window: 5 * time.Minute},
	ActionSignIn:     {MaxRequests: 5, Window: time.Minute},
	ActionSignUp:     {MaxRequests: 3, Window: 5 * time.Minute},
	ActionProfile:    {MaxRequests: 10, Window: time.Minute},
	ActionPassword:   {MaxRequests: 5, Window: 5 * time.Minute},
}

// ParsePolicy reads "<max>/<window>", e.g. "30/1m".
func ParsePolicy(s string) (Policy, error) {
	max, win, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Policy{}, fmt.Errorf("rate limit %q: want <max>/<window>", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(max))
	if err != nil || n < 1 {
		return Policy{}, fmt.Errorf("rate limit %q: max must be a positive integer", s)
	}
	d, err := time.ParseDuration(strings.TrimSpace(win))
	if err != nil || d <= 0 {
		return Policy{}, fmt.Errorf("rate limit %q: invalid window", s)
	}
	return Policy{MaxRequests: n, Window: d}, nil
}

// Policies merges overrides into the defaults. Unknown actions are
// rejected so a typo in configuration does not go unnoticed.
func Policies(overrides map[string]string) (map[string]Policy, error) {
	out := make(map[string]Policy, len(DefaultPolicies))
	for action, p := range DefaultPolicies {
		out[action] = p
	}
	for action, raw := range overrides {
		if _, ok := DefaultPolicies[action]; !ok {
			return nil, fmt.Errorf("rate limit: unknown action %q", action)
		}
		p, err := ParsePolicy(raw)
		if err != nil {
			return nil, err
		}
		out[action] = p
	}
	return out, nil
}
