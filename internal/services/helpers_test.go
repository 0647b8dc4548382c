package services

import (
	"context"
	"sync"

	"idees/internal/logger"
)

var nop = logger.Nop()

type recordingPages struct {
	mu     sync.Mutex
	paths  []string
	purged int
}

func (r *recordingPages) Invalidate(paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, paths...)
}

func (r *recordingPages) Purge() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purged++
}

func (r *recordingPages) invalidated() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

type recordingVotes struct {
	mu      sync.Mutex
	results map[string]int
}

func (r *recordingVotes) VoteToggled(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = make(map[string]int)
	}
	r.results[result]++
}

type fakeLinks struct {
	meta map[string]LinkMetadata
}

func (f fakeLinks) Fetch(_ context.Context, u string) LinkMetadata { return f.meta[u] }
func (f fakeLinks) Platform(u string) string                       { return NewLinks("blog.example.com").Platform(u) }
