// Package cache holds rendered public payloads keyed by request path.
package cache

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry struct {
	data      any
	expiresAt time.Time
}

// Pages is an LRU of public payloads with a fixed TTL. Keys are the request
// path optionally followed by "?query". Per-viewer fields must never be
// stored here.
type Pages struct {
	lru *lru.Cache[string, entry]
	ttl time.Duration
	now func() time.Time

	mu  sync.Mutex
	gen uint64 // bumped by every Invalidate and Purge
}

func New(size int, ttl time.Duration) (*Pages, error) {
	l, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Pages{lru: l, ttl: ttl, now: time.Now}, nil
}

func (p *Pages) Get(key string) (any, bool) {
	e, ok := p.lru.Get(key)
	if !ok {
		return nil, false
	}
	if p.now().After(e.expiresAt) {
		p.lru.Remove(key)
		return nil, false
	}
	return e.data, true
}

// Generation identifies the current invalidation epoch. Read it before
// computing a payload and pass it to Set.
func (p *Pages) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// Set stores data under key unless an Invalidate or Purge ran since gen was
// read, in which case the payload may predate the write it missed and is
// dropped. It reports whether the entry was stored.
func (p *Pages) Set(key string, data any, gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return false
	}
	p.lru.Add(key, entry{data: data, expiresAt: p.now().Add(p.ttl)})
	return true
}

// Invalidate drops the entries for each path: the exact key and every
// "path?query" variant. "/" only matches "/" and "/?...", never every page.
func (p *Pages) Invalidate(paths ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	for _, key := range p.lru.Keys() {
		for _, path := range paths {
			if key == path || strings.HasPrefix(key, path+"?") {
				p.lru.Remove(key)
				break
			}
		}
	}
}

// Purge empties the cache.
func (p *Pages) Purge() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.lru.Purge()
}

func (p *Pages) Len() int { return p.lru.Len() }

// SuggestionPath is the cache key of a suggestion detail payload.
func SuggestionPath(id string) string { return "/suggestions/" + id }

// ListPath is the cache key prefix of the suggestion list.
const ListPath = "/"
