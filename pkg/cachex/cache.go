package cachex

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/clockx"
	"github.com/Abraxas-365/chatkeep/pkg/logx"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxEntries    = 100
	DefaultIdleTTL       = 900 * time.Second
	DefaultSweepInterval = 300 * time.Second
)

// Kind separates handles that serve different purposes for the same identity.
type Kind int

const (
	KindChat Kind = iota
	KindTask
)

func (k Kind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindTask:
		return "task"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Key identifies one cached handle.
type Key struct {
	Identity string
	Kind     Kind
	Variant  string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Kind, k.Variant, k.Identity)
}

// EvictReason says why an entry left the cache.
type EvictReason string

const (
	EvictCapacity    EvictReason = "capacity"
	EvictExpired     EvictReason = "expired"
	EvictInvalidated EvictReason = "invalidated"
	EvictCleared     EvictReason = "cleared"
)

// Observer receives cache events. Implementations must be safe for
// concurrent use and must not call back into the cache.
type Observer interface {
	Hit(kind Kind)
	Miss(kind Kind)
	Evicted(reason EvictReason, n int)
	ConstructFailed(kind Kind)
}

type noopObserver struct{}

func (noopObserver) Hit(Kind)                 {}
func (noopObserver) Miss(Kind)                {}
func (noopObserver) Evicted(EvictReason, int) {}
func (noopObserver) ConstructFailed(Kind)     {}

// Constructor builds a handle on a cache miss.
type Constructor[H any] func(ctx context.Context) (H, error)

type entry[H any] struct {
	key            Key
	handle         H
	createdAt      time.Time
	lastAccessedAt time.Time
	seq            uint64
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Total      int          `json:"total"`
	ByKind     map[Kind]int `json:"-"`
	MaxEntries int          `json:"max_entries"`
}

// KindCounts returns ByKind keyed by kind name.
func (s Stats) KindCounts() map[string]int {
	out := make(map[string]int, len(s.ByKind))
	for k, n := range s.ByKind {
		out[k.String()] = n
	}
	return out
}

type Option func(*options)

type options struct {
	maxEntries int
	idleTTL    time.Duration
	clock      clockx.Clock
	observer   Observer
}

func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

func WithIdleTTL(d time.Duration) Option {
	return func(o *options) { o.idleTTL = d }
}

func WithClock(c clockx.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Cache maps keys to handles of type H.
type Cache[H any] struct {
	mu      sync.Mutex
	entries map[Key]*entry[H]
	nextSeq uint64
	group   singleflight.Group

	maxEntries int
	idleTTL    time.Duration
	clock      clockx.Clock
	observer   Observer
}

// New creates an empty cache. Non-positive limits fall back to the defaults.
func New[H any](opts ...Option) *Cache[H] {
	o := options{
		maxEntries: DefaultMaxEntries,
		idleTTL:    DefaultIdleTTL,
		clock:      clockx.Real(),
		observer:   noopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxEntries <= 0 {
		o.maxEntries = DefaultMaxEntries
	}
	if o.idleTTL <= 0 {
		o.idleTTL = DefaultIdleTTL
	}

	return &Cache[H]{
		entries:    make(map[Key]*entry[H]),
		maxEntries: o.maxEntries,
		idleTTL:    o.idleTTL,
		clock:      o.clock,
		observer:   o.observer,
	}
}

// GetOrCreate returns the live handle for key, building it with ctor on a
// miss. Concurrent misses for the same key run ctor once. ctor errors are
// returned as-is and nothing is cached.
//
// ctor runs detached from the cancellation of whichever caller started it,
// so one caller giving up does not fail the others waiting on the same key.
// A caller whose own ctx ends stops waiting and gets ctx's error.
func (c *Cache[H]) GetOrCreate(ctx context.Context, key Key, ctor Constructor[H]) (H, error) {
	if h, ok := c.lookup(key); ok {
		c.observer.Hit(key.Kind)
		return h, nil
	}
	c.observer.Miss(key.Kind)

	buildCtx := context.WithoutCancel(ctx)
	results := c.group.DoChan(key.String(), func() (interface{}, error) {
		// Another caller may have finished building while we waited.
		if h, ok := c.lookup(key); ok {
			return h, nil
		}

		h, err := ctor(buildCtx)
		if err != nil {
			c.observer.ConstructFailed(key.Kind)
			return nil, err
		}

		c.insert(key, h)
		return h, nil
	})

	var zero H
	select {
	case res := <-results:
		if res.Err != nil {
			return zero, res.Err
		}
		h, _ := res.Val.(H)
		return h, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *Cache[H]) lookup(key Key) (H, bool) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero H
		return zero, false
	}
	if c.expired(e, now) {
		delete(c.entries, key)
		c.observer.Evicted(EvictExpired, 1)
		var zero H
		return zero, false
	}
	e.lastAccessedAt = now
	return e.handle, true
}

func (c *Cache[H]) insert(key Key, h H) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}

	c.nextSeq++
	c.entries[key] = &entry[H]{
		key:            key,
		handle:         h,
		createdAt:      now,
		lastAccessedAt: now,
		seq:            c.nextSeq,
	}
}

func (c *Cache[H]) evictOldestLocked() {
	var victim *entry[H]
	for _, e := range c.entries {
		if victim == nil || e.seq < victim.seq {
			victim = e
		}
	}
	if victim == nil {
		return
	}
	delete(c.entries, victim.key)
	c.observer.Evicted(EvictCapacity, 1)

	logx.WithFields(logx.Fields{
		"identity": victim.key.Identity,
		"kind":     victim.key.Kind.String(),
		"variant":  victim.key.Variant,
	}).Debug("handle cache full, evicted oldest entry")
}

func (c *Cache[H]) expired(e *entry[H], now time.Time) bool {
	return now.Sub(e.lastAccessedAt) >= c.idleTTL
}

// Sweep removes every entry idle for at least the idle TTL and returns how
// many it removed.
func (c *Cache[H]) Sweep() int {
	now := c.clock.Now()

	c.mu.Lock()
	removed := 0
	for key, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, key)
			removed++
		}
	}
	remaining := len(c.entries)
	c.mu.Unlock()

	if removed > 0 {
		c.observer.Evicted(EvictExpired, removed)
	}
	logx.WithFields(logx.Fields{
		"removed":   removed,
		"remaining": remaining,
	}).Debug("handle cache sweep finished")
	return removed
}

// Invalidate removes every entry for identity, across kinds and variants.
func (c *Cache[H]) Invalidate(identity string) int {
	c.mu.Lock()
	removed := 0
	for key := range c.entries {
		if key.Identity == identity {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.observer.Evicted(EvictInvalidated, removed)
	}
	return removed
}

// Clear empties the cache.
func (c *Cache[H]) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[Key]*entry[H])
	c.mu.Unlock()

	if n > 0 {
		c.observer.Evicted(EvictCleared, n)
	}
	logx.WithField("removed", n).Info("handle cache cleared")
}

func (c *Cache[H]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[H]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[Kind]int)
	for key := range c.entries {
		byKind[key.Kind]++
	}
	return Stats{
		Total:      len(c.entries),
		ByKind:     byKind,
		MaxEntries: c.maxEntries,
	}
}
