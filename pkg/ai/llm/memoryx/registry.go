package memoryx

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
	"github.com/Abraxas-365/chatkeep/pkg/clockx"
	"github.com/Abraxas-365/chatkeep/pkg/logx"
)

const (
	DefaultMaxMessages     = 20
	DefaultMaxTokens       = 4000
	DefaultSessionTimeout  = 24 * time.Hour
	DefaultCleanupInterval = time.Hour

	limitWarningRatio = 0.8
)

// SessionInfo describes one identity's session.
type SessionInfo struct {
	Exists       bool      `json:"exists"`
	MessageCount int       `json:"message_count"`
	LastActiveAt time.Time `json:"last_active_at,omitempty"`
	AgeHours     float64   `json:"age_hours"`
}

// RegistryOption configures a HistoryRegistry.
type RegistryOption func(*HistoryRegistry)

func WithSessionTimeout(d time.Duration) RegistryOption {
	return func(r *HistoryRegistry) { r.sessionTimeout = d }
}

func WithCleanupInterval(d time.Duration) RegistryOption {
	return func(r *HistoryRegistry) { r.cleanupInterval = d }
}

func WithEstimator(e TokenEstimator) RegistryOption {
	return func(r *HistoryRegistry) { r.estimator = e }
}

// WithLimitWarnings makes LimitWarning report near-limit sessions. Off by default.
func WithLimitWarnings(enabled bool) RegistryOption {
	return func(r *HistoryRegistry) { r.limitWarnings = enabled }
}

func WithTrimObserver(o TrimObserver) RegistryOption {
	return func(r *HistoryRegistry) { r.observer = o }
}

func WithClock(c clockx.Clock) RegistryOption {
	return func(r *HistoryRegistry) { r.clock = c }
}

// HistoryRegistry owns one BoundedHistory per identity and expires sessions
// that have been idle longer than the session timeout. Expiry is lazy: it
// runs from GetOrCreate at most once per cleanup interval.
type HistoryRegistry struct {
	mu       sync.Mutex
	sessions map[string]*BoundedHistory

	maxMessages     int
	maxTokens       int
	sessionTimeout  time.Duration
	cleanupInterval time.Duration
	lastSweep       time.Time
	limitWarnings   bool

	estimator TokenEstimator
	observer  TrimObserver
	clock     clockx.Clock
}

// NewHistoryRegistry creates an empty registry. Non-positive limits fall back
// to the defaults.
func NewHistoryRegistry(maxMessages, maxTokens int, opts ...RegistryOption) *HistoryRegistry {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	r := &HistoryRegistry{
		sessions:        make(map[string]*BoundedHistory),
		maxMessages:     maxMessages,
		maxTokens:       maxTokens,
		sessionTimeout:  DefaultSessionTimeout,
		cleanupInterval: DefaultCleanupInterval,
		estimator:       RatioEstimator{Ratio: DefaultTokenRatio},
		clock:           clockx.Real(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.lastSweep = r.clock.Now()

	logx.WithFields(logx.Fields{
		"max_messages":     r.maxMessages,
		"max_tokens":       r.maxTokens,
		"session_timeout":  r.sessionTimeout.String(),
		"cleanup_interval": r.cleanupInterval.String(),
	}).Debug("history registry initialized")
	return r
}

// GetOrCreate returns identity's log, creating an empty one if needed, and
// marks the session active.
func (r *HistoryRegistry) GetOrCreate(identity string) *BoundedHistory {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeLocked(identity, now)
}

// activeLocked returns identity's log, creating it if needed, and marks it
// active while r.mu is held, so a concurrent sweep cannot detach it.
func (r *HistoryRegistry) activeLocked(identity string, now time.Time) *BoundedHistory {
	r.sweepIfDueLocked(now)
	h, ok := r.sessions[identity]
	if !ok {
		h = NewBoundedHistory(identity, r.maxMessages, r.maxTokens, r.estimator)
		h.observer = r.observer
		r.sessions[identity] = h
		logx.WithField("identity", identity).Debug("created history session")
	}
	h.touch(now)
	return h
}

// Append adds message to identity's log and trims it. The log is looked up
// and written under the registry lock, so the message always lands in the
// live session.
func (r *HistoryRegistry) Append(identity string, message llm.Message) {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.activeLocked(identity, now).Add(message)
}

// Restore replays messages into identity's log if it is empty. Restored
// messages go through the usual trimming. Returns false if the log already
// had content.
func (r *HistoryRegistry) Restore(identity string, messages []llm.Message) bool {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.activeLocked(identity, now)
	if h.Len() > 0 {
		return false
	}
	for _, m := range messages {
		_ = h.Add(m)
	}
	return true
}

// Messages returns a copy of identity's log, or nil if there is none.
func (r *HistoryRegistry) Messages(identity string) []llm.Message {
	r.mu.Lock()
	h, ok := r.sessions[identity]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return h.Snapshot()
}

// LimitWarning reports when identity's log is at 80% of its message or token
// limit. It returns false when warnings are disabled.
func (r *HistoryRegistry) LimitWarning(identity string) (string, bool) {
	if !r.limitWarnings {
		return "", false
	}

	r.mu.Lock()
	h, ok := r.sessions[identity]
	r.mu.Unlock()
	if !ok {
		return "", false
	}

	count, tokens := h.Len(), h.Tokens()
	var parts []string
	if float64(count) >= float64(r.maxMessages)*limitWarningRatio {
		parts = append(parts, fmt.Sprintf("message count (%d/%d)", count, r.maxMessages))
	}
	if float64(tokens) >= float64(r.maxTokens)*limitWarningRatio {
		parts = append(parts, fmt.Sprintf("token usage (%d/%d)", tokens, r.maxTokens))
	}
	if len(parts) == 0 {
		return "", false
	}
	return fmt.Sprintf(
		"Conversation is approaching its limits: %s. Older messages will be dropped; clear the session to start fresh.",
		strings.Join(parts, ", "),
	), true
}

// Clear removes identity's session. It reports whether one existed.
func (r *HistoryRegistry) Clear(identity string) bool {
	r.mu.Lock()
	_, ok := r.sessions[identity]
	delete(r.sessions, identity)
	r.mu.Unlock()

	if ok {
		logx.WithField("identity", identity).Info("cleared history session")
	}
	return ok
}

// SessionInfo describes identity's session without creating or touching it.
func (r *HistoryRegistry) SessionInfo(identity string) SessionInfo {
	r.mu.Lock()
	h, ok := r.sessions[identity]
	r.mu.Unlock()
	if !ok {
		return SessionInfo{}
	}

	last := h.lastActive()
	return SessionInfo{
		Exists:       true,
		MessageCount: h.Len(),
		LastActiveAt: last,
		AgeHours:     r.clock.Now().Sub(last).Hours(),
	}
}

// Len returns the number of live sessions.
func (r *HistoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes expired sessions immediately and returns how many it removed.
func (r *HistoryRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(r.clock.Now())
}

func (r *HistoryRegistry) sweepIfDueLocked(now time.Time) {
	if now.Sub(r.lastSweep) < r.cleanupInterval {
		return
	}
	r.sweepLocked(now)
}

func (r *HistoryRegistry) sweepLocked(now time.Time) int {
	removed := 0
	for identity, h := range r.sessions {
		if now.Sub(h.lastActive()) > r.sessionTimeout {
			delete(r.sessions, identity)
			removed++
		}
	}
	r.lastSweep = now

	if removed > 0 {
		logx.WithFields(logx.Fields{
			"removed":   removed,
			"remaining": len(r.sessions),
		}).Info("expired idle history sessions")
	}
	return removed
}
