package memoryx

import (
	"sync"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
	"github.com/Abraxas-365/chatkeep/pkg/logx"
)

// Memory is the read, append and reset contract of a conversation log.
type Memory interface {
	Messages() ([]llm.Message, error)
	Add(message llm.Message) error
	Clear() error
}

// TrimReason says which limit caused messages to be dropped.
type TrimReason string

const (
	TrimByCount  TrimReason = "count"
	TrimByTokens TrimReason = "tokens"
)

// TrimObserver is notified whenever trimming drops messages.
type TrimObserver interface {
	HistoryTrimmed(reason TrimReason, removed int)
}

// minRetainedOnTokenTrim is the floor below which token trimming stops even
// if the log is still over its token budget.
const minRetainedOnTokenTrim = 2

type storedMessage struct {
	msg    llm.Message
	tokens int
}

// BoundedHistory is one identity's ordered conversation. After every Add the
// log holds at most maxMessages messages and at most maxTokens estimated
// tokens, except that system messages are never dropped and token trimming
// keeps at least two messages.
type BoundedHistory struct {
	mu sync.RWMutex

	identity     string
	messages     []storedMessage
	totalTokens  int
	maxMessages  int
	maxTokens    int
	estimator    TokenEstimator
	observer     TrimObserver
	lastActiveAt time.Time
}

// NewBoundedHistory creates an empty log.
func NewBoundedHistory(identity string, maxMessages, maxTokens int, estimator TokenEstimator) *BoundedHistory {
	if estimator == nil {
		estimator = RatioEstimator{}
	}
	return &BoundedHistory{
		identity:    identity,
		maxMessages: maxMessages,
		maxTokens:   maxTokens,
		estimator:   estimator,
	}
}

// Identity returns the owner of the log.
func (h *BoundedHistory) Identity() string { return h.identity }

// Messages returns a copy of the log in order.
func (h *BoundedHistory) Messages() ([]llm.Message, error) {
	return h.Snapshot(), nil
}

// Snapshot is Messages without the error.
func (h *BoundedHistory) Snapshot() []llm.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]llm.Message, len(h.messages))
	for i, sm := range h.messages {
		out[i] = sm.msg
	}
	return out
}

// Len returns the number of stored messages.
func (h *BoundedHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Tokens returns the estimated token total of the stored messages.
func (h *BoundedHistory) Tokens() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalTokens
}

// Add appends message and trims the log back within its limits. It never fails.
func (h *BoundedHistory) Add(message llm.Message) error {
	h.mu.Lock()
	h.messages = append(h.messages, storedMessage{
		msg:    message,
		tokens: h.estimator.EstimateMessage(message),
	})
	h.totalTokens += h.messages[len(h.messages)-1].tokens

	byCount, byTokens, satisfied := h.trimLocked()
	count, tokens := len(h.messages), h.totalTokens
	h.mu.Unlock()

	if h.observer != nil {
		if byCount > 0 {
			h.observer.HistoryTrimmed(TrimByCount, byCount)
		}
		if byTokens > 0 {
			h.observer.HistoryTrimmed(TrimByTokens, byTokens)
		}
	}
	if byCount > 0 {
		logx.WithFields(logx.Fields{
			"identity": h.identity,
			"removed":  byCount,
		}).Debug("history over message limit, dropped oldest messages")
	}
	if byTokens > 0 {
		logx.WithFields(logx.Fields{
			"identity": h.identity,
			"removed":  byTokens,
			"tokens":   tokens,
		}).Debug("history over token limit, dropped oldest messages")
	}
	if !satisfied {
		logx.WithFields(logx.Fields{
			"identity":     h.identity,
			"messages":     count,
			"max_messages": h.maxMessages,
			"tokens":       tokens,
			"max_tokens":   h.maxTokens,
		}).Warn("TrimInvariantUnsatisfiable: only system messages remain, history left over budget")
	}
	return nil
}

// Clear drops every message, system messages included.
func (h *BoundedHistory) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
	h.totalTokens = 0
	return nil
}

// trimLocked applies the count trim and then the token trim. satisfied is
// false only when the log is still over a limit and nothing but system
// messages is left to remove.
func (h *BoundedHistory) trimLocked() (byCount, byTokens int, satisfied bool) {
	for len(h.messages) > h.maxMessages {
		if !h.dropOldestNonSystemLocked() {
			break
		}
		byCount++
	}

	for h.totalTokens > h.maxTokens && len(h.messages) > minRetainedOnTokenTrim {
		if !h.dropOldestNonSystemLocked() {
			break
		}
		byTokens++
	}

	over := len(h.messages) > h.maxMessages ||
		(h.totalTokens > h.maxTokens && len(h.messages) > minRetainedOnTokenTrim)
	return byCount, byTokens, !over || h.hasNonSystemLocked()
}

func (h *BoundedHistory) dropOldestNonSystemLocked() bool {
	for i, sm := range h.messages {
		if sm.msg.IsSystem() {
			continue
		}
		h.totalTokens -= sm.tokens
		h.messages = append(h.messages[:i], h.messages[i+1:]...)
		return true
	}
	return false
}

func (h *BoundedHistory) hasNonSystemLocked() bool {
	for _, sm := range h.messages {
		if !sm.msg.IsSystem() {
			return true
		}
	}
	return false
}

func (h *BoundedHistory) touch(now time.Time) {
	h.mu.Lock()
	h.lastActiveAt = now
	h.mu.Unlock()
}

func (h *BoundedHistory) lastActive() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastActiveAt
}

var _ Memory = (*BoundedHistory)(nil)
