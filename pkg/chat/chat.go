package chat

import (
	"strings"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/cachex"
)

// Kind distinguishes conversational requests from one-shot tasks.
type Kind string

const (
	KindChat Kind = "chat"
	KindTask Kind = "task"
)

// ParseKind accepts "chat", "task" or empty (chat).
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindChat:
		return KindChat, nil
	case KindTask:
		return KindTask, nil
	default:
		return "", ErrRegistry.New(ErrUnknownKind).WithDetail("kind", s)
	}
}

// CacheKind maps the kind onto the handle cache's kind.
func (k Kind) CacheKind() cachex.Kind {
	if k == KindTask {
		return cachex.KindTask
	}
	return cachex.KindChat
}

// LogIdentity is the history log a request of this kind reads and writes.
// Task logs are namespaced so they never mix with the chat log.
func (k Kind) LogIdentity(identity string) string {
	if k == KindTask {
		return "task:" + identity
	}
	return identity
}

// Request is one inbound message.
type Request struct {
	Identity string
	Content  string
	Kind     Kind
	Variant  string
}

// Validate checks the fields every request needs.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Identity) == "" {
		return ErrRegistry.NewWithMessage(ErrInvalidRequest, "identity is required")
	}
	if strings.TrimSpace(r.Content) == "" {
		return ErrRegistry.NewWithMessage(ErrInvalidRequest, "content is required")
	}
	return nil
}

// Reply is the model's answer plus an optional near-limit warning.
type Reply struct {
	Text    string `json:"text"`
	Warning string `json:"warning,omitempty"`
}

// Exchange is one archived request/response pair.
type Exchange struct {
	ID        string    `db:"id" json:"id"`
	Identity  string    `db:"identity" json:"identity"`
	Kind      Kind      `db:"kind" json:"kind"`
	Variant   string    `db:"variant" json:"variant"`
	Request   string    `db:"request" json:"request"`
	Response  string    `db:"response" json:"response"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
