package chat

import (
	"context"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
	"github.com/Abraxas-365/chatkeep/pkg/kernel"
)

// Handle answers a message given prior history. Handles are cached and
// shared across requests, so implementations must be safe for concurrent use.
type Handle interface {
	Ask(ctx context.Context, history []llm.Message, input string) (string, error)
}

// HandleFactory builds handles for a model variant.
type HandleFactory interface {
	// Build constructs a new handle. It is only called on cache misses.
	Build(ctx context.Context, kind Kind, variant string) (Handle, error)
	// Supports reports whether variant names a known model type.
	Supports(variant string) bool
	Variants() []string
}

// TranscriptRepository archives completed exchanges.
type TranscriptRepository interface {
	Save(ctx context.Context, exchange Exchange) error
	ListByIdentity(ctx context.Context, identity string, opts kernel.PaginationOptions) (kernel.Paginated[Exchange], error)
}

// HistoryMirror keeps a durable copy of history logs.
type HistoryMirror interface {
	Save(ctx context.Context, identity string, messages []llm.Message) error
	Load(ctx context.Context, identity string) ([]llm.Message, bool, error)
	Delete(ctx context.Context, identity string) error
}
