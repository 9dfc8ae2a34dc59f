package llm

// Role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IsSystem reports whether the message carries the system role
func (m Message) IsSystem() bool {
	return m.Role == RoleSystem
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewUserMessage creates a new user message
func NewUserMessage(content string) Message {
	return Message{
		Role:    RoleUser,
		Content: content,
	}
}

// NewSystemMessage creates a new system message
func NewSystemMessage(content string) Message {
	return Message{
		Role:    RoleSystem,
		Content: content,
	}
}

// NewAssistantMessage creates a new assistant message
func NewAssistantMessage(content string) Message {
	return Message{
		Role:    RoleAssistant,
		Content: content,
	}
}

// Conversation is a message list split the way vendor APIs that take the
// system prompt out of band want it.
type Conversation struct {
	System []string
	Turns  []Message
}

// SplitSystem lifts system messages out of messages, preserving the order of
// everything else. Roles are not validated.
func SplitSystem(messages []Message) Conversation {
	var c Conversation
	for _, m := range messages {
		if m.IsSystem() {
			c.System = append(c.System, m.Content)
			continue
		}
		c.Turns = append(c.Turns, m)
	}
	return c
}
