package entities

// MessageRole represents the role of a chat message sender
type MessageRole string

const (
	MessageRoleUser  MessageRole = "user"
	MessageRoleModel MessageRole = "model"
)

// Source is a web citation attached to a search-grounded answer
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// ChatMessage represents a single message shown in the chat log
type ChatMessage struct {
	Role    MessageRole `json:"role"`
	Text    string      `json:"text"`
	Sources []Source    `json:"sources,omitempty"`
}

// NewModelMessage creates a model reply
func NewModelMessage(text string, sources []Source) ChatMessage {
	return ChatMessage{Role: MessageRoleModel, Text: text, Sources: sources}
}
