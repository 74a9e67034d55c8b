// Package ai defines the conversation types exchanged with language models:
// messages, the streaming provider interface, and the events it emits.
package ai

import "strings"

// ---------------------------------------------------------------------------
// Content blocks
// ---------------------------------------------------------------------------

type TextContent struct {
	Type string `json:"type"` // "text"
	Text string `json:"text"`
}

// ContentBlock is implemented by every block kind a message can carry.
// Only text is exchanged with the model in this system.
type ContentBlock interface {
	contentBlock()
}

func (TextContent) contentBlock() {}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "model"
)

type StopReason string

const (
	StopReasonStop   StopReason = "stop"
	StopReasonLength StopReason = "length"
	StopReasonSafety StopReason = "safety"
	StopReasonError  StopReason = "error"
)

// UserMessage is a human turn.
type UserMessage struct {
	Role      Role           `json:"role"`
	Content   []ContentBlock `json:"content"`
	Timestamp int64          `json:"timestamp"` // unix ms
}

func (m UserMessage) GetRole() Role { return m.Role }

// AssistantMessage is a model turn.
type AssistantMessage struct {
	Role         Role           `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	Provider     string         `json:"provider"`
	Usage        Usage          `json:"usage"`
	StopReason   StopReason     `json:"stop_reason"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Timestamp    int64          `json:"timestamp"`
}

func (m AssistantMessage) GetRole() Role { return m.Role }

// Message is the union of UserMessage and AssistantMessage.
type Message interface {
	GetRole() Role
}

// NewUserText builds a single-block user message.
func NewUserText(text string, timestamp int64) UserMessage {
	return UserMessage{
		Role:      RoleUser,
		Content:   []ContentBlock{TextContent{Type: "text", Text: text}},
		Timestamp: timestamp,
	}
}

// NewAssistantText builds a single-block model message.
func NewAssistantText(text string, timestamp int64) AssistantMessage {
	return AssistantMessage{
		Role:      RoleAssistant,
		Content:   []ContentBlock{TextContent{Type: "text", Text: text}},
		Timestamp: timestamp,
	}
}

// Text concatenates every text block of msg.
func Text(msg Message) string {
	var blocks []ContentBlock
	switch m := msg.(type) {
	case UserMessage:
		blocks = m.Content
	case AssistantMessage:
		blocks = m.Content
	case *AssistantMessage:
		if m == nil {
			return ""
		}
		blocks = m.Content
	}
	var sb strings.Builder
	for _, b := range blocks {
		if tc, ok := b.(TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

// ---------------------------------------------------------------------------
// Usage
// ---------------------------------------------------------------------------

type Usage struct {
	Input       int `json:"input"`
	Output      int `json:"output"`
	CacheRead   int `json:"cache_read"`
	TotalTokens int `json:"total_tokens"`
}

// ---------------------------------------------------------------------------
// Streaming events
// ---------------------------------------------------------------------------

// StreamEventType enumerates the events a provider can emit.
type StreamEventType string

const (
	StreamEventStart StreamEventType = "start"
	StreamEventDone  StreamEventType = "done"
	StreamEventError StreamEventType = "error"

	StreamEventTextStart StreamEventType = "text_start"
	StreamEventTextDelta StreamEventType = "text_delta"
	StreamEventTextEnd   StreamEventType = "text_end"
)

// StreamEvent is sent over the events channel by providers.
type StreamEvent struct {
	Type    StreamEventType
	Partial *AssistantMessage // latest partial snapshot
	Delta   string            // incremental text
	Error   error             // set on StreamEventError
}

// ---------------------------------------------------------------------------
// Context passed to provider
// ---------------------------------------------------------------------------

// Context holds the full conversation state for one model call.
type Context struct {
	SystemPrompt string
	Messages     []Message
}

type StreamOptions struct {
	Temperature *float64
	MaxTokens   int
	APIKey      string
}
