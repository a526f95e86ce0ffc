package chat

import (
	"time"

	"github.com/google/uuid"
)

// Roles a message can carry in a transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Sentinel emotion labels used while an annotation is unresolved.
const (
	LabelAnalyzing = "Analyzing..."
	LabelError     = "Error"
	LabelNeutral   = "neutral"
)

// Sentiment is the analysis annotation attached to a user message. It is
// created in the pending state alongside the message and resolved at most
// once by the remote analysis result (or degraded once on failure).
type Sentiment struct {
	EmotionLabel      string  `json:"emotionLabel"`
	EmotionConfidence float64 `json:"emotionConfidence"`
	SarcasmDetected   bool    `json:"sarcasmDetected"`
	SarcasmReason     string  `json:"sarcasmReason"`
	Pending           bool    `json:"pending"`
}

// Message is a single turn in a conversation. Content is immutable once
// created; only the Sentiment field of user messages is updated afterwards.
type Message struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Sentiment *Sentiment `json:"sentiment,omitempty"`
}

// Turn is the role/content pair sent to the remote service as history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a user message with a pending annotation.
func NewUserMessage(content string) Message {
	return Message{
		ID:      uuid.NewString(),
		Role:    RoleUser,
		Content: content,
		Sentiment: &Sentiment{
			EmotionLabel:  LabelAnalyzing,
			SarcasmReason: LabelAnalyzing,
			Pending:       true,
		},
	}
}

// NewAssistantMessage creates an assistant message. Assistant turns never
// carry a sentiment annotation.
func NewAssistantMessage(content string) Message {
	return Message{
		ID:      uuid.NewString(),
		Role:    RoleAssistant,
		Content: content,
	}
}

// History projects messages down to the role/content pairs the remote
// service expects.
func History(messages []Message) []Turn {
	if len(messages) == 0 {
		return nil
	}

	turns := make([]Turn, 0, len(messages))
	for _, msg := range messages {
		turns = append(turns, Turn{Role: msg.Role, Content: msg.Content})
	}
	return turns
}

// Conversation is one chat session with its own transcript and derived
// overall sentiment. The collection held by the store is always sorted by
// LastActivity descending.
type Conversation struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Messages         []Message `json:"messages"`
	OverallSentiment string    `json:"overallSentiment"`
	LastActivity     time.Time `json:"lastActivity"`
}
