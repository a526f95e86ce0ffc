package therapy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lcampbell/healing-chat/internal/model/chat"
)

// Reply is the structured result of one analysis round trip.
type Reply struct {
	ResponseText      string
	EmotionLabel      string
	EmotionConfidence float64
	SarcasmDetected   bool
	SarcasmReason     string
}

// Error describes a failed round trip in the words shown to the user.
// StatusCode is zero when the transport failed before any response arrived.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	return e.Detail
}

// Client talks to the remote therapy service. It performs exactly one
// round trip per Send and never mutates session state; callers own all
// state transitions.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a therapy service client. A zero timeout means the
// request is never abandoned, matching the behavior of the original client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Message             string      `json:"message"`
	ConversationHistory []chat.Turn `json:"conversation_history"`
}

type chatResponse struct {
	Response string `json:"response"`
	Sarcasm  struct {
		Sarcastic bool   `json:"sarcastic"`
		Reason    string `json:"reason"`
	} `json:"sarcasm"`
	Emotion struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"emotion"`
}

// Send posts one user message plus prior history to the analysis endpoint.
// Failures come back as *Error with a human-readable detail: the server's
// structured detail when present, a status-derived message otherwise, or a
// generic connectivity message when no response arrived at all.
func (c *Client) Send(ctx context.Context, message string, history []chat.Turn) (Reply, error) {
	if history == nil {
		history = []chat.Turn{}
	}

	body, err := json.Marshal(chatRequest{Message: message, ConversationHistory: history})
	if err != nil {
		return Reply{}, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Reply{}, &Error{Detail: "Could not connect to the assistant."}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Reply{}, &Error{StatusCode: resp.StatusCode, Detail: errorDetail(resp)}
	}

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Reply{}, &Error{StatusCode: resp.StatusCode, Detail: "Received an unreadable response from the assistant."}
	}

	return Reply{
		ResponseText:      payload.Response,
		EmotionLabel:      payload.Emotion.Label,
		EmotionConfidence: payload.Emotion.Confidence,
		SarcasmDetected:   payload.Sarcasm.Sarcastic,
		SarcasmReason:     payload.Sarcasm.Reason,
	}, nil
}

// errorDetail extracts the `detail` field of a JSON error body when one is
// present, else falls back to the status line.
func errorDetail(resp *http.Response) string {
	fallback := fmt.Sprintf("API error: %s (%d)", http.StatusText(resp.StatusCode), resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fallback
	}

	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Detail == "" {
		return fallback
	}
	return payload.Detail
}
