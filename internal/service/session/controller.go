package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/lcampbell/healing-chat/internal/model/chat"
	"github.com/lcampbell/healing-chat/internal/service/conversation"
	"github.com/lcampbell/healing-chat/internal/service/therapy"
)

var (
	ErrEmptyInput           = errors.New("input buffer is empty")
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrBusy                 = errors.New("a submission is already outstanding for this conversation")
)

// ChatClient is the single network dependency of the controller. One round
// trip per call, no retries, no session state mutation.
type ChatClient interface {
	Send(ctx context.Context, message string, history []chat.Turn) (therapy.Reply, error)
}

// Snapshot is the read-only view of the active session handed to the
// presentation layer.
type Snapshot struct {
	ConversationID string         `json:"conversationId"`
	Messages       []chat.Message `json:"messages"`
	Input          string         `json:"input"`
	Busy           bool           `json:"busy"`
}

// Controller owns the transient state of whichever conversation is open:
// the working transcript copy, the input buffer and the in-flight bookkeeping.
// Every mutation is pushed back into the store so the two never diverge for
// longer than one pending network call.
type Controller struct {
	mu     sync.Mutex
	store  *conversation.Store
	client ChatClient

	activeID string
	working  []chat.Message
	input    string
	inFlight map[string]bool

	onChange func()
}

// NewController wires the controller to its store and chat client.
func NewController(store *conversation.Store, client ChatClient) *Controller {
	return &Controller{
		store:    store,
		client:   client,
		inFlight: make(map[string]bool),
	}
}

// SetOnChange registers a callback fired after every conversation or
// session mutation, including the optimistic push that precedes a network
// reply. The callback runs without the controller lock held, so it may read
// snapshots freely.
func (c *Controller) SetOnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// CreateConversation allocates a fresh conversation and makes it active.
func (c *Controller) CreateConversation(ctx context.Context) chat.Conversation {
	conv := c.store.Create(ctx)

	c.mu.Lock()
	c.activeID = conv.ID
	c.working = nil
	c.input = ""
	c.mu.Unlock()

	c.notify()
	return conv
}

// SwitchConversation opens a conversation and loads its transcript into the
// working copy. Switching never cancels an outstanding submission for the
// previous conversation; its reconciliation still targets the conversation
// it was captured for.
func (c *Controller) SwitchConversation(ctx context.Context, id string) {
	var working []chat.Message
	if conv, ok := c.store.Get(ctx, id); ok {
		working = conv.Messages
	}

	c.mu.Lock()
	c.activeID = id
	c.working = working
	c.input = ""
	c.mu.Unlock()

	c.notify()
}

// DeleteConversation removes a conversation from the store. Unknown ids are
// ignored. Deleting the active conversation clears the session and, when
// other conversations remain, activates the most recently active one.
func (c *Controller) DeleteConversation(ctx context.Context, id string) {
	c.store.Delete(ctx, id)

	c.mu.Lock()
	wasActive := c.activeID == id
	if wasActive {
		c.activeID = ""
		c.working = nil
		c.input = ""
	}
	c.mu.Unlock()

	if wasActive {
		if remaining := c.store.List(ctx); len(remaining) > 0 {
			c.SwitchConversation(ctx, remaining[0].ID)
			return
		}
	}
	c.notify()
}

// UpdateInput replaces the input buffer.
func (c *Controller) UpdateInput(text string) {
	c.mu.Lock()
	c.input = text
	c.mu.Unlock()
}

// Conversations returns the sorted list projection for the sidebar.
func (c *Controller) Conversations(ctx context.Context) []conversation.Summary {
	return c.store.Summaries(ctx)
}

// Snapshot returns the current active-session view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		ConversationID: c.activeID,
		Messages:       copyMessages(c.working),
		Input:          c.input,
		Busy:           c.inFlight[c.activeID],
	}
}

// Submit sends the input buffer to the remote service. The user message is
// appended optimistically, with a pending annotation, and pushed into the
// store before the network call starts; the result (or failure) is
// reconciled into the conversation captured at submission time, not into
// whichever conversation is active when the call returns.
//
// Returned errors are request-preparation rejections only. Network failures
// are absorbed into the Failed transition: the annotation degrades to the
// Error sentinel and the failure text lands in the transcript.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if strings.TrimSpace(c.input) == "" {
		c.mu.Unlock()
		return ErrEmptyInput
	}
	if c.activeID == "" {
		c.mu.Unlock()
		return ErrNoActiveConversation
	}
	if c.inFlight[c.activeID] {
		c.mu.Unlock()
		return ErrBusy
	}

	convID := c.activeID
	history := chat.History(c.working)
	userMsg := chat.NewUserMessage(c.input)

	c.working = append(c.working, userMsg)
	optimistic := c.working
	c.input = ""
	c.inFlight[convID] = true
	c.mu.Unlock()

	c.store.Update(ctx, convID, optimistic)
	c.notify()

	// The only suspension point: everything before and after this call runs
	// to completion under the controller lock.
	reply, err := c.client.Send(ctx, userMsg.Content, history)

	c.mu.Lock()
	delete(c.inFlight, convID)

	var final []chat.Message
	if err != nil {
		log.Printf("[session] submission failed for conversation=%s: %v", convID, err)
		final = reconcileFailure(optimistic, userMsg.ID, err)
	} else {
		final = reconcileReply(optimistic, userMsg.ID, reply)
	}

	c.store.Update(ctx, convID, final)
	if c.activeID == convID {
		c.working = final
	}
	c.mu.Unlock()

	c.notify()
	return nil
}

// reconcileReply resolves the pending annotation with the real analysis and
// appends the assistant reply.
func reconcileReply(messages []chat.Message, userMsgID string, reply therapy.Reply) []chat.Message {
	annotate(messages, userMsgID, chat.Sentiment{
		EmotionLabel:      reply.EmotionLabel,
		EmotionConfidence: reply.EmotionConfidence,
		SarcasmDetected:   reply.SarcasmDetected,
		SarcasmReason:     reply.SarcasmReason,
	})
	return append(messages, chat.NewAssistantMessage(reply.ResponseText))
}

// reconcileFailure degrades the pending annotation to the Error sentinel and
// surfaces the failure in the transcript instead of dropping it.
func reconcileFailure(messages []chat.Message, userMsgID string, err error) []chat.Message {
	annotate(messages, userMsgID, chat.Sentiment{
		EmotionLabel:  chat.LabelError,
		SarcasmReason: "Analysis failed",
	})
	return append(messages, chat.NewAssistantMessage(fmt.Sprintf("Sorry, I encountered an error: %s", err)))
}

func annotate(messages []chat.Message, id string, annotation chat.Sentiment) {
	for i := range messages {
		if messages[i].ID == id {
			messages[i].Sentiment = &annotation
			return
		}
	}
}

func copyMessages(messages []chat.Message) []chat.Message {
	if messages == nil {
		return nil
	}
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied
}
