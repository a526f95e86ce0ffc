package conversation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lcampbell/healing-chat/internal/analysis/sentiment"
	"github.com/lcampbell/healing-chat/internal/model/chat"
)

const previewLimit = 30

// Summary is the lightweight projection the presentation layer renders in
// the conversation list.
type Summary struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Preview          string    `json:"preview"`
	OverallSentiment string    `json:"overallSentiment"`
	LastActivity     time.Time `json:"lastActivity"`
	MessageCount     int       `json:"messageCount"`
}

// Store owns the canonical conversation collection, kept sorted by last
// activity descending after every mutation.
type Store struct {
	mu            sync.RWMutex
	conversations []chat.Conversation
	now           func() time.Time
}

// NewStore bootstraps the in-memory conversation store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Create allocates a new empty conversation at the head of the collection.
// Titles follow the original numbering scheme: current count plus one.
func (s *Store) Create(_ context.Context) chat.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := chat.Conversation{
		ID:               uuid.NewString(),
		Title:            fmt.Sprintf("Conversation %d", len(s.conversations)+1),
		Messages:         []chat.Message{},
		OverallSentiment: chat.LabelNeutral,
		LastActivity:     s.now().UTC(),
	}

	s.conversations = append([]chat.Conversation{conv}, s.conversations...)
	s.resortLocked()
	return cloneConversation(conv)
}

// Delete removes a conversation. Deleting an unknown id is a no-op.
func (s *Store) Delete(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, conv := range s.conversations {
		if conv.ID == id {
			s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
			return
		}
	}
}

// Update replaces a conversation's transcript, recomputes its overall
// sentiment, refreshes its last activity and re-sorts the collection.
// Unknown ids are ignored so a late reconciliation for a deleted
// conversation cannot resurrect it.
func (s *Store) Update(_ context.Context, id string, messages []chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.conversations {
		if s.conversations[i].ID != id {
			continue
		}
		s.conversations[i].Messages = cloneMessages(messages)
		s.conversations[i].OverallSentiment = sentiment.Aggregate(messages)
		s.conversations[i].LastActivity = s.now().UTC()
		s.resortLocked()
		return
	}
}

// Get retrieves a conversation by id.
func (s *Store) Get(_ context.Context, id string) (chat.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, conv := range s.conversations {
		if conv.ID == id {
			return cloneConversation(conv), true
		}
	}
	return chat.Conversation{}, false
}

// List returns the conversations sorted by last activity descending.
func (s *Store) List(_ context.Context) []chat.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	listed := make([]chat.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		listed = append(listed, cloneConversation(conv))
	}
	return listed
}

// Summaries returns the list projection used by the sidebar.
func (s *Store) Summaries(ctx context.Context) []Summary {
	conversations := s.List(ctx)

	summaries := make([]Summary, 0, len(conversations))
	for _, conv := range conversations {
		summaries = append(summaries, Summary{
			ID:               conv.ID,
			Title:            conv.Title,
			Preview:          preview(conv),
			OverallSentiment: conv.OverallSentiment,
			LastActivity:     conv.LastActivity,
			MessageCount:     len(conv.Messages),
		})
	}
	return summaries
}

// preview mirrors the list entries of the original UI: the first user
// message truncated to thirty characters, or a placeholder.
func preview(conv chat.Conversation) string {
	for _, msg := range conv.Messages {
		if msg.Role != chat.RoleUser {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if len(content) > previewLimit {
			return content[:previewLimit] + "..."
		}
		return content
	}
	return "New chat"
}

// resortLocked restores the last-activity ordering. Stable sort keeps ties
// in their previous relative order.
func (s *Store) resortLocked() {
	sort.SliceStable(s.conversations, func(i, j int) bool {
		return s.conversations[i].LastActivity.After(s.conversations[j].LastActivity)
	})
}

func cloneConversation(conv chat.Conversation) chat.Conversation {
	conv.Messages = cloneMessages(conv.Messages)
	return conv
}

// cloneMessages deep-copies a transcript so callers can never mutate stored
// annotations in place.
func cloneMessages(messages []chat.Message) []chat.Message {
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	for i := range copied {
		if copied[i].Sentiment != nil {
			annotation := *copied[i].Sentiment
			copied[i].Sentiment = &annotation
		}
	}
	return copied
}
