package session

import (
	"context"
	"strings"
	"testing"

	"github.com/lcampbell/healing-chat/internal/model/chat"
	"github.com/lcampbell/healing-chat/internal/service/conversation"
	"github.com/lcampbell/healing-chat/internal/service/therapy"
)

// fakeClient lets tests observe state mid-flight and script the outcome of
// the single network round trip.
type fakeClient struct {
	reply  therapy.Reply
	err    error
	onSend func(message string, history []chat.Turn)
}

func (f *fakeClient) Send(_ context.Context, message string, history []chat.Turn) (therapy.Reply, error) {
	if f.onSend != nil {
		f.onSend(message, history)
	}
	return f.reply, f.err
}

func joyReply(text string) therapy.Reply {
	return therapy.Reply{
		ResponseText:      text,
		EmotionLabel:      "joy",
		EmotionConfidence: 91,
	}
}

func TestSubmitOptimisticThenReconcile(t *testing.T) {
	ctx := context.Background()
	store := conversation.NewStore()

	var pendingSeen bool
	client := &fakeClient{reply: joyReply("hi")}
	ctrl := NewController(store, client)

	conv := ctrl.CreateConversation(ctx)

	client.onSend = func(message string, history []chat.Turn) {
		// Before the simulated network responds, the stored transcript must
		// already contain the user message with a pending annotation.
		stored, ok := store.Get(ctx, conv.ID)
		if !ok {
			t.Error("conversation missing mid-flight")
			return
		}
		if len(stored.Messages) != 1 {
			t.Errorf("expected 1 optimistic message, got %d", len(stored.Messages))
			return
		}
		msg := stored.Messages[0]
		if msg.Sentiment == nil || !msg.Sentiment.Pending {
			t.Error("optimistic message should carry a pending annotation")
		}
		if msg.Sentiment != nil && msg.Sentiment.EmotionLabel != chat.LabelAnalyzing {
			t.Errorf("unexpected pending label: %s", msg.Sentiment.EmotionLabel)
		}
		if len(history) != 0 {
			t.Errorf("history should not include the in-flight message, got %d turns", len(history))
		}
		pendingSeen = true
	}

	ctrl.UpdateInput("hello")
	if err := ctrl.Submit(ctx); err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	if !pendingSeen {
		t.Fatal("fake client was never invoked")
	}

	stored, _ := store.Get(ctx, conv.ID)
	if len(stored.Messages) != 2 {
		t.Fatalf("expected user+assistant messages, got %d", len(stored.Messages))
	}

	user := stored.Messages[0]
	if user.Sentiment == nil || user.Sentiment.Pending {
		t.Fatal("user annotation never resolved")
	}
	if user.Sentiment.EmotionLabel != "joy" || user.Sentiment.EmotionConfidence != 91 {
		t.Fatalf("unexpected resolved annotation: %+v", user.Sentiment)
	}

	assistant := stored.Messages[1]
	if assistant.Role != chat.RoleAssistant || assistant.Content != "hi" {
		t.Fatalf("unexpected assistant message: %+v", assistant)
	}
	if stored.OverallSentiment != "joy" {
		t.Fatalf("expected overall sentiment joy, got %s", stored.OverallSentiment)
	}

	snap := ctrl.Snapshot()
	if snap.Busy {
		t.Fatal("controller still busy after reconciliation")
	}
	if snap.Input != "" {
		t.Fatalf("input buffer not cleared: %q", snap.Input)
	}
	if len(snap.Messages) != 2 {
		t.Fatalf("working copy out of sync: %d messages", len(snap.Messages))
	}
}

func TestSubmitFailurePath(t *testing.T) {
	ctx := context.Background()
	store := conversation.NewStore()
	client := &fakeClient{err: &therapy.Error{Detail: "Could not connect to the assistant."}}
	ctrl := NewController(store, client)

	conv := ctrl.CreateConversation(ctx)
	ctrl.UpdateInput("hello")

	// Network failures are absorbed; only preparation errors surface.
	if err := ctrl.Submit(ctx); err != nil {
		t.Fatalf("Submit should absorb network failures, got %v", err)
	}

	stored, _ := store.Get(ctx, conv.ID)
	if len(stored.Messages) != 2 {
		t.Fatalf("expected user+error messages, got %d", len(stored.Messages))
	}

	user := stored.Messages[0]
	if user.Sentiment == nil || user.Sentiment.Pending {
		t.Fatal("annotation left pending after failure")
	}
	if user.Sentiment.EmotionLabel != chat.LabelError {
		t.Fatalf("expected Error label, got %s", user.Sentiment.EmotionLabel)
	}
	if user.Sentiment.SarcasmReason != "Analysis failed" {
		t.Fatalf("unexpected sarcasm reason: %q", user.Sentiment.SarcasmReason)
	}

	assistant := stored.Messages[1]
	if assistant.Role != chat.RoleAssistant {
		t.Fatalf("expected assistant error message, got role %s", assistant.Role)
	}
	if !strings.Contains(assistant.Content, "Sorry, I encountered an error: Could not connect to the assistant.") {
		t.Fatalf("failure not embedded in transcript: %q", assistant.Content)
	}

	// Error labels never count toward the aggregate.
	if stored.OverallSentiment != chat.LabelNeutral {
		t.Fatalf("expected neutral sentiment, got %s", stored.OverallSentiment)
	}
	if ctrl.Snapshot().Busy {
		t.Fatal("controller still busy after failure")
	}
}

func TestSubmitRejectsEmptyInput(t *testing.T) {
	ctx := context.Background()
	store := conversation.NewStore()
	ctrl := NewController(store, &fakeClient{reply: joyReply("hi")})

	conv := ctrl.CreateConversation(ctx)
	ctrl.UpdateInput("   ")

	if err := ctrl.Submit(ctx); err != ErrEmptyInput {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}

	stored, _ := store.Get(ctx, conv.ID)
	if len(stored.Messages) != 0 {
		t.Fatalf("rejected submission must not touch the transcript, got %d messages", len(stored.Messages))
	}
}

func TestSubmitRejectsWithoutActiveConversation(t *testing.T) {
	ctx := context.Background()
	ctrl := NewController(conversation.NewStore(), &fakeClient{})
	ctrl.UpdateInput("hello")

	if err := ctrl.Submit(ctx); err != ErrNoActiveConversation {
		t.Fatalf("expected ErrNoActiveConversation, got %v", err)
	}
}

func TestSubmitTargetsOriginatingConversation(t *testing.T) {
	ctx := context.Background()
	store := conversation.NewStore()

	client := &fakeClient{reply: joyReply("hi there")}
	ctrl := NewController(store, client)

	convA := ctrl.CreateConversation(ctx)
	convB := ctrl.CreateConversation(ctx)
	ctrl.SwitchConversation(ctx, convA.ID)

	client.onSend = func(string, []chat.Turn) {
		// User navigates away while the request is in flight.
		ctrl.SwitchConversation(ctx, convB.ID)
	}

	ctrl.UpdateInput("hello from A")
	if err := ctrl.Submit(ctx); err != nil {
		t.Fatalf("Submit err: %v", err)
	}

	storedA, _ := store.Get(ctx, convA.ID)
	if len(storedA.Messages) != 2 {
		t.Fatalf("conversation A should hold the reconciled exchange, got %d messages", len(storedA.Messages))
	}
	if storedA.Messages[0].Sentiment.Pending {
		t.Fatal("conversation A annotation never resolved")
	}

	storedB, _ := store.Get(ctx, convB.ID)
	if len(storedB.Messages) != 0 {
		t.Fatalf("conversation B must stay untouched, got %d messages", len(storedB.Messages))
	}

	snap := ctrl.Snapshot()
	if snap.ConversationID != convB.ID {
		t.Fatalf("active conversation should remain B, got %s", snap.ConversationID)
	}
	if len(snap.Messages) != 0 {
		t.Fatalf("B's working copy polluted with %d messages", len(snap.Messages))
	}
	if snap.Busy {
		t.Fatal("B should not be busy; the outstanding call belonged to A")
	}
}

func TestBusyIsScopedToConversation(t *testing.T) {
	ctx := context.Background()
	store := conversation.NewStore()

	client := &fakeClient{reply: joyReply("ok")}
	ctrl := NewController(store, client)

	convA := ctrl.CreateConversation(ctx)
	_ = ctrl.CreateConversation(ctx) // convB becomes active
	ctrl.SwitchConversation(ctx, convA.ID)

	var busyDuringFlight, secondSubmitRejected bool
	client.onSend = func(string, []chat.Turn) {
		busyDuringFlight = ctrl.Snapshot().Busy

		// Re-entrant submit for the same conversation must be refused.
		ctrl.UpdateInput("again")
		secondSubmitRejected = ctrl.Submit(ctx) == ErrBusy
		client.onSend = nil
	}

	ctrl.UpdateInput("first")
	if err := ctrl.Submit(ctx); err != nil {
		t.Fatalf("Submit err: %v", err)
	}

	if !busyDuringFlight {
		t.Fatal("snapshot should report busy while the call is outstanding")
	}
	if !secondSubmitRejected {
		t.Fatal("second submission for a busy conversation must be rejected")
	}
}

func TestDeleteActiveConversationPromotesMostRecent(t *testing.T) {
	ctx := context.Background()
	store := conversation.NewStore()
	ctrl := NewController(store, &fakeClient{reply: joyReply("ok")})

	convA := ctrl.CreateConversation(ctx)
	convB := ctrl.CreateConversation(ctx)

	ctrl.DeleteConversation(ctx, convB.ID)

	snap := ctrl.Snapshot()
	if snap.ConversationID != convA.ID {
		t.Fatalf("expected most recent remaining conversation active, got %q", snap.ConversationID)
	}

	ctrl.DeleteConversation(ctx, convA.ID)

	snap = ctrl.Snapshot()
	if snap.ConversationID != "" {
		t.Fatalf("expected empty session after deleting last conversation, got %q", snap.ConversationID)
	}
	if len(store.List(ctx)) != 0 {
		t.Fatal("store should be empty")
	}
}

func TestDeleteInactiveConversationKeepsSession(t *testing.T) {
	ctx := context.Background()
	store := conversation.NewStore()
	ctrl := NewController(store, &fakeClient{})

	convA := ctrl.CreateConversation(ctx)
	convB := ctrl.CreateConversation(ctx)
	ctrl.UpdateInput("draft text")

	ctrl.DeleteConversation(ctx, convA.ID)

	snap := ctrl.Snapshot()
	if snap.ConversationID != convB.ID {
		t.Fatalf("active conversation changed unexpectedly to %q", snap.ConversationID)
	}
	if snap.Input != "draft text" {
		t.Fatalf("input buffer lost: %q", snap.Input)
	}
}

func TestDeleteUnknownConversationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := conversation.NewStore()
	ctrl := NewController(store, &fakeClient{})

	conv := ctrl.CreateConversation(ctx)
	ctrl.UpdateInput("keep me")

	ctrl.DeleteConversation(ctx, "missing")

	if got := len(store.List(ctx)); got != 1 {
		t.Fatalf("expected collection unchanged, got %d conversations", got)
	}
	snap := ctrl.Snapshot()
	if snap.ConversationID != conv.ID || snap.Input != "keep me" {
		t.Fatalf("active session changed: %+v", snap)
	}
}
