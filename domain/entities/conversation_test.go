package entities

import (
	"testing"
	"time"
)

func TestConversation_AppendOrdersTimestamps(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	conv := NewConversationWithClock(func() time.Time { return fixed })

	user, err := conv.Append(MessageRoleUser, "Hello")
	if err != nil {
		t.Fatalf("Append user failed: %v", err)
	}
	assistant, err := conv.Append(MessageRoleAssistant, "Hi there")
	if err != nil {
		t.Fatalf("Append assistant failed: %v", err)
	}

	if !assistant.Timestamp.After(user.Timestamp) {
		t.Errorf("Expected strictly increasing timestamps, got %v then %v", user.Timestamp, assistant.Timestamp)
	}

	if user.ID == "" || user.ID == assistant.ID {
		t.Errorf("Expected unique non-empty ids, got %q and %q", user.ID, assistant.ID)
	}
}

func TestConversation_ClockGoingBackwards(t *testing.T) {
	times := []time.Time{
		time.Date(2024, 5, 1, 10, 0, 5, 0, time.UTC),
		time.Date(2024, 5, 1, 10, 0, 1, 0, time.UTC),
	}
	i := 0
	conv := NewConversationWithClock(func() time.Time {
		ts := times[i]
		i++
		return ts
	})

	first, _ := conv.Append(MessageRoleUser, "a")
	second, _ := conv.Append(MessageRoleAssistant, "b")

	if !second.Timestamp.After(first.Timestamp) {
		t.Errorf("Expected %v after %v", second.Timestamp, first.Timestamp)
	}
}

func TestConversation_RejectsUnknownRole(t *testing.T) {
	conv := NewConversation()
	if _, err := conv.Append(MessageRole("system"), "x"); err == nil {
		t.Error("Expected error for unknown role")
	}
	if conv.Len() != 0 {
		t.Errorf("Expected empty log, got %d messages", conv.Len())
	}
}

func TestConversation_Projection(t *testing.T) {
	conv := NewConversation()
	conv.Append(MessageRoleUser, "Hello")
	conv.Append(MessageRoleAssistant, "Hi there")

	turns := conv.Projection()
	want := []ChatTurn{
		{Role: MessageRoleUser, Content: "Hello"},
		{Role: MessageRoleAssistant, Content: "Hi there"},
	}

	if len(turns) != len(want) {
		t.Fatalf("Expected %d turns, got %d", len(want), len(turns))
	}
	for i := range want {
		if turns[i] != want[i] {
			t.Errorf("turn %d: expected %+v, got %+v", i, want[i], turns[i])
		}
	}
}

func TestConversation_MessagesIsCopy(t *testing.T) {
	conv := NewConversation()
	msg, _ := conv.Append(MessageRoleUser, "Hello")

	snapshot := conv.Messages()
	snapshot[0].Content = "changed"

	found, ok := conv.Find(msg.ID)
	if !ok {
		t.Fatal("Expected to find appended message")
	}
	if found.Content != "Hello" {
		t.Errorf("Expected log to be unaffected, got %q", found.Content)
	}
}
