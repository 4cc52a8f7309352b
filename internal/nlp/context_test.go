package nlp

import (
	"fmt"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	openai "github.com/sashabaranov/go-openai"

	"github.com/f0rthsp4ce/botka/internal/db"
)

func fixClock(t *testing.T, at time.Time) {
	t.Helper()
	old := nowFunc
	nowFunc = func() time.Time { return at }
	t.Cleanup(func() { nowFunc = old })
}

func TestFormatMemories(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)

	future := now.Add(2 * time.Hour)
	past := now.Add(-2 * time.Hour)
	chatID := int64(10)
	userID := int64(100)

	block := formatMemories([]db.Memory{
		{ID: 5, Text: "the door code changed"},
		{ID: 7, Text: "alice likes tea", ExpiresAt: &future, UserID: &userID},
		{ID: 9, Text: "meeting tonight", ExpiresAt: &past, ChatID: &chatID},
	})

	want := "## Active Memories\n" +
		"[PERSISTENT Expires:No expiration][GLOBAL][ID:5] the door code changed\n" +
		fmt.Sprintf("[ACTIVE Expires:Expires: %s][USER][ID:7] alice likes tea\n", future.Local().Format(timeFormat)) +
		fmt.Sprintf("[EXPIRED Expires:Expires: %s][CHAT][ID:9] meeting tonight\n", past.Local().Format(timeFormat)) +
		"\n"
	if block != want {
		t.Fatalf("memory block:\n got %q\nwant %q", block, want)
	}
}

func TestFormatMemoriesEmpty(t *testing.T) {
	if got := formatMemories(nil); got != "" {
		t.Fatalf("empty memory list must render nothing, got %q", got)
	}
}

func TestMemoryScopePrecedence(t *testing.T) {
	chatID, threadID, userID := int64(1), int64(2), int64(3)

	cases := []struct {
		m    db.Memory
		want string
	}{
		{db.Memory{}, "GLOBAL"},
		{db.Memory{ChatID: &chatID}, "CHAT"},
		{db.Memory{ChatID: &chatID, ThreadID: &threadID}, "THREAD"},
		{db.Memory{ChatID: &chatID, ThreadID: &threadID, UserID: &userID}, "USER"},
	}
	for _, tc := range cases {
		if got := memoryScope(tc.m); got != tc.want {
			t.Errorf("memoryScope(%+v) = %q, want %q", tc.m, got, tc.want)
		}
	}
}

func TestCurrentTurnTextQuotesReply(t *testing.T) {
	msg := groupMessage(1, "is that still true?")
	msg.ReplyToMessage = &tgbotapi.Message{
		From: &tgbotapi.User{UserName: "bob"},
		Text: "line one\nline two",
	}

	got := currentTurnText(msg)
	want := "@alice replied to (@bob):\n> line one\n> line two\n\nis that still true?"
	if got != want {
		t.Fatalf("currentTurnText:\n got %q\nwant %q", got, want)
	}
}

func TestBuildMessagesReplayOrder(t *testing.T) {
	e, _, store := newTestEngine(t, &fakeAI{})

	uid := int64(100)
	if err := store.UpsertUser(db.User{ID: uid, Username: strPtr("alice"), FirstName: "Alice"}); err != nil {
		t.Fatalf("upsert user: %v", err)
	}

	// History arrives newest first; index 0 is the message being handled.
	history := []db.HistoryEntry{
		{MessageID: 4, FromUserID: &uid, Text: "current question"},
		{MessageID: 3, FromUserID: nil, Text: "bot reply"},
		{MessageID: 2, FromUserID: &uid, Text: "second"},
		{MessageID: 1, FromUserID: &uid, Text: "first"},
	}

	messages, turnText, err := e.buildMessages(groupMessage(4, "current question"), history, nil)
	if err != nil {
		t.Fatalf("buildMessages: %v", err)
	}
	if turnText != "@alice: current question" {
		t.Fatalf("turn text = %q", turnText)
	}

	if len(messages) != 4 {
		t.Fatalf("got %d messages, want 4 (system, combined users, assistant, current)", len(messages))
	}
	if messages[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("first message role = %s, want system", messages[0].Role)
	}
	if messages[1].Role != openai.ChatMessageRoleUser || messages[1].Content != "@alice: first\n\n@alice: second\n\n" {
		t.Fatalf("combined user turn = %q", messages[1].Content)
	}
	if messages[2].Role != openai.ChatMessageRoleAssistant || messages[2].Content != "bot reply" {
		t.Fatalf("assistant turn = %q", messages[2].Content)
	}
	if messages[3].Content != "@alice: current question" {
		t.Fatalf("current turn = %q", messages[3].Content)
	}
}

func TestBuildMessagesMemoryBlock(t *testing.T) {
	e, _, _ := newTestEngine(t, &fakeAI{})

	memories := []db.Memory{{ID: 1, Text: "the wifi password is on the fridge"}}
	messages, _, err := e.buildMessages(privateMessage(1, "hi"), nil, memories)
	if err != nil {
		t.Fatalf("buildMessages: %v", err)
	}

	if len(messages) != 4 {
		t.Fatalf("got %d messages, want 4 (system, memories, ack, current)", len(messages))
	}
	if !strings.HasPrefix(messages[1].Content, "## Active Memories\n") {
		t.Fatalf("memory turn = %q", messages[1].Content)
	}
	if messages[2].Role != openai.ChatMessageRoleAssistant || messages[2].Content != "OK, I will remember this." {
		t.Fatalf("memory ack = %q", messages[2].Content)
	}
}

func TestBuildMessagesSystemPromptHasDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fixClock(t, now)

	e, _, _ := newTestEngine(t, &fakeAI{})
	messages, _, err := e.buildMessages(privateMessage(1, "hi"), nil, nil)
	if err != nil {
		t.Fatalf("buildMessages: %v", err)
	}

	stamp := fmt.Sprintf("Current Date and Time: %s", now.Local().Format(timeFormat))
	if !strings.Contains(messages[0].Content, stamp) {
		t.Fatalf("system prompt is missing the date stamp %q", stamp)
	}
}

func strPtr(s string) *string { return &s }
