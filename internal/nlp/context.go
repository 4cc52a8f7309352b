package nlp

import (
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	openai "github.com/sashabaranov/go-openai"

	"github.com/f0rthsp4ce/botka/internal/db"
	"github.com/f0rthsp4ce/botka/internal/telegram"
)

const timeFormat = "2006-01-02 15:04"

func displayName(u *tgbotapi.User) string {
	if u == nil {
		return "Unknown User"
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "Unknown User"
}

// memoryStatus labels a memory for the prompt.
func memoryStatus(m db.Memory) string {
	switch {
	case m.ExpiresAt == nil:
		return "PERSISTENT"
	case m.ExpiresAt.After(nowFunc()):
		return "ACTIVE"
	default:
		return "EXPIRED"
	}
}

func memoryScope(m db.Memory) string {
	switch {
	case m.ChatID == nil && m.ThreadID == nil && m.UserID == nil:
		return "GLOBAL"
	case m.UserID != nil:
		return "USER"
	case m.ThreadID != nil:
		return "THREAD"
	default:
		return "CHAT"
	}
}

// formatMemories renders the "## Active Memories" block injected as the
// first user turn.
func formatMemories(memories []db.Memory) string {
	if len(memories) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Active Memories\n")
	for _, m := range memories {
		expires := "No expiration"
		if m.ExpiresAt != nil {
			expires = fmt.Sprintf("Expires: %s", m.ExpiresAt.Local().Format(timeFormat))
		}
		fmt.Fprintf(&b, "[%s Expires:%s][%s][ID:%d] %s\n",
			memoryStatus(m), expires, memoryScope(m), m.ID, m.Text)
	}
	b.WriteString("\n")
	return b.String()
}

// currentTurnText formats the triggering message, quoting the replied-to
// message when present.
func currentTurnText(msg *telegram.Message) string {
	name := displayName(msg.From)
	text := messageText(msg)

	replied := msg.ReplyToMessage
	if replied == nil {
		return fmt.Sprintf("%s: %s", name, text)
	}

	repliedText := replied.Text
	if repliedText == "" {
		repliedText = replied.Caption
	}
	var quoted []string
	for _, line := range strings.Split(repliedText, "\n") {
		quoted = append(quoted, "> "+line)
	}
	return fmt.Sprintf("%s replied to (%s):\n%s\n\n%s",
		name, displayName(replied.From), strings.Join(quoted, "\n"), text)
}

// buildMessages assembles the full conversation for the chat completion:
// system prompt with the current date, the memory block with its
// acknowledgment, the replayed history and the current turn with any
// attached images.
func (e *Engine) buildMessages(msg *telegram.Message, history []db.HistoryEntry, memories []db.Memory) ([]openai.ChatCompletionMessage, string, error) {
	var messages []openai.ChatCompletionMessage

	system := mainPrompt + fmt.Sprintf("Current Date and Time: %s\n\n", nowFunc().Local().Format(timeFormat))
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})

	if block := formatMemories(memories); block != "" {
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: block},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "OK, I will remember this."},
		)
	}

	// Resolve display names for everyone in the replay in one query.
	var userIDs []int64
	for _, entry := range history {
		if entry.FromUserID != nil {
			userIDs = append(userIDs, *entry.FromUserID)
		}
	}
	names, err := e.store.DisplayNames(userIDs)
	if err != nil {
		return nil, "", fmt.Errorf("resolve display names: %w", err)
	}

	// Replay history oldest first, skipping the current message (index 0
	// of the desc-ordered slice). Consecutive user messages are combined
	// into one turn.
	var combined strings.Builder
	flush := func() {
		if combined.Len() > 0 {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: combined.String(),
			})
			combined.Reset()
		}
	}
	for i := len(history) - 1; i >= 1; i-- {
		entry := history[i]
		if entry.FromUserID == nil {
			flush()
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: entry.Text,
			})
			continue
		}
		fmt.Fprintf(&combined, "%s: %s\n\n", names[*entry.FromUserID], entry.Text)
	}
	flush()

	turnText := currentTurnText(msg)
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: turnText},
	}
	parts = append(parts, e.imageParts(msg)...)

	current := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(parts) == 1 {
		current.Content = turnText
	} else {
		current.MultiContent = parts
	}
	messages = append(messages, current)

	return messages, turnText, nil
}

// imageParts attaches the largest photo of the current and replied-to
// messages as image URL parts. Failures are logged and the part skipped.
func (e *Engine) imageParts(msg *telegram.Message) []openai.ChatMessagePart {
	var parts []openai.ChatMessagePart

	appendPhoto := func(photos []tgbotapi.PhotoSize, what string) {
		if len(photos) == 0 {
			return
		}
		largest := photos[len(photos)-1]
		url, err := e.tg.PhotoURL(largest.FileID)
		if err != nil {
			log.Printf("[nlp] failed to get file for photo in %s: %v", what, err)
			return
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    url,
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	appendPhoto(msg.Photo, "message")
	if msg.ReplyToMessage != nil {
		appendPhoto(msg.ReplyToMessage.Photo, "replied message")
	}
	return parts
}
