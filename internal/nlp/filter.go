package nlp

import (
	"context"
	"log"
	"strings"
	"unicode"

	"github.com/f0rthsp4ce/botka/internal/telegram"
)

// messageText returns the message's text or caption.
func messageText(msg *telegram.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

// ShouldProcess decides whether a message enters the NLP pipeline on the
// direct path (DM, reply to the bot, or trigger word).
func (e *Engine) ShouldProcess(msg *telegram.Message, botUsername string) bool {
	if !e.cfg.NLP.Enabled {
		return false
	}

	text := messageText(msg)
	if text == "" {
		return false
	}
	// "--" is the explicit opt-out prefix; "/" marks bot commands.
	if strings.HasPrefix(text, "--") || strings.HasPrefix(text, "/") {
		return false
	}

	if msg.Chat.IsPrivate() {
		return true
	}

	if mentionsOthersButNotBot(msg, botUsername) {
		return false
	}

	if e.cfg.Telegram.PassiveMode {
		return false
	}

	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil && msg.ReplyToMessage.From.IsBot {
		return true
	}

	triggers := e.cfg.NLP.TriggerWords
	if len(triggers) == 0 {
		return true
	}

	words := normalizedWords(text)
	for _, trigger := range triggers {
		if words[strings.ToLower(trigger)] {
			return true
		}
	}
	return false
}

// ShouldProcessRandom decides whether to intervene without being addressed.
// It rolls against the configured probability, then asks the classification
// model whether the bot would add value.
func (e *Engine) ShouldProcessRandom(ctx context.Context, msg *telegram.Message) bool {
	if !e.cfg.NLP.Enabled || e.cfg.Telegram.PassiveMode {
		return false
	}
	chance := e.cfg.NLP.RandomAnswerProbability
	if chance == 0 {
		return false
	}
	if e.roll() > chance {
		return false
	}

	text := messageText(msg)
	if text == "" {
		return false
	}
	if strings.HasPrefix(text, "--") || strings.HasPrefix(text, "/") {
		return false
	}

	history, err := e.store.History(msg.Chat.ID, int64(msg.MessageThreadID), nowFunc(), e.cfg.NLP.MaxHistory)
	if err != nil {
		log.Printf("[nlp] history for random filter: %v", err)
	}
	intervene, err := e.classifyIntervention(ctx, text, history)
	if err != nil {
		log.Printf("[nlp] random classification: %v", err)
		return false
	}
	return intervene
}

// normalizedWords splits text on whitespace, strips surrounding punctuation
// and lowercases, for whole-word trigger matching.
func normalizedWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(text) {
		w = strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if w != "" {
			words[strings.ToLower(w)] = true
		}
	}
	return words
}

// mentionsOthersButNotBot reports whether the message @-mentions somebody
// who is not the bot. Such messages are addressed elsewhere and skipped.
func mentionsOthersButNotBot(msg *telegram.Message, botUsername string) bool {
	for _, entity := range msg.Entities {
		if entity.Type != "mention" {
			continue
		}
		mention := extractEntity(msg.Text, entity.Offset, entity.Length)
		mention = strings.TrimPrefix(mention, "@")
		if !strings.EqualFold(mention, botUsername) {
			return true
		}
	}
	return false
}

// extractEntity slices an entity out of text. Telegram entity offsets are
// in UTF-16 code units.
func extractEntity(text string, offset, length int) string {
	u := make([]rune, 0, len(text))
	idx := 0
	start, end := -1, -1
	for _, r := range text {
		if idx == offset {
			start = len(u)
		}
		units := 1
		if r > 0xFFFF {
			units = 2
		}
		idx += units
		u = append(u, r)
		if idx == offset+length {
			end = len(u)
		}
	}
	if start < 0 {
		return ""
	}
	if end < 0 {
		end = len(u)
	}
	return string(u[start:end])
}
