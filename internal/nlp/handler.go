package nlp

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/f0rthsp4ce/botka/internal/db"
	"github.com/f0rthsp4ce/botka/internal/telegram"
)

// maxMessageBytes caps a single reply chunk. Telegram allows 4096 UTF-8
// bytes; the lower limit leaves room for escaping growth.
const maxMessageBytes = 2000

// HandleMessage runs the full pipeline for a message that passed the
// trigger filter: context assembly, classification, the tool loop and the
// reply.
func (e *Engine) HandleMessage(ctx context.Context, msg *telegram.Message) error {
	history, err := e.store.History(msg.Chat.ID, int64(msg.MessageThreadID), nowFunc(), e.cfg.NLP.MaxHistory)
	if err != nil {
		return fmt.Errorf("load chat history: %w", err)
	}

	var userID int64
	if msg.From != nil {
		userID = msg.From.ID
	}
	memories, err := e.store.RelevantMemories(msg.Chat.ID, int64(msg.MessageThreadID), userID, nowFunc())
	if err != nil {
		return fmt.Errorf("load memories: %w", err)
	}

	response, ignored, debug, err := e.processWithFunctionCalling(ctx, msg, history, memories)
	if err != nil {
		return err
	}

	if ignored {
		// Leave the verdict on the stored inbound row so the debug
		// command can explain the silence.
		if err := e.store.UpdateClassification(msg.Chat.ID, msg.MessageID, debug.Classification.String(), debug.UsedModel); err != nil {
			log.Printf("[nlp] annotate ignored message: %v", err)
		}
		return nil
	}

	return e.emitResponse(msg, response, debug)
}

// emitResponse splits, escapes and sends the reply, chaining chunks as
// replies to each other, then records the response in chat history.
func (e *Engine) emitResponse(msg *telegram.Message, response string, debug Debug) error {
	parts := SplitLongMessage(response, maxMessageBytes)

	var firstSent *tgbotapi.Message
	replyTo := msg.MessageID
	for i, part := range parts {
		sent, err := e.tg.SendHTML(msg.Chat.ID, msg.MessageThreadID, replyTo, telegram.EscapeHTML(part))
		if err != nil {
			return fmt.Errorf("send response part %d: %w", i+1, err)
		}
		replyTo = sent.MessageID
		if i == 0 {
			firstSent = &sent
		}
	}

	if firstSent != nil {
		err := e.store.StoreBotResponse(msg.Chat.ID, int64(msg.MessageThreadID),
			firstSent.MessageID, response, debug.Classification.String(), debug.UsedModel, nowFunc())
		if err != nil {
			return fmt.Errorf("store bot response in chat history: %w", err)
		}
	}
	return nil
}

// StoreInbound records an accepted inbound message in chat history before
// processing. Commands and opted-out messages are skipped.
func (e *Engine) StoreInbound(msg *telegram.Message) error {
	text := messageText(msg)
	if text == "" {
		return nil
	}
	if len(text) > 0 && (text[0] == '/' || (len(text) > 1 && text[:2] == "--")) {
		return nil
	}

	entry := db.HistoryEntry{
		ChatID:    msg.Chat.ID,
		ThreadID:  int64(msg.MessageThreadID),
		MessageID: msg.MessageID,
		Timestamp: nowFunc(),
		Text:      text,
	}
	if msg.From != nil {
		id := msg.From.ID
		entry.FromUserID = &id
	}
	return e.store.StoreMessage(entry)
}

// DebugInfo reports the stored classification for a message, for the
// debug reply command.
func (e *Engine) DebugInfo(chatID int64, messageID int) string {
	entry, err := e.store.FindEntry(chatID, messageID)
	if err != nil {
		return "No stored record for that message."
	}
	classification := "not classified"
	if entry.Classification != nil {
		classification = *entry.Classification
	}
	model := "none"
	if entry.UsedModel != nil {
		model = *entry.UsedModel
	}
	return fmt.Sprintf("Classification: %s\nModel: %s", classification, model)
}
