// Package telegram wraps the bot API behind a small interface so the rest
// of the code can be tested with a fake bot.
//
// The pinned library release predates forum topics, so anything involving
// message_thread_id goes through MakeRequest with explicit params, and
// updates are decoded by this package instead of the library's poller.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot is the subset of the bot API the rest of the code uses.
type Bot interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetSelf() tgbotapi.User
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
}

type botWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *botWrapper) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	return w.bot.MakeRequest(endpoint, params)
}

func (w *botWrapper) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return w.bot.Request(c)
}

func (w *botWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

func (w *botWrapper) GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error) {
	return w.bot.GetFile(config)
}

// BotFactory creates Bot instances (allows mocking).
type BotFactory func(token string, client *http.Client) (Bot, error)

// DefaultBotFactory connects to the real Telegram API.
var DefaultBotFactory BotFactory = func(token string, client *http.Client) (Bot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &botWrapper{bot: bot}, nil
}

// Message is a chat message with the thread id the library's structs lack.
type Message struct {
	tgbotapi.Message
	MessageThreadID int `json:"message_thread_id"`
}

// Update mirrors the update payload for the kinds the bot handles.
type Update struct {
	UpdateID      int                     `json:"update_id"`
	Message       *Message                `json:"message"`
	CallbackQuery *tgbotapi.CallbackQuery `json:"callback_query"`
}

// Client bundles a Bot with the token, which is still needed to build file
// download URLs.
type Client struct {
	Bot   Bot
	token string
}

func NewClient(token string, factory BotFactory) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	bot, err := factory(token, http.DefaultClient)
	if err != nil {
		return nil, err
	}
	log.Printf("[telegram] authorized as @%s", bot.GetSelf().UserName)
	return &Client{Bot: bot, token: token}, nil
}

// Username returns the bot's own username.
func (c *Client) Username() string {
	return c.Bot.GetSelf().UserName
}

// Updates long-polls for updates and delivers them on the returned
// channel until ctx is cancelled.
func (c *Client) Updates(ctx context.Context) <-chan Update {
	ch := make(chan Update, 16)
	go func() {
		defer close(ch)
		offset := 0
		for {
			if ctx.Err() != nil {
				return
			}
			updates, err := c.getUpdates(offset)
			if err != nil {
				log.Printf("[telegram] get updates: %v", err)
				select {
				case <-time.After(3 * time.Second):
				case <-ctx.Done():
					return
				}
				continue
			}
			for _, u := range updates {
				if u.UpdateID >= offset {
					offset = u.UpdateID + 1
				}
				select {
				case ch <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}

func (c *Client) getUpdates(offset int) ([]Update, error) {
	params := tgbotapi.Params{}
	params.AddNonZero("offset", offset)
	params.AddNonZero("timeout", 30)

	resp, err := c.Bot.MakeRequest("getUpdates", params)
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := json.Unmarshal(resp.Result, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return updates, nil
}

// SendHTML sends an HTML message into a chat/thread, optionally replying
// to a message. Web page previews are always disabled.
func (c *Client) SendHTML(chatID int64, threadID int, replyTo int, html string) (tgbotapi.Message, error) {
	return c.sendMessage(chatID, threadID, replyTo, html, nil)
}

// SendKeyboard sends an HTML message with an inline keyboard.
func (c *Client) SendKeyboard(chatID int64, threadID int, html string, markup tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	return c.sendMessage(chatID, threadID, 0, html, &markup)
}

func (c *Client) sendMessage(chatID int64, threadID int, replyTo int, html string, markup *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params["text"] = html
	params["parse_mode"] = tgbotapi.ModeHTML
	params.AddBool("disable_web_page_preview", true)
	params.AddNonZero("message_thread_id", threadID)
	params.AddNonZero("reply_to_message_id", replyTo)
	if markup != nil {
		if err := params.AddInterface("reply_markup", markup); err != nil {
			return tgbotapi.Message{}, fmt.Errorf("encode reply markup: %w", err)
		}
	}

	resp, err := c.Bot.MakeRequest("sendMessage", params)
	if err != nil {
		return tgbotapi.Message{}, fmt.Errorf("send message: %w", err)
	}
	var sent tgbotapi.Message
	if err := json.Unmarshal(resp.Result, &sent); err != nil {
		return tgbotapi.Message{}, fmt.Errorf("decode sent message: %w", err)
	}
	return sent, nil
}

// SendTyping shows the "typing..." indicator. Failures are logged, not
// returned; the indicator is cosmetic.
func (c *Client) SendTyping(chatID int64, threadID int) {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params["action"] = "typing"
	params.AddNonZero("message_thread_id", threadID)
	if _, err := c.Bot.MakeRequest("sendChatAction", params); err != nil {
		log.Printf("[telegram] send typing action: %v", err)
	}
}

// PhotoURL resolves a photo file id to a direct download URL. The URL
// embeds the bot token, so it must only ever be handed to the LLM
// provider, never echoed into a chat.
func (c *Client) PhotoURL(fileID string) (string, error) {
	file, err := c.Bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("get telegram file: %w", err)
	}
	return file.Link(c.token), nil
}

// EscapeHTML escapes text for Telegram's HTML parse mode.
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
