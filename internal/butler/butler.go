// Package butler implements the door-opening flow: a confirmation message
// with inline buttons, and the callback handling that talks to the butler
// service when a resident confirms.
package butler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/f0rthsp4ce/botka/internal/config"
	"github.com/f0rthsp4ce/botka/internal/db"
	"github.com/f0rthsp4ce/botka/internal/metrics"
	"github.com/f0rthsp4ce/botka/internal/telegram"
)

const (
	callbackConfirm = "butler:confirm_open"
	callbackCancel  = "butler:cancel_open"
)

// Service drives door-open confirmations.
type Service struct {
	cfg    *config.ButlerConfig
	store  *db.DB
	client *http.Client
}

func NewService(cfg *config.ButlerConfig, store *db.DB) *Service {
	return &Service{
		cfg:    cfg,
		store:  store,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// RequestOpen posts a confirmation message with confirm/cancel buttons.
// Only residents may request; the door itself opens later, from the
// confirm callback.
func (s *Service) RequestOpen(tg *telegram.Client, chatID int64, threadID int, userID int64) (string, error) {
	if s == nil || s.cfg == nil {
		return "Door opening is not configured.", nil
	}
	resident, err := s.store.IsResident(userID)
	if err != nil {
		return "", fmt.Errorf("check residency: %w", err)
	}
	if !resident {
		return "", fmt.Errorf("%w: only residents can open the door", db.ErrForbidden)
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", callbackConfirm),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", callbackCancel),
		),
	)
	text := "🚪 <b>Door Opening Request</b>\n\nDo you want to open the door? This action will be logged."
	if _, err := tg.SendKeyboard(chatID, threadID, text, keyboard); err != nil {
		return "", fmt.Errorf("send door confirmation: %w", err)
	}
	return "I've sent a confirmation request to open the door. Please confirm using the buttons.", nil
}

// HandlesCallback reports whether a callback query belongs to this module.
func HandlesCallback(data string) bool {
	return strings.HasPrefix(data, "butler:")
}

// HandleCallback processes confirm/cancel button presses.
func (s *Service) HandleCallback(ctx context.Context, tg *telegram.Client, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}

	answer := func(text string) {
		if _, err := tg.Bot.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
			log.Printf("[butler] answer callback: %v", err)
		}
	}
	edit := func(text string) {
		e := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, text)
		if _, err := tg.Bot.Request(e); err != nil {
			log.Printf("[butler] edit message: %v", err)
		}
	}

	switch cb.Data {
	case callbackCancel:
		edit("❌ Door opening cancelled.")
		answer("Door opening cancelled.")

	case callbackConfirm:
		resident, err := s.store.IsResident(cb.From.ID)
		if err != nil {
			log.Printf("[butler] check residency: %v", err)
			answer("Internal error. Please try again.")
			return
		}
		if !resident {
			answer("Only residents can open the door.")
			return
		}
		if s.cfg == nil {
			answer("Door opening is not configured.")
			return
		}

		log.Printf("[butler] opening door for %s (%d, @%s)", cb.From.FirstName, cb.From.ID, cb.From.UserName)
		if err := s.openDoor(ctx, cb.From); err != nil {
			log.Printf("[butler] failed to open door: %v", err)
			answer("Failed to open door. Please try again.")
			return
		}
		edit("✅ Door opened successfully!")
		answer("Door opened successfully!")

	default:
		answer("Unknown action.")
	}
}

// openDoor performs the actual request to the butler service. The outcome
// updates the butler service gauge.
func (s *Service) openDoor(ctx context.Context, from *tgbotapi.User) (err error) {
	defer func() { metrics.UpdateService("butler", err == nil) }()

	username := from.UserName
	if username == "" {
		username = from.FirstName
	}
	form := url.Values{"username": {username}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build door request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", fmt.Sprintf("ses=%s", s.cfg.Token))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("door request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("door request failed with status %d", resp.StatusCode)
	}
	return nil
}
