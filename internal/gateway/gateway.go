// Package gateway wires the Telegram update stream to the NLP pipeline and
// runs the background jobs: presence refresh, history and memory retention,
// and the metrics endpoint.
package gateway

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	rcron "github.com/robfig/cron/v3"

	"github.com/f0rthsp4ce/botka/internal/butler"
	"github.com/f0rthsp4ce/botka/internal/config"
	"github.com/f0rthsp4ce/botka/internal/db"
	"github.com/f0rthsp4ce/botka/internal/metrics"
	"github.com/f0rthsp4ce/botka/internal/nlp"
	"github.com/f0rthsp4ce/botka/internal/space"
	"github.com/f0rthsp4ce/botka/internal/telegram"
)

const spaceRefreshInterval = 2 * time.Minute

type Gateway struct {
	cfg    *config.Config
	store  *db.DB
	tg     *telegram.Client
	engine *nlp.Engine
	space  *space.Service
	butler *butler.Service
	cron   *rcron.Cron

	signalChan chan os.Signal // for testing
}

// Options for creating a Gateway.
type Options struct {
	BotFactory telegram.BotFactory
	AI         nlp.ChatCompleter
	SignalChan chan os.Signal
}

// New creates a Gateway with default options.
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with injectable dependencies for testing.
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{cfg: cfg, signalChan: opts.SignalChan}

	store, err := db.Open(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	g.store = store

	factory := opts.BotFactory
	if factory == nil {
		factory = telegram.DefaultBotFactory
	}
	tg, err := telegram.NewClient(cfg.Telegram.Token, factory)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	g.tg = tg

	if cfg.Services.MikroTik != nil {
		g.space = space.NewService(space.NewRouterClient(*cfg.Services.MikroTik), store)
	}
	g.butler = butler.NewService(cfg.Services.Butler, store)

	ai := opts.AI
	if ai == nil {
		ai = nlp.NewOpenAIClient(cfg.Services.OpenAI)
	}
	g.engine = nlp.NewEngine(cfg, store, tg, ai, g.space, g.butler)

	g.cron = rcron.New()
	return g, nil
}

// Run starts everything and blocks until SIGINT/SIGTERM or ctx cancellation.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := g.scheduleRetention(); err != nil {
		return fmt.Errorf("schedule retention jobs: %w", err)
	}
	g.cron.Start()
	defer g.cron.Stop()

	if g.space != nil {
		go g.refreshLoop(ctx)
	}
	go func() {
		if err := metrics.Serve(g.cfg.Web.ListenAddr); err != nil {
			log.Printf("[gateway] metrics server: %v", err)
		}
	}()
	go g.processLoop(ctx)

	log.Printf("[gateway] running as @%s", g.tg.Username())

	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Printf("[gateway] shutting down...")
	return g.store.Close()
}

// scheduleRetention registers the hourly cleanup of expired history rows and
// long-expired memories.
func (g *Gateway) scheduleRetention() error {
	_, err := g.cron.AddFunc("@hourly", func() {
		if n, err := g.store.PruneHistory(time.Now()); err != nil {
			log.Printf("[gateway] prune history: %v", err)
		} else if n > 0 {
			log.Printf("[gateway] pruned %d history rows", n)
		}
		if n, err := g.store.PruneMemories(time.Now()); err != nil {
			log.Printf("[gateway] prune memories: %v", err)
		} else if n > 0 {
			log.Printf("[gateway] pruned %d expired memories", n)
		}
	})
	return err
}

func (g *Gateway) refreshLoop(ctx context.Context) {
	refresh := func() {
		if err := g.space.Refresh(ctx); err != nil {
			log.Printf("[gateway] refresh occupancy: %v", err)
		}
	}
	refresh()
	ticker := time.NewTicker(spaceRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			refresh()
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) processLoop(ctx context.Context) {
	for update := range g.tg.Updates(ctx) {
		switch {
		case update.CallbackQuery != nil:
			// The confirm path does an HTTP round trip; keep it off the
			// update loop.
			cb := update.CallbackQuery
			go g.handleCallback(ctx, cb)
		case update.Message != nil:
			g.handleMessage(ctx, update.Message)
		}
	}
}

func (g *Gateway) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if butler.HandlesCallback(cb.Data) {
		g.butler.HandleCallback(ctx, g.tg, cb)
	}
}

func (g *Gateway) handleMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From != nil {
		u := db.User{ID: msg.From.ID, FirstName: msg.From.FirstName}
		if msg.From.UserName != "" {
			name := msg.From.UserName
			u.Username = &name
		}
		if err := g.store.UpsertUser(u); err != nil {
			log.Printf("[gateway] upsert user: %v", err)
		}
	}

	if g.handleCommand(msg) {
		return
	}

	if err := g.engine.StoreInbound(msg); err != nil {
		log.Printf("[gateway] store inbound message: %v", err)
	}

	// The random filter consults the classifier, so the whole
	// accept-then-handle sequence runs off the update loop. Each message
	// gets its own goroutine; a slow LLM round trip must not delay the
	// next update.
	go func() {
		if !g.engine.ShouldProcess(msg, g.tg.Username()) &&
			!g.engine.ShouldProcessRandom(ctx, msg) {
			return
		}
		if err := g.engine.HandleMessage(ctx, msg); err != nil {
			log.Printf("[gateway] handle message: %v", err)
		}
	}()
}

// handleCommand serves the bot commands that bypass the NLP pipeline.
// It reports whether the message was consumed.
func (g *Gateway) handleCommand(msg *telegram.Message) bool {
	text := msg.Text
	if !strings.HasPrefix(text, "/") {
		return false
	}
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")

	switch cmd {
	case "/nlp_debug_info":
		if msg.ReplyToMessage == nil {
			g.reply(msg, "Reply to a message to get its debug info.")
			return true
		}
		g.reply(msg, g.engine.DebugInfo(msg.Chat.ID, msg.ReplyToMessage.MessageID))
		return true
	}
	return false
}

func (g *Gateway) reply(msg *telegram.Message, text string) {
	if _, err := g.tg.SendHTML(msg.Chat.ID, msg.MessageThreadID, msg.MessageID, telegram.EscapeHTML(text)); err != nil {
		log.Printf("[gateway] send reply: %v", err)
	}
}
