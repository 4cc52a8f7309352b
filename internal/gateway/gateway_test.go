package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	openai "github.com/sashabaranov/go-openai"

	"github.com/f0rthsp4ce/botka/internal/config"
	"github.com/f0rthsp4ce/botka/internal/telegram"
)

type fakeBot struct {
	mu      sync.Mutex
	calls   []string
	updates []json.RawMessage // one getUpdates batch per element
	nextID  int
}

func (f *fakeBot) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "botka_bot", IsBot: true}
}

func (f *fakeBot) GetFile(tgbotapi.FileConfig) (tgbotapi.File, error) {
	return tgbotapi.File{}, nil
}

func (f *fakeBot) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) MakeRequest(endpoint string, _ tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpoint)
	switch endpoint {
	case "getUpdates":
		if len(f.updates) == 0 {
			time.Sleep(10 * time.Millisecond) // emulate long polling
			return &tgbotapi.APIResponse{Ok: true, Result: json.RawMessage("[]")}, nil
		}
		batch := f.updates[0]
		f.updates = f.updates[1:]
		return &tgbotapi.APIResponse{Ok: true, Result: batch}, nil
	case "sendMessage":
		f.nextID++
		result, _ := json.Marshal(map[string]any{"message_id": f.nextID})
		return &tgbotapi.APIResponse{Ok: true, Result: result}, nil
	default:
		return &tgbotapi.APIResponse{Ok: true, Result: json.RawMessage("[]")}, nil
	}
}

func (f *fakeBot) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == "sendMessage" {
			n++
		}
	}
	return n
}

type fakeAI struct{}

func (fakeAI) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: `{"classification": 1}`}},
		},
	}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Telegram: config.TelegramConfig{Token: "42:secret"},
		NLP: config.NLPConfig{
			Enabled:             true,
			MaxHistory:          100,
			Models:              []string{"a", "b", "c"},
			ClassificationModel: "classify",
			TriggerWords:        []string{"botka"},
			MemoryLimit:         168,
			MaxToolIterations:   6,
		},
		DB:  config.DBConfig{Path: filepath.Join(t.TempDir(), "test.db")},
		Web: config.WebConfig{ListenAddr: "127.0.0.1:0"},
	}
}

func newTestGateway(t *testing.T, bot *fakeBot, sig chan os.Signal) *Gateway {
	t.Helper()
	g, err := NewWithOptions(testConfig(t), Options{
		BotFactory: func(string, *http.Client) (telegram.Bot, error) { return bot, nil },
		AI:         fakeAI{},
		SignalChan: sig,
	})
	if err != nil {
		t.Fatalf("create gateway: %v", err)
	}
	return g
}

func TestHandleMessageStoresUserAndHistory(t *testing.T) {
	bot := &fakeBot{}
	g := newTestGateway(t, bot, nil)
	defer g.store.Close()

	msg := &telegram.Message{Message: tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: 10, Type: "supergroup"},
		From:      &tgbotapi.User{ID: 100, UserName: "alice", FirstName: "Alice"},
		Text:      "nothing for the bot here",
	}}
	g.handleMessage(context.Background(), msg)

	names, err := g.store.DisplayNames([]int64{100})
	if err != nil {
		t.Fatalf("display names: %v", err)
	}
	if names[100] != "@alice" {
		t.Fatalf("user was not upserted, got %q", names[100])
	}

	history, err := g.store.History(10, 0, time.Now(), 100)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Text != "nothing for the bot here" {
		t.Fatalf("inbound message was not stored: %+v", history)
	}
	if bot.sentCount() != 0 {
		t.Fatal("a message without a trigger must not produce a reply")
	}
}

func TestDebugCommandNeedsReply(t *testing.T) {
	bot := &fakeBot{}
	g := newTestGateway(t, bot, nil)
	defer g.store.Close()

	msg := &telegram.Message{Message: tgbotapi.Message{
		MessageID: 2,
		Chat:      &tgbotapi.Chat{ID: 10, Type: "supergroup"},
		From:      &tgbotapi.User{ID: 100, FirstName: "Alice"},
		Text:      "/nlp_debug_info",
	}}
	if !g.handleCommand(msg) {
		t.Fatal("debug command must be consumed")
	}
	if bot.sentCount() != 1 {
		t.Fatalf("expected one reply, got %d", bot.sentCount())
	}

	history, err := g.store.History(10, 0, time.Now(), 100)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Fatal("commands must not enter chat history")
	}
}

func TestCommandNameParsing(t *testing.T) {
	bot := &fakeBot{}
	g := newTestGateway(t, bot, nil)
	defer g.store.Close()

	msg := &telegram.Message{Message: tgbotapi.Message{
		MessageID: 3,
		Chat:      &tgbotapi.Chat{ID: 10, Type: "supergroup"},
		From:      &tgbotapi.User{ID: 100, FirstName: "Alice"},
		Text:      "/nlp_debug_info@botka_bot extra words",
	}}
	if !g.handleCommand(msg) {
		t.Fatal("command with a bot suffix must be recognized")
	}
	if g.handleCommand(&telegram.Message{Message: tgbotapi.Message{Text: "/unknown"}}) {
		t.Fatal("unknown commands must not be consumed")
	}
}

// blockingAI parks every completion call until released, emulating a hung
// provider.
type blockingAI struct{ release chan struct{} }

func (b blockingAI) CreateChatCompletion(ctx context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return openai.ChatCompletionResponse{}, ctx.Err()
}

func TestSlowClassifierDoesNotBlockUpdateLoop(t *testing.T) {
	cfg := testConfig(t)
	cfg.NLP.RandomAnswerProbability = 100

	release := make(chan struct{})
	defer close(release)

	g, err := NewWithOptions(cfg, Options{
		BotFactory: func(string, *http.Client) (telegram.Bot, error) { return &fakeBot{}, nil },
		AI:         blockingAI{release: release},
	})
	if err != nil {
		t.Fatalf("create gateway: %v", err)
	}
	defer g.store.Close()

	msg := &telegram.Message{Message: tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: 10, Type: "supergroup"},
		From:      &tgbotapi.User{ID: 100, FirstName: "Alice"},
		Text:      "no trigger word here",
	}}

	done := make(chan struct{})
	go func() {
		g.handleMessage(context.Background(), msg)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleMessage blocked on the classifier call")
	}
}

func TestRunShutsDownOnSignal(t *testing.T) {
	bot := &fakeBot{}
	sig := make(chan os.Signal, 1)
	g := newTestGateway(t, bot, sig)

	done := make(chan error, 1)
	go func() { done <- g.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	sig <- syscall.SIGTERM

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("gateway did not shut down on signal")
	}
}
