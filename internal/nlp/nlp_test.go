package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	openai "github.com/sashabaranov/go-openai"

	"github.com/f0rthsp4ce/botka/internal/config"
	"github.com/f0rthsp4ce/botka/internal/db"
	"github.com/f0rthsp4ce/botka/internal/telegram"
)

// fakeAI replays canned completion responses and records requests.
type fakeAI struct {
	responses []openai.ChatCompletionResponse
	requests  []openai.ChatCompletionRequest
	err       error
}

func (f *fakeAI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if len(f.responses) == 0 {
		return openai.ChatCompletionResponse{}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

func toolCallResponse(id, name, arguments string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   id,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      name,
						Arguments: arguments,
					},
				}},
			}},
		},
	}
}

// apiCall is one recorded bot API invocation.
type apiCall struct {
	endpoint string
	params   tgbotapi.Params
}

// fakeBot implements telegram.Bot in memory.
type fakeBot struct {
	calls  []apiCall
	nextID int
}

func (f *fakeBot) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "botka_bot", IsBot: true}
}

func (f *fakeBot) GetFile(tgbotapi.FileConfig) (tgbotapi.File, error) {
	return tgbotapi.File{FilePath: "photos/file_1.jpg"}, nil
}

func (f *fakeBot) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	f.calls = append(f.calls, apiCall{endpoint: endpoint, params: params})
	switch endpoint {
	case "sendMessage":
		f.nextID++
		result, _ := json.Marshal(map[string]any{"message_id": f.nextID})
		return &tgbotapi.APIResponse{Ok: true, Result: result}, nil
	default:
		return &tgbotapi.APIResponse{Ok: true, Result: json.RawMessage("[]")}, nil
	}
}

// sentMessages returns the text payloads of all sendMessage calls.
func (f *fakeBot) sentMessages() []apiCall {
	var out []apiCall
	for _, c := range f.calls {
		if c.endpoint == "sendMessage" {
			out = append(out, c)
		}
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Telegram: config.TelegramConfig{Token: "42:secret"},
		NLP: config.NLPConfig{
			Enabled:             true,
			MaxHistory:          100,
			Models:              []string{"cheap-model", "mid-model", "big-model"},
			SearchModel:         "search-model",
			ClassificationModel: "classify-model",
			TriggerWords:        []string{"botka"},
			MemoryLimit:         168,
			MaxToolIterations:   6,
		},
	}
}

func newTestEngine(t *testing.T, ai *fakeAI) (*Engine, *fakeBot, *db.DB) {
	t.Helper()

	store, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	bot := &fakeBot{}
	tg, err := telegram.NewClient("42:secret", func(string, *http.Client) (telegram.Bot, error) {
		return bot, nil
	})
	if err != nil {
		t.Fatalf("new telegram client: %v", err)
	}

	return NewEngine(testConfig(), store, tg, ai, nil, nil), bot, store
}

func groupMessage(messageID int, text string) *telegram.Message {
	return &telegram.Message{Message: tgbotapi.Message{
		MessageID: messageID,
		Chat:      &tgbotapi.Chat{ID: 10, Type: "supergroup"},
		From:      &tgbotapi.User{ID: 100, UserName: "alice", FirstName: "Alice"},
		Text:      text,
	}}
}

func privateMessage(messageID int, text string) *telegram.Message {
	return &telegram.Message{Message: tgbotapi.Message{
		MessageID: messageID,
		Chat:      &tgbotapi.Chat{ID: 100, Type: "private"},
		From:      &tgbotapi.User{ID: 100, UserName: "alice", FirstName: "Alice"},
		Text:      text,
	}}
}

func classificationResponse(value string) openai.ChatCompletionResponse {
	return textResponse(fmt.Sprintf(`{"classification": %s}`, value))
}
