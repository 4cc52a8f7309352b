// Package nlp contains the bot's natural-language pipeline: deciding which
// messages to answer, classifying them into model tiers, assembling the
// conversation context, running the function-calling loop against the LLM
// and emitting the reply back into the chat.
package nlp

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/f0rthsp4ce/botka/internal/butler"
	"github.com/f0rthsp4ce/botka/internal/config"
	"github.com/f0rthsp4ce/botka/internal/db"
	"github.com/f0rthsp4ce/botka/internal/space"
	"github.com/f0rthsp4ce/botka/internal/telegram"
)

// nowFunc is replaced in tests that need a fixed clock.
var nowFunc = time.Now

// ChatCompleter is the slice of the OpenAI client the engine needs.
// *openai.Client implements it; tests inject fakes.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Classification is the verdict of the tiered classifier.
type Classification struct {
	// Level is 1..3 for handled messages, 0 for ignored ones.
	Level int
}

// Ignored reports whether the message should not be answered.
func (c Classification) Ignored() bool { return c.Level == 0 }

func (c Classification) String() string {
	if c.Ignored() {
		return "IGNORE"
	}
	return fmt.Sprintf("HANDLE %d", c.Level)
}

// Engine ties the pipeline together.
type Engine struct {
	cfg    *config.Config
	store  *db.DB
	tg     *telegram.Client
	ai     ChatCompleter
	space  *space.Service
	butler *butler.Service

	// roll returns a uniform float in [0, 100). Overridable in tests.
	roll func() float64
}

func NewEngine(cfg *config.Config, store *db.DB, tg *telegram.Client, ai ChatCompleter, spaceSvc *space.Service, butlerSvc *butler.Service) *Engine {
	return &Engine{
		cfg:    cfg,
		store:  store,
		tg:     tg,
		ai:     ai,
		space:  spaceSvc,
		butler: butlerSvc,
		roll:   func() float64 { return rand.Float64() * 100 },
	}
}

// NewOpenAIClient builds the OpenAI client from config.
func NewOpenAIClient(cfg config.OpenAIConfig) *openai.Client {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(c)
}
