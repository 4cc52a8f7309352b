package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/f0rthsp4ce/botka/internal/db"
	"github.com/f0rthsp4ce/botka/internal/metrics"
)

// rawSchema lets a hand-written JSON schema pass through the request
// encoder unchanged.
type rawSchema json.RawMessage

func (r rawSchema) MarshalJSON() ([]byte, error) { return json.RawMessage(r), nil }

var classificationSchema = rawSchema(`{
	"type": "object",
	"properties": {
		"classification": {
			"type": ["integer", "null"],
			"description": "Classification result: 1, 2, 3 or null"
		}
	},
	"required": ["classification"],
	"additionalProperties": false
}`)

var interventionSchema = rawSchema(`{
	"type": "object",
	"properties": {
		"intervene": {
			"type": "boolean",
			"description": "Should the bot intervene?"
		}
	},
	"required": ["intervene"],
	"additionalProperties": false
}`)

// classifyContext prepends up to 3 prior history entries to the current
// message text. History arrives newest first with the current message at
// index 0.
func classifyContext(text string, history []db.HistoryEntry) string {
	var prior []string
	n := len(history)
	for i := 1; i < n && i <= 3; i++ {
		entry := history[i]
		sender := "User"
		if entry.FromUserID == nil {
			sender = "Bot"
		}
		// Prepend to restore chronological order.
		prior = append([]string{fmt.Sprintf("%s: %s", sender, entry.Text)}, prior...)
	}
	if len(prior) == 0 {
		return text
	}
	return fmt.Sprintf("Previous messages:\n%s\n\nCurrent message: %s",
		strings.Join(prior, "\n"), text)
}

func (e *Engine) classifyCompletion(ctx context.Context, system, content string, schema rawSchema) (string, error) {
	model := e.cfg.NLP.ClassificationModel
	if model == "" {
		return "", fmt.Errorf("classification model is not set in config")
	}

	resp, err := e.ai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        "ClassificationResult",
				Description: "Classification result",
				Schema:      schema,
				Strict:      true,
			},
		},
		MaxTokens:   20,
		Temperature: 0.2,
	})
	metrics.UpdateService("openai", err == nil)
	if err != nil {
		return "", fmt.Errorf("classification completion: %w", err)
	}
	metrics.CountUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}
	out := resp.Choices[0].Message.Content
	if out == "" {
		return "", fmt.Errorf("empty response from classification")
	}
	return out, nil
}

// ClassifyRequest assigns a complexity tier to the message. Callers treat
// any error as HANDLE 1 so cheap traffic never stalls on the classifier.
func (e *Engine) ClassifyRequest(ctx context.Context, text string, history []db.HistoryEntry) (Classification, error) {
	content := classifyContext(text, history)
	log.Printf("[nlp] classifying request: %s", content)

	out, err := e.classifyCompletion(ctx, classificationPrompt, content, classificationSchema)
	if err != nil {
		return Classification{}, err
	}
	log.Printf("[nlp] classification result: %s", out)

	var parsed struct {
		Classification *int `json:"classification"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return Classification{}, fmt.Errorf("parse classification response: %w", err)
	}

	if parsed.Classification == nil {
		if e.cfg.NLP.ClassifyNullAsHandle1 {
			return Classification{Level: 1}, nil
		}
		return Classification{}, nil
	}
	switch *parsed.Classification {
	case 1, 2, 3:
		return Classification{Level: *parsed.Classification}, nil
	default:
		return Classification{Level: 2}, nil
	}
}

// classifyIntervention asks whether the bot should join unprompted.
func (e *Engine) classifyIntervention(ctx context.Context, text string, history []db.HistoryEntry) (bool, error) {
	content := classifyContext(text, history)
	out, err := e.classifyCompletion(ctx, randomClassificationPrompt, content, interventionSchema)
	if err != nil {
		return false, err
	}

	var parsed struct {
		Intervene bool `json:"intervene"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return false, fmt.Errorf("parse intervention response: %w", err)
	}
	return parsed.Intervene, nil
}
