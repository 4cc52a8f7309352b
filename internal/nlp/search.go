package nlp

import (
	"context"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"github.com/f0rthsp4ce/botka/internal/metrics"
)

// search runs the query through the dedicated search model.
func (e *Engine) search(ctx context.Context, query string) (string, error) {
	log.Printf("[nlp] searching for: %s", query)

	resp, err := e.ai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.cfg.NLP.SearchModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: searchPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		MaxTokens:   1500,
		Temperature: 0.2,
	})
	metrics.UpdateService("openai", err == nil)
	if err != nil {
		return "", fmt.Errorf("search completion: %w", err)
	}
	metrics.CountUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty response from search")
	}
	log.Printf("[nlp] search result: %s", content)
	return content, nil
}
