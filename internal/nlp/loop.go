package nlp

import (
	"context"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"github.com/f0rthsp4ce/botka/internal/db"
	"github.com/f0rthsp4ce/botka/internal/metrics"
	"github.com/f0rthsp4ce/botka/internal/telegram"
)

// Debug captures how a message was routed, for history annotations and
// the debug command.
type Debug struct {
	Classification Classification
	UsedModel      *string
}

// maxCompletionTokens stays above 2048; some providers misbehave below it.
const maxCompletionTokens = 2100

// processWithFunctionCalling runs the classify-then-converse pipeline.
// The returned ignore flag is set when the classifier voted to stay out.
func (e *Engine) processWithFunctionCalling(ctx context.Context, msg *telegram.Message, history []db.HistoryEntry, memories []db.Memory) (string, bool, Debug, error) {
	if e.cfg.Services.OpenAI.Disable {
		return "", false, Debug{}, fmt.Errorf("OpenAI integration is disabled in config")
	}

	messages, turnText, err := e.buildMessages(msg, history, memories)
	if err != nil {
		return "", false, Debug{}, err
	}

	classification, err := e.ClassifyRequest(ctx, turnText, history)
	if err != nil {
		// Classifier trouble must not drop the message.
		log.Printf("[nlp] classification failed, defaulting to HANDLE 1: %v", err)
		classification = Classification{Level: 1}
	}
	if classification.Ignored() {
		return "", true, Debug{Classification: classification}, nil
	}

	models := e.cfg.NLP.Models
	if classification.Level > len(models) {
		return "", false, Debug{}, fmt.Errorf("no model found for classification: %d", classification.Level)
	}
	model := models[classification.Level-1]
	debug := Debug{Classification: classification, UsedModel: &model}

	e.tg.SendTyping(msg.Chat.ID, msg.MessageThreadID)

	tools := chatCompletionTools()
	current := messages
	var finalResponse string
	var lastContent string
	done := false

	for iteration := 0; iteration < e.cfg.NLP.MaxToolIterations; iteration++ {
		resp, err := e.ai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       model,
			Messages:    current,
			Tools:       tools,
			ToolChoice:  "auto",
			MaxTokens:   maxCompletionTokens,
			Temperature: 0.7,
		})
		metrics.UpdateService("openai", err == nil)
		if err != nil {
			return "", false, debug, fmt.Errorf("chat completion: %w", err)
		}
		metrics.CountUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

		if len(resp.Choices) == 0 {
			return "", false, debug, fmt.Errorf("no choices in LLM response")
		}
		choice := resp.Choices[0].Message

		current = append(current, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   choice.Content,
			ToolCalls: choice.ToolCalls,
		})
		if choice.Content != "" {
			lastContent = choice.Content
		}

		if len(choice.ToolCalls) == 0 {
			finalResponse = choice.Content
			done = true
			break
		}

		for _, call := range choice.ToolCalls {
			result := e.callTool(ctx, msg, call.Function.Name, call.Function.Arguments)
			current = append(current, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	if !done {
		// The model never stopped calling tools. Answer with whatever it
		// said last rather than going silent.
		log.Printf("[nlp] tool loop exceeded %d iterations", e.cfg.NLP.MaxToolIterations)
		finalResponse = lastContent
		if finalResponse == "" {
			finalResponse = "Function loop exceeded, please try rephrasing your request."
		}
	}

	return finalResponse, false, debug, nil
}
