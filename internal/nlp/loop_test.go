package nlp

import (
	"context"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

func TestProcessPlainAnswer(t *testing.T) {
	ai := &fakeAI{responses: []openai.ChatCompletionResponse{
		classificationResponse("2"),
		textResponse("hello from the bot"),
	}}
	e, _, _ := newTestEngine(t, ai)

	response, ignored, debug, err := e.processWithFunctionCalling(context.Background(), groupMessage(1, "hey botka"), nil, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if ignored {
		t.Fatal("HANDLE 2 message must not be ignored")
	}
	if response != "hello from the bot" {
		t.Fatalf("response = %q", response)
	}
	if debug.Classification.Level != 2 {
		t.Fatalf("debug classification = %s", debug.Classification)
	}
	if debug.UsedModel == nil || *debug.UsedModel != "mid-model" {
		t.Fatalf("debug model = %v, want mid-model", debug.UsedModel)
	}
	// Second request is the chat completion; it must carry the tool set.
	if len(ai.requests) != 2 {
		t.Fatalf("got %d AI requests, want 2", len(ai.requests))
	}
	if len(ai.requests[1].Tools) == 0 {
		t.Fatal("chat completion must offer tools")
	}
	if ai.requests[1].Model != "mid-model" {
		t.Fatalf("chat model = %q, want mid-model", ai.requests[1].Model)
	}
}

func TestProcessIgnoredMessage(t *testing.T) {
	ai := &fakeAI{responses: []openai.ChatCompletionResponse{classificationResponse("null")}}
	e, _, _ := newTestEngine(t, ai)

	_, ignored, debug, err := e.processWithFunctionCalling(context.Background(), groupMessage(1, "lol"), nil, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !ignored {
		t.Fatal("null classification must ignore the message")
	}
	if debug.Classification.String() != "IGNORE" {
		t.Fatalf("debug classification = %s", debug.Classification)
	}
	if len(ai.requests) != 1 {
		t.Fatalf("ignored message must stop after classification, got %d requests", len(ai.requests))
	}
}

func TestProcessClassifierFailureDefaultsToCheapModel(t *testing.T) {
	ai := &fakeAI{responses: []openai.ChatCompletionResponse{
		textResponse("this is not the JSON you are looking for"),
		textResponse("still answered"),
	}}
	e, _, _ := newTestEngine(t, ai)

	response, ignored, debug, err := e.processWithFunctionCalling(context.Background(), groupMessage(1, "hey botka"), nil, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if ignored || response != "still answered" {
		t.Fatalf("response = %q, ignored = %v", response, ignored)
	}
	if debug.UsedModel == nil || *debug.UsedModel != "cheap-model" {
		t.Fatalf("classifier failure must fall back to the first model, got %v", debug.UsedModel)
	}
}

func TestProcessToolRoundTrip(t *testing.T) {
	ai := &fakeAI{responses: []openai.ChatCompletionResponse{
		classificationResponse("1"),
		toolCallResponse("call_1", "needs", "{}"),
		textResponse("the list is empty, nothing to buy"),
	}}
	e, _, store := newTestEngine(t, ai)
	if err := store.AddResident(100, time.Now()); err != nil {
		t.Fatalf("add resident: %v", err)
	}

	response, _, _, err := e.processWithFunctionCalling(context.Background(), groupMessage(1, "botka what do we need?"), nil, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if response != "the list is empty, nothing to buy" {
		t.Fatalf("response = %q", response)
	}

	// The third request must include the assistant tool call and its result.
	if len(ai.requests) != 3 {
		t.Fatalf("got %d AI requests, want 3", len(ai.requests))
	}
	msgs := ai.requests[2].Messages
	last, prev := msgs[len(msgs)-1], msgs[len(msgs)-2]
	if prev.Role != openai.ChatMessageRoleAssistant || len(prev.ToolCalls) != 1 {
		t.Fatalf("second-to-last message must be the assistant tool call, got role %s", prev.Role)
	}
	if last.Role != openai.ChatMessageRoleTool || last.ToolCallID != "call_1" {
		t.Fatalf("last message must be the tool result for call_1, got role %s id %s", last.Role, last.ToolCallID)
	}
	if last.Content != "The shopping list is empty." {
		t.Fatalf("tool result = %q", last.Content)
	}
}

func TestProcessUnknownTool(t *testing.T) {
	ai := &fakeAI{responses: []openai.ChatCompletionResponse{
		classificationResponse("1"),
		toolCallResponse("call_1", "launch_rocket", "{}"),
		textResponse("sorry, no rockets"),
	}}
	e, _, _ := newTestEngine(t, ai)

	if _, _, _, err := e.processWithFunctionCalling(context.Background(), groupMessage(1, "botka launch"), nil, nil); err != nil {
		t.Fatalf("process: %v", err)
	}

	msgs := ai.requests[2].Messages
	last := msgs[len(msgs)-1]
	if last.Content != "Error: unknown function 'launch_rocket'" {
		t.Fatalf("unknown tool result = %q", last.Content)
	}
}

func TestProcessIterationCapFixedReply(t *testing.T) {
	ai := &fakeAI{responses: []openai.ChatCompletionResponse{
		classificationResponse("1"),
		toolCallResponse("call_1", "needs", "{}"),
		toolCallResponse("call_2", "needs", "{}"),
	}}
	e, _, _ := newTestEngine(t, ai)
	e.cfg.NLP.MaxToolIterations = 2

	response, ignored, _, err := e.processWithFunctionCalling(context.Background(), groupMessage(1, "botka loop forever"), nil, nil)
	if err != nil {
		t.Fatalf("iteration overflow must not error: %v", err)
	}
	if ignored {
		t.Fatal("iteration overflow must still reply")
	}
	if response != "Function loop exceeded, please try rephrasing your request." {
		t.Fatalf("overflow reply = %q", response)
	}
}

func TestProcessIterationCapKeepsLastAssistantText(t *testing.T) {
	chatty := toolCallResponse("call_1", "needs", "{}")
	chatty.Choices[0].Message.Content = "checking the list..."
	ai := &fakeAI{responses: []openai.ChatCompletionResponse{
		classificationResponse("1"),
		chatty,
		toolCallResponse("call_2", "needs", "{}"),
	}}
	e, _, _ := newTestEngine(t, ai)
	e.cfg.NLP.MaxToolIterations = 2

	response, _, _, err := e.processWithFunctionCalling(context.Background(), groupMessage(1, "botka loop forever"), nil, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if response != "checking the list..." {
		t.Fatalf("overflow must keep the last assistant text, got %q", response)
	}
}

func TestProcessNoModelForTier(t *testing.T) {
	ai := &fakeAI{responses: []openai.ChatCompletionResponse{classificationResponse("3")}}
	e, _, _ := newTestEngine(t, ai)
	e.cfg.NLP.Models = []string{"cheap-model"}

	_, _, _, err := e.processWithFunctionCalling(context.Background(), groupMessage(1, "botka hard question"), nil, nil)
	if err == nil || !strings.Contains(err.Error(), "no model found") {
		t.Fatalf("expected missing model error, got %v", err)
	}
}

func TestProcessOpenAIDisabled(t *testing.T) {
	e, _, _ := newTestEngine(t, &fakeAI{})
	e.cfg.Services.OpenAI.Disable = true

	if _, _, _, err := e.processWithFunctionCalling(context.Background(), groupMessage(1, "hey"), nil, nil); err == nil {
		t.Fatal("expected an error with OpenAI disabled")
	}
}
