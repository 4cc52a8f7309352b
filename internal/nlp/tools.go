package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"github.com/f0rthsp4ce/botka/internal/db"
	"github.com/f0rthsp4ce/botka/internal/needs"
	"github.com/f0rthsp4ce/botka/internal/telegram"
)

func toolDef(name, description, parameters string) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Strict:      true,
			Parameters:  json.RawMessage(parameters),
		},
	}
}

// chatCompletionTools lists every tool the model may call.
func chatCompletionTools() []openai.Tool {
	return []openai.Tool{
		toolDef("save_memory", "Save a new memory for future reference", `{
			"type": "object",
			"properties": {
				"memory_text": {
					"type": "string",
					"description": "The text content of the memory to save"
				},
				"duration_hours": {
					"type": ["integer", "null"],
					"description": "How long the memory should be kept active in hours, or null for persistent memory"
				},
				"chat_specific": {
					"type": "boolean",
					"description": "If true, memory is specific to the current chat"
				},
				"thread_specific": {
					"type": "boolean",
					"description": "If true, memory is specific to the current thread within the chat"
				},
				"user_specific": {
					"type": "boolean",
					"description": "If true, memory is specific to the current user"
				}
			},
			"required": ["memory_text", "duration_hours", "chat_specific", "thread_specific", "user_specific"],
			"additionalProperties": false
		}`),
		toolDef("remove_memory", "Remove a memory by its ID", `{
			"type": "object",
			"properties": {
				"memory_id": {
					"type": "integer",
					"description": "The ID of the memory to remove"
				}
			},
			"required": ["memory_id"],
			"additionalProperties": false
		}`),
		toolDef("status", "Show who is currently in the hackerspace", `{
			"type": "object",
			"properties": {},
			"additionalProperties": false
		}`),
		toolDef("needs", "Show the shopping list", `{
			"type": "object",
			"properties": {},
			"additionalProperties": false
		}`),
		toolDef("add_need", "Add a single item to the shopping list", `{
			"type": "object",
			"properties": {
				"item": {
					"type": "string",
					"description": "The item to add"
				}
			},
			"required": ["item"],
			"additionalProperties": false
		}`),
		toolDef("open_door", "Request opening of the hackerspace main door (residents only, requires confirmation)", `{
			"type": "object",
			"properties": {},
			"additionalProperties": false
		}`),
		toolDef("search", "Search for information", `{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"description": "The search query"
				}
			},
			"required": ["query"],
			"additionalProperties": false
		}`),
	}
}

// callTool dispatches one tool call. Tool failures come back as text so
// the model can relay them; only the result string reaches the chat.
func (e *Engine) callTool(ctx context.Context, msg *telegram.Message, name, arguments string) string {
	switch name {
	case "save_memory":
		return e.toolSaveMemory(msg, arguments)
	case "remove_memory":
		return e.toolRemoveMemory(msg, arguments)
	case "status":
		if e.space == nil {
			return "Presence tracking is not configured."
		}
		return e.space.StatusReport(ctx)
	case "needs":
		return e.toolNeeds(msg)
	case "add_need":
		return e.toolAddNeed(msg, arguments)
	case "open_door":
		return e.toolOpenDoor(msg)
	case "search":
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return fmt.Sprintf("Error parsing search args: %v", err)
		}
		out, err := e.search(ctx, args.Query)
		if err != nil {
			log.Printf("[nlp] search: %v", err)
			return fmt.Sprintf("Error searching for '%s': %v", args.Query, err)
		}
		return out
	default:
		log.Printf("[nlp] unknown function call: %s", name)
		return fmt.Sprintf("Error: unknown function '%s'", name)
	}
}

func (e *Engine) toolSaveMemory(msg *telegram.Message, arguments string) string {
	var args struct {
		MemoryText     string `json:"memory_text"`
		DurationHours  *int64 `json:"duration_hours"`
		ChatSpecific   bool   `json:"chat_specific"`
		ThreadSpecific bool   `json:"thread_specific"`
		UserSpecific   bool   `json:"user_specific"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return fmt.Sprintf("Error saving memory '%s': %v", arguments, err)
	}
	if msg.From == nil {
		return "Error saving memory: unknown sender"
	}

	_, err := e.store.SaveMemory(db.SaveMemoryParams{
		Text:           args.MemoryText,
		DurationHours:  args.DurationHours,
		ChatSpecific:   args.ChatSpecific,
		ThreadSpecific: args.ThreadSpecific,
		UserSpecific:   args.UserSpecific,
		ChatID:         msg.Chat.ID,
		ThreadID:       int64(msg.MessageThreadID),
		UserID:         msg.From.ID,
	}, e.cfg.NLP.MemoryLimit, nowFunc())
	if err != nil {
		log.Printf("[nlp] error saving memory: %v", err)
		return fmt.Sprintf("Error saving memory '%s': %v", arguments, err)
	}
	return "Memory saved successfully."
}

func (e *Engine) toolRemoveMemory(msg *telegram.Message, arguments string) string {
	var args struct {
		MemoryID int64 `json:"memory_id"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return fmt.Sprintf("Error parsing remove_memory args: %v", err)
	}
	if msg.From == nil {
		return "Error removing memory: unknown sender"
	}
	if err := e.store.RemoveMemory(args.MemoryID, msg.From.ID); err != nil {
		log.Printf("[nlp] error removing memory: %v", err)
		return fmt.Sprintf("Error removing memory with ID %d: %v", args.MemoryID, err)
	}
	return "Memory removed successfully."
}

// requireResident gates a tool on residency. It returns a non-empty
// refusal string when the caller may not proceed.
func (e *Engine) requireResident(msg *telegram.Message, refusal string) string {
	if msg.From == nil {
		return "Error: unknown sender"
	}
	resident, err := e.store.IsResident(msg.From.ID)
	if err != nil {
		log.Printf("[nlp] check residency: %v", err)
		return fmt.Sprintf("Error checking residency: %v", err)
	}
	if !resident {
		return refusal
	}
	return ""
}

func (e *Engine) toolNeeds(msg *telegram.Message) string {
	if refusal := e.requireResident(msg, "Non-resident users cannot use the needs command."); refusal != "" {
		return refusal
	}
	out, err := needs.List(e.store)
	if err != nil {
		log.Printf("[nlp] needs list: %v", err)
		return fmt.Sprintf("Error listing needed items: %v", err)
	}
	return out
}

func (e *Engine) toolAddNeed(msg *telegram.Message, arguments string) string {
	if refusal := e.requireResident(msg, "Non-resident users cannot add items to the shopping list."); refusal != "" {
		return refusal
	}
	var args struct {
		Item string `json:"item"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return fmt.Sprintf("Error parsing add_need args: %v", err)
	}
	out, err := needs.Add(e.store, args.Item, msg.From.ID, nowFunc())
	if err != nil {
		log.Printf("[nlp] add need: %v", err)
		return fmt.Sprintf("Error adding '%s' to the shopping list: %v", args.Item, err)
	}
	return out
}

func (e *Engine) toolOpenDoor(msg *telegram.Message) string {
	if e.butler == nil {
		return "Door opening is not configured."
	}
	if msg.From == nil {
		return "Error opening door: unknown sender"
	}
	out, err := e.butler.RequestOpen(e.tg, msg.Chat.ID, msg.MessageThreadID, msg.From.ID)
	if err != nil {
		if errors.Is(err, db.ErrForbidden) {
			return "Only residents can open the door."
		}
		log.Printf("[nlp] open door: %v", err)
		return fmt.Sprintf("Error opening door: %v", err)
	}
	return out
}
