// Package needs renders the shared shopping list for the bot's tools.
package needs

import (
	"fmt"
	"strings"
	"time"

	"github.com/f0rthsp4ce/botka/internal/db"
)

// List formats the open shopping list.
func List(store *db.DB) (string, error) {
	items, err := store.NeededItems()
	if err != nil {
		return "", fmt.Errorf("list needed items: %w", err)
	}
	if len(items) == 0 {
		return "The shopping list is empty.", nil
	}
	var b strings.Builder
	b.WriteString("Needed items:\n")
	for _, it := range items {
		fmt.Fprintf(&b, "- %s\n", it.Item)
	}
	return b.String(), nil
}

// Add appends one item to the shopping list on behalf of a user.
func Add(store *db.DB, item string, userID int64, now time.Time) (string, error) {
	item = strings.TrimSpace(item)
	if item == "" {
		return "", fmt.Errorf("item must not be empty")
	}
	if err := store.AddNeededItem(item, userID, now); err != nil {
		return "", fmt.Errorf("add needed item: %w", err)
	}
	return fmt.Sprintf("Added %q to the shopping list.", item), nil
}
