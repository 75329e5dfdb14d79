package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/grocerybabu/voice-core/internal/agent/model"
)

//go:embed template/intent_prompt.txt
var intentSystemPrompt string

// IntentVars is the per-turn data the intent prompt is rendered with.
type IntentVars struct {
	Shop       model.ShopConfig
	Categories []string
	Cart       string
}

// RenderIntent renders the system prompt followed by the conversation via the
// Eino prompt component, so prompt callbacks fire for every turn.
func RenderIntent(ctx context.Context, vars IntentVars, history []*schema.Message) ([]*schema.Message, error) {
	categories := strings.Join(vars.Categories, ", ")
	if categories == "" {
		categories = "none loaded"
	}
	cart := vars.Cart
	if cart == "" {
		cart = "empty"
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(intentSystemPrompt),
		schema.MessagesPlaceholder("history", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"BusinessName":  vars.Shop.BusinessName,
		"BusinessType":  vars.Shop.BusinessType,
		"Currency":      vars.Shop.Currency,
		"Categories":    categories,
		"Cart":          cart,
		"SearchAction":  model.ActionSearchProducts,
		"AddAction":     model.ActionAddToCart,
		"RemoveAction":  model.ActionRemoveFromCart,
		"SummaryAction": model.ActionGetCartSummary,
		"OrderAction":   model.ActionPlaceOrder,
		"history":       history,
	})
	if err != nil {
		return nil, fmt.Errorf("intent prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return nil, fmt.Errorf("intent prompt render: empty result")
	}
	return msgs, nil
}
