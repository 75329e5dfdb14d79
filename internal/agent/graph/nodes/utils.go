package nodes

import (
	"strings"

	"github.com/grocerybabu/voice-core/internal/agent/model"
)

// Node keys of the intent graph.
const (
	NodeInputConverter  = "InputConverter"
	NodeIntentChatModel = "IntentChatModel"
	NodeActionExecutor  = "ActionExecutor"
	NodeActionReply     = "ActionReply"
	NodeReply           = "Reply"
)

// Extra keys set on the graph's final message.
const (
	ExtraActions      = "actions"
	ExtraTotalCostUSD = "usage_cost_total_usd"
)

// FallbackReply is spoken when the model produced neither an action nor text.
const FallbackReply = "I'm sorry, I didn't understand that. Could you please repeat?"

// ===== Small helpers to keep handlers simple/readable =====

// joinTexts concatenates the spoken texts of the dispatched actions.
func joinTexts(rs []model.ActionResponse) string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		if t := strings.TrimSpace(r.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func categoryNames(counts []model.CategoryCount) []string {
	out := make([]string, 0, len(counts))
	for _, c := range counts {
		out = append(out, c.Category)
	}
	return out
}
