package conversations

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/grocerybabu/voice-core/internal/agent/model"
)

// TurnLog is the per-call transcript the manager reads and writes.
type TurnLog interface {
	AppendTurn(ctx context.Context, id string, role model.Role, text string) error
	RecentContext(ctx context.Context, id string, window int) ([]model.Turn, error)
}

// CartReader exposes the caller's cart for the prompt.
type CartReader interface {
	Summarize(ctx context.Context, sessionID string) (model.CartSummary, error)
}

type MessagesManager struct {
	turns TurnLog
	carts CartReader
}

func NewMessagesManager(turns TurnLog, carts CartReader) *MessagesManager {
	return &MessagesManager{turns: turns, carts: carts}
}

// =========== Function for the intent model ===========

// ProcessCallerMessage records the caller's utterance and returns the
// conversation that precedes it, oldest first, followed by the utterance.
func (cm *MessagesManager) ProcessCallerMessage(ctx context.Context, conversationID string, query string) ([]*schema.Message, error) {
	history, err := cm.turns.RecentContext(ctx, conversationID, 0)
	if err != nil {
		return nil, err
	}
	if err := cm.turns.AppendTurn(ctx, conversationID, model.RoleCaller, query); err != nil {
		return nil, err
	}

	messages := toMessages(history)
	messages = append(messages, schema.UserMessage(query))
	return messages, nil
}

func (cm *MessagesManager) SaveResponse(ctx context.Context, conversationID string, content string) error {
	return cm.turns.AppendTurn(ctx, conversationID, model.RoleAssistant, content)
}

// CartContext describes the current cart in one line, "empty" when there is
// nothing in it.
func (cm *MessagesManager) CartContext(ctx context.Context, conversationID string, currency string) (string, error) {
	if cm.carts == nil {
		return "empty", nil
	}
	sum, err := cm.carts.Summarize(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if sum.Empty {
		return "empty", nil
	}
	parts := make([]string, 0, len(sum.Items))
	for _, l := range sum.Items {
		parts = append(parts, fmt.Sprintf("%d x %s", l.Quantity, l.Name))
	}
	return fmt.Sprintf("%s (total %s%s)", strings.Join(parts, ", "), currency, sum.Total.StringFixed(2)), nil
}

// ====================== Helper function ======================
func toMessages(turns []model.Turn) []*schema.Message {
	out := make([]*schema.Message, 0, len(turns)+1)
	for _, t := range turns {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		switch t.Role {
		case model.RoleCaller:
			out = append(out, schema.UserMessage(t.Text))
		case model.RoleAssistant:
			out = append(out, schema.AssistantMessage(t.Text, nil))
		}
	}
	return out
}
