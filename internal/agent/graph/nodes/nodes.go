package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/grocerybabu/voice-core/internal/agent/graph/conversations"
	"github.com/grocerybabu/voice-core/internal/agent/graph/prompts"
	"github.com/grocerybabu/voice-core/internal/agent/graph/tools"
	"github.com/grocerybabu/voice-core/internal/agent/model"
	logx "github.com/grocerybabu/voice-core/pkg/logger"
)

// CategoryLister reports the categories the prompt advertises.
type CategoryLister interface {
	CategoryCounts() []model.CategoryCount
}

// NewInputConverterPreHandler creates the pre-handler for InputConverter node
func NewInputConverterPreHandler() func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		s.ConversationID = in.ConversationID
		s.Dispatched = nil
		s.ToolCallIDSeq = 0
		// Reset accumulated total cost for each new query
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode records the utterance and builds the intent model
// input: system prompt with cart and categories, recent turns, utterance.
func NewInputConverterNode(
	mm *conversations.MessagesManager,
	catalog CategoryLister,
	shop model.ShopConfig,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) ([]*schema.Message, error) {
		history, err := mm.ProcessCallerMessage(ctx, input.ConversationID, input.Query)
		if err != nil {
			return nil, fmt.Errorf("error getting conversation context: %w", err)
		}

		cart, err := mm.CartContext(ctx, input.ConversationID, shop.Currency)
		if err != nil {
			return nil, fmt.Errorf("error getting cart context: %w", err)
		}

		vars := prompts.IntentVars{Shop: shop, Cart: cart}
		if catalog != nil {
			vars.Categories = categoryNames(catalog.CategoryCounts())
		}
		messages, err := prompts.RenderIntent(ctx, vars, history)
		if err != nil {
			return nil, fmt.Errorf("render intent prompt: %w", err)
		}
		return messages, nil
	})
}

// NewIntentChatModelPostHandler computes usage cost and gives every tool call
// an id so tool results can be paired with their call.
func NewIntentChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			return out, nil
		}
		if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			pricing := model.ResolvePricing(modelName)
			inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
			if out.Extra == nil {
				out.Extra = map[string]any{}
			}
			out.Extra["usage_cost"] = map[string]any{
				"currency":          "USD",
				"model":             modelName,
				"prompt_tokens":     out.ResponseMeta.Usage.PromptTokens,
				"completion_tokens": out.ResponseMeta.Usage.CompletionTokens,
				"total_tokens":      out.ResponseMeta.Usage.TotalTokens,
				"input_cost":        inC,
				"output_cost":       outC,
				"total_cost":        totalC,
			}
			logx.Debug().
				Str("conversation_id", state.ConversationID).
				Str("node", NodeIntentChatModel).
				Str("model", modelName).
				Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
				Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
				Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
				Float64("input_cost_usd", inC).
				Float64("output_cost_usd", outC).
				Float64("total_cost_usd", totalC).
				Msg("LLM usage")

			state.TotalCostUSD += totalC
		}

		// Some providers omit tool call ids.
		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				state.ToolCallIDSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
			}
		}

		if len(out.ToolCalls) > 0 {
			logx.Debug().Str("conversation_id", state.ConversationID).Int("tool_count", len(out.ToolCalls)).Msg("Calling actions")
		} else {
			logx.Debug().Str("conversation_id", state.ConversationID).Msg("Free text reply")
		}
		return out, nil
	}
}

// NewActionCondition routes a model message with tool calls to the action
// executor and anything else to the plain reply.
func NewActionCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		if input != nil && len(input.ToolCalls) > 0 {
			return NodeActionExecutor, nil
		}
		return NodeReply, nil
	}
}

// NewActionExecutorPostHandler collects the dispatcher responses carried by
// the tool messages into the turn state.
func NewActionExecutorPostHandler() func(context.Context, []*schema.Message, *model.AppState) ([]*schema.Message, error) {
	return func(ctx context.Context, out []*schema.Message, state *model.AppState) ([]*schema.Message, error) {
		for _, msg := range out {
			if msg == nil {
				continue
			}
			resp, err := tools.DecodeResponse(msg.Content)
			if err != nil {
				logx.Warn().Err(err).
					Str("conversation_id", state.ConversationID).
					Str("tool", msg.ToolName).
					Msg("Tool result is not an action response")
				resp = model.ActionResponse{Action: msg.ToolName, Text: msg.Content}
			}
			state.Dispatched = append(state.Dispatched, resp)
		}
		return out, nil
	}
}

// NewActionReplyNode turns the dispatched actions into the spoken reply.
func NewActionReplyNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ []*schema.Message) (*schema.Message, error) {
		var (
			actions []model.ActionResponse
			conv    string
			cost    float64
		)
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			actions = append(actions, state.Dispatched...)
			conv, cost = state.ConversationID, state.TotalCostUSD
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		text := joinTexts(actions)
		if text == "" {
			text = FallbackReply
		}
		return finish(ctx, mm, conv, text, actions, cost), nil
	})
}

// NewReplyNode speaks the model's free text answer.
func NewReplyNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *schema.Message) (*schema.Message, error) {
		var (
			conv string
			cost float64
		)
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			conv, cost = state.ConversationID, state.TotalCostUSD
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		text := ""
		if in != nil {
			text = strings.TrimSpace(in.Content)
		}
		if text == "" {
			text = FallbackReply
		}
		return finish(ctx, mm, conv, text, nil, cost), nil
	})
}

// finish saves the assistant turn and builds the graph output.
func finish(ctx context.Context, mm *conversations.MessagesManager, conv, text string, actions []model.ActionResponse, cost float64) *schema.Message {
	if err := mm.SaveResponse(ctx, conv, text); err != nil {
		logx.Error().
			Str("conversation_id", conv).
			Err(err).
			Msg("Error saving assistant response")
	}
	out := schema.AssistantMessage(text, nil)
	out.Extra = map[string]any{
		ExtraActions:      actions,
		ExtraTotalCostUSD: cost,
	}
	return out
}
