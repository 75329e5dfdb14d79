package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerybabu/voice-core/internal/agent/cart"
	"github.com/grocerybabu/voice-core/internal/agent/catalog"
	"github.com/grocerybabu/voice-core/internal/agent/dispatch"
	"github.com/grocerybabu/voice-core/internal/agent/graph/conversations"
	"github.com/grocerybabu/voice-core/internal/agent/graph/nodes"
	"github.com/grocerybabu/voice-core/internal/agent/model"
	"github.com/grocerybabu/voice-core/internal/agent/order"
	"github.com/grocerybabu/voice-core/internal/agent/repo"
	"github.com/grocerybabu/voice-core/internal/agent/session"
)

// scriptedModel answers each Generate call with the next queued reply.
type scriptedModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	err     error
	inputs  [][]*schema.Message
	bound   []*schema.ToolInfo
}

func (m *scriptedModel) Generate(_ context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	out := m.replies[0]
	m.replies = m.replies[1:]
	return out, nil
}

func (m *scriptedModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

func (m *scriptedModel) BindTools(tools []*schema.ToolInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bound = tools
	return nil
}

func (m *scriptedModel) queue(msgs ...*schema.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, msgs...)
}

func (m *scriptedModel) input(i int) []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs[i]
}

func toolCall(name, arguments string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: arguments},
	}})
}

type harness struct {
	model  *scriptedModel
	runner Runner
	carts  *cart.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	store := repo.NewMemoryStore(nil)
	index := catalog.NewIndex(store, nil, catalog.Options{})
	require.NoError(t, index.Reload(ctx))
	sessions := session.NewRegistry(index, store, store, session.Options{})
	carts := cart.NewStore(sessions, index, store, nil)
	shop := model.ShopConfig{BusinessName: "GroceryBabu", BusinessType: "grocery store", Currency: "$"}
	d := dispatch.New(dispatch.Deps{
		Catalog:   index,
		Carts:     carts,
		Orders:    order.NewFinalizer(sessions, index, store, nil),
		Sessions:  sessions,
		Customers: store,
		Shop:      shop,
	})

	m := &scriptedModel{}
	runner, err := BuildIntentGraph(ctx, &GraphConfig{
		ChatModel:       m,
		ModelName:       "gemini-2.5-flash",
		Dispatcher:      d,
		MessagesManager: conversations.NewMessagesManager(sessions, carts),
		Catalog:         index,
		Shop:            shop,
	})
	require.NoError(t, err)
	return &harness{model: m, runner: runner, carts: carts}
}

func TestRunner_ActionTurn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	reply := toolCall(model.ActionAddToCart, `{"product_name":" rice ","quantity":"2"}`)
	reply.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 1000, CompletionTokens: 100, TotalTokens: 1100}}
	h.model.queue(reply)

	res, err := h.runner.Invoke(ctx, model.QueryInput{ConversationID: "call-1", Query: "add two rice"})
	require.NoError(t, err)
	assert.Equal(t, "call-1", res.ConversationID)
	assert.Contains(t, res.Text, "Added 2 Basmati Rice 5kg to your cart.")
	require.Len(t, res.Actions, 1)
	assert.Equal(t, model.ActionAddToCart, res.Actions[0].Action)
	assert.True(t, res.Actions[0].OK)
	assert.InDelta(t, 0.00055, res.CostUSD, 1e-12)

	assert.Len(t, h.model.bound, 5)
	in := h.model.input(0)
	require.Len(t, in, 2)
	assert.Equal(t, schema.System, in[0].Role)
	assert.Contains(t, in[0].Content, "GroceryBabu")
	assert.Contains(t, in[0].Content, "Current cart: empty")
	assert.Contains(t, in[0].Content, "Condiments, Food, Grocery, Snacks")
	assert.Equal(t, "add two rice", in[1].Content)

	sum, err := h.carts.Summarize(ctx, "call-1")
	require.NoError(t, err)
	require.Len(t, sum.Items, 1)
	assert.Equal(t, 2, sum.Items[0].Quantity)
}

func TestRunner_FollowUpSeesHistoryAndCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.model.queue(
		toolCall(model.ActionAddToCart, `{"product_name":"rice","quantity":2}`),
		schema.AssistantMessage("Anything else today?", nil),
	)
	_, err := h.runner.Invoke(ctx, model.QueryInput{ConversationID: "call-1", Query: "add two rice"})
	require.NoError(t, err)

	res, err := h.runner.Invoke(ctx, model.QueryInput{ConversationID: "call-1", Query: "thanks"})
	require.NoError(t, err)
	assert.Equal(t, "Anything else today?", res.Text)
	assert.Empty(t, res.Actions)
	assert.Zero(t, res.CostUSD)

	in := h.model.input(1)
	require.Len(t, in, 4)
	assert.Contains(t, in[0].Content, "Current cart: 2 x Basmati Rice 5kg (total $31.98)")
	assert.Equal(t, schema.User, in[1].Role)
	assert.Equal(t, "add two rice", in[1].Content)
	assert.Equal(t, schema.Assistant, in[2].Role)
	assert.Contains(t, in[2].Content, "Added 2 Basmati Rice 5kg")
	assert.Equal(t, "thanks", in[3].Content)
}

func TestRunner_UnknownAction(t *testing.T) {
	h := newHarness(t)
	h.model.queue(toolCall("dance", `{}`))

	res, err := h.runner.Invoke(context.Background(), model.QueryInput{ConversationID: "call-1", Query: "can you dance"})
	require.NoError(t, err)
	assert.Equal(t, "I'm not sure how to handle that request. Could you please rephrase?", res.Text)
	require.Len(t, res.Actions, 1)
	assert.False(t, res.Actions[0].OK)
}

func TestRunner_EmptyReplyFallsBack(t *testing.T) {
	h := newHarness(t)
	h.model.queue(schema.AssistantMessage("  ", nil))

	res, err := h.runner.Invoke(context.Background(), model.QueryInput{ConversationID: "call-1", Query: "hmm"})
	require.NoError(t, err)
	assert.Equal(t, nodes.FallbackReply, res.Text)
}

func TestRunner_Errors(t *testing.T) {
	h := newHarness(t)

	_, err := h.runner.Invoke(context.Background(), model.QueryInput{Query: "hello"})
	assert.Error(t, err)

	h.model.err = errors.New("quota exceeded")
	_, err = h.runner.Invoke(context.Background(), model.QueryInput{ConversationID: "call-1", Query: "hello"})
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestBuildGraph_Validation(t *testing.T) {
	_, err := BuildGraph(context.Background(), nil)
	assert.Error(t, err)
	_, err = BuildGraph(context.Background(), &GraphConfig{})
	assert.ErrorContains(t, err, "chat model is nil")
	_, err = BuildGraph(context.Background(), &GraphConfig{ChatModel: &scriptedModel{}})
	assert.ErrorContains(t, err, "dispatcher is nil")
}
