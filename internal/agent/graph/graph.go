package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/grocerybabu/voice-core/internal/agent/dispatch"
	"github.com/grocerybabu/voice-core/internal/agent/graph/conversations"
	"github.com/grocerybabu/voice-core/internal/agent/graph/nodes"
	"github.com/grocerybabu/voice-core/internal/agent/graph/observers"
	"github.com/grocerybabu/voice-core/internal/agent/graph/tools"
	"github.com/grocerybabu/voice-core/internal/agent/model"
	"github.com/grocerybabu/voice-core/internal/observability"
	logx "github.com/grocerybabu/voice-core/pkg/logger"
)

const maxRunSteps = 20

// Runner is a thin wrapper to execute the compiled graph with the public QueryInput.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (model.TurnResult, error)
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	// ChatModel is the tool calling intent model; the action tools are bound to it.
	ChatModel       einomodel.ChatModel
	ModelName       string
	Dispatcher      *dispatch.Dispatcher
	MessagesManager *conversations.MessagesManager
	Catalog         nodes.CategoryLister
	Shop            model.ShopConfig
	Metrics         *observability.Metrics
}

// GraphBuilder handles the construction of the intent graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *schema.Message]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *schema.Message]
	metrics  *observability.Metrics
}

func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (res model.TurnResult, err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			logx.Error().
				Str("conversation_id", in.ConversationID).
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Msg("intent graph panicked")
			err = fmt.Errorf("intent graph panicked: %v", p)
		}
		r.metrics.ObserveTurn(time.Since(start))
	}()

	if strings.TrimSpace(in.ConversationID) == "" {
		return model.TurnResult{}, fmt.Errorf("conversation id is empty")
	}

	out, err := r.runnable.Invoke(tools.WithSession(ctx, in.ConversationID), in,
		compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return model.TurnResult{}, err
	}

	res = model.TurnResult{ConversationID: in.ConversationID, Text: nodes.FallbackReply}
	if out == nil {
		return res, nil
	}
	res.Text = out.Content
	if actions, ok := out.Extra[nodes.ExtraActions].([]model.ActionResponse); ok {
		res.Actions = actions
	}
	if cost, ok := out.Extra[nodes.ExtraTotalCostUSD].(float64); ok {
		res.CostUSD = cost
		r.metrics.AddModelCost(cost)
	}
	return res, nil
}

// BuildIntentGraph builds the graph and returns a Runner.
func BuildIntentGraph(ctx context.Context, cfg *GraphConfig) (Runner, error) {
	runnable, err := BuildGraph(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logx.Debug().Msg("Intent graph built successfully")
	return &graphRunner{runnable: runnable, metrics: cfg.Metrics}, nil
}

// BuildGraph constructs and returns the compiled intent graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	// Basic config validation
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if config.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is nil")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.setupTools(ctx); err != nil {
		return nil, err
	}
	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// setupTools binds the actions to the intent model and adds the executor node
func (b *GraphBuilder) setupTools(ctx context.Context) error {
	actionTools := tools.NewActionTools(b.config.Dispatcher)
	toolInfos, err := tools.GetToolInfos(ctx, actionTools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get tool infos")
		return fmt.Errorf("failed to get tool infos: %w", err)
	}

	if err := b.config.ChatModel.BindTools(toolInfos); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools to intent model")
		return fmt.Errorf("failed to bind tools to intent model: %w", err)
	}

	d := b.config.Dispatcher
	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               actionTools,
		ExecuteSequentially: true,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			// Hallucinated names still get a spoken answer from the dispatcher.
			logx.Warn().
				Str("tool_name", name).
				Str("arguments", input).
				Msg("Unknown or invalid tool call")
			resp := d.Dispatch(ctx, tools.SessionFrom(ctx), model.ActionRequest{Name: name, Arguments: json.RawMessage(input)})
			out, err := json.Marshal(resp)
			if err != nil {
				return "", fmt.Errorf("encode unknown action response: %w", err)
			}
			return string(out), nil
		},
		ToolArgumentsHandler: func(ctx context.Context, name, arguments string) (string, error) {
			if strings.TrimSpace(arguments) == "" {
				return "{}", nil
			}
			return dispatch.SanitizeArguments(name, arguments), nil
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return fmt.Errorf("failed to create tools node: %w", err)
	}

	if err := b.graph.AddToolsNode(nodes.NodeActionExecutor, toolsNode,
		compose.WithStatePostHandler(nodes.NewActionExecutorPostHandler()),
	); err != nil {
		return fmt.Errorf("add action executor: %w", err)
	}
	return nil
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	mm := b.config.MessagesManager
	steps := []func() error{
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeInputConverter,
				nodes.NewInputConverterNode(mm, b.config.Catalog, b.config.Shop),
				compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
			)
		},
		func() error {
			return b.graph.AddChatModelNode(nodes.NodeIntentChatModel, b.config.ChatModel,
				compose.WithStatePostHandler(nodes.NewIntentChatModelPostHandler(b.config.ModelName)),
			)
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeActionReply, nodes.NewActionReplyNode(mm))
		},
		func() error {
			return b.graph.AddLambdaNode(nodes.NodeReply, nodes.NewReplyNode(mm))
		},
	}
	for _, add := range steps {
		if err := add(); err != nil {
			logx.Error().Err(err).Msg("Error adding node")
			return fmt.Errorf("error adding node: %w", err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeIntentChatModel},
		{nodes.NodeActionExecutor, nodes.NodeActionReply},
		{nodes.NodeActionReply, compose.END},
		{nodes.NodeReply, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	actionBranch := compose.NewGraphBranch(
		nodes.NewActionCondition(),
		map[string]bool{
			nodes.NodeActionExecutor: true,
			nodes.NodeReply:          true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeIntentChatModel, actionBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding action branch")
		return fmt.Errorf("error adding action branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *schema.Message], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxRunSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
