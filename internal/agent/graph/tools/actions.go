package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/grocerybabu/voice-core/internal/agent/dispatch"
	"github.com/grocerybabu/voice-core/internal/agent/model"
)

type sessionKey struct{}

// WithSession scopes the actions run under ctx to one call.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFrom returns the call id set by WithSession.
func SessionFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// NewActionTools wraps every cart action as an eino tool backed by d. The
// tool result is the JSON encoded ActionResponse.
func NewActionTools(d *dispatch.Dispatcher) []tool.BaseTool {
	infos := dispatch.ToolInfos()
	out := make([]tool.BaseTool, 0, len(infos))
	for _, info := range infos {
		out = append(out, newActionTool(d, info))
	}
	return out
}

func newActionTool(d *dispatch.Dispatcher, info *schema.ToolInfo) tool.BaseTool {
	name := info.Name
	return utils.NewTool(info, func(ctx context.Context, in map[string]any) (*model.ActionResponse, error) {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s arguments: %w", name, err)
		}
		resp := d.Dispatch(ctx, SessionFrom(ctx), model.ActionRequest{Name: name, Arguments: raw})
		return &resp, nil
	})
}

// GetToolInfos collects the declarations of tools for model binding.
func GetToolInfos(ctx context.Context, ts []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(ts))
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// DecodeResponse reads a tool result back into an ActionResponse.
func DecodeResponse(content string) (model.ActionResponse, error) {
	var resp model.ActionResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return model.ActionResponse{}, fmt.Errorf("decode action response: %w", err)
	}
	return resp, nil
}
