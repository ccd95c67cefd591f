package mcp

import (
	"context"
	"encoding/json"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// buildToolCatalog returns the documentation-facing tool list, generalizing
// the teacher's buildToolCatalog() idiom to the ai-smartness tool set.
func buildToolCatalog() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "ai_recall",
			Description: "Retrieve relevant memory threads for the current message via the nine-validator consensus retriever",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":        map[string]any{"type": "string", "description": "The message text to find context for"},
					"focus_topics": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Topics to bias retrieval toward (defaults to the last ai_focus call)"},
					"limit":        map[string]any{"type": "integer", "description": "Maximum number of threads to return"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "ai_thread_suspend",
			Description: "Suspend or reactivate a memory thread",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"thread_id":  map[string]any{"type": "string"},
					"reactivate": map[string]any{"type": "boolean", "description": "Reactivate instead of suspend"},
				},
				"required": []string{"thread_id"},
			},
		},
		{
			Name:        "ai_merge",
			Description: "Force-arbitrate a merge between two threads, bypassing the automatic overlap gate",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"thread_a_id": map[string]any{"type": "string"},
					"thread_b_id": map[string]any{"type": "string"},
				},
				"required": []string{"thread_a_id", "thread_b_id"},
			},
		},
		{
			Name:        "ai_label",
			Description: "Set or append labels on a memory thread",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"thread_id": map[string]any{"type": "string"},
					"labels":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"replace":   map[string]any{"type": "boolean", "description": "Replace the label bag instead of appending"},
				},
				"required": []string{"thread_id", "labels"},
			},
		},
		{
			Name:        "ai_focus",
			Description: "Set the session's focus-topic list consumed by retrieval's focus-alignment signal",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"topics": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"topics"},
			},
		},
		{
			Name:        "ai_bridge_scan_orphans",
			Description: "Delete bridges whose endpoint threads no longer exist",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "ai_backup",
			Description: "Take an online backup of the project database",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"label": map[string]any{"type": "string", "description": "Filename prefix for the backup"},
				},
			},
		},
	}
}

// registerTools wires every catalog tool into the SDK server using typed
// input/output structs, letting the SDK derive JSON schemas by reflection.
func registerTools(server *sdkmcp.Server, h *Handler) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "ai_recall", Description: "Retrieve relevant memory threads for the current message"}, toolHandler(h.Recall))
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "ai_thread_suspend", Description: "Suspend or reactivate a memory thread"}, toolHandler(h.ThreadSuspend))
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "ai_merge", Description: "Force-arbitrate a merge between two threads"}, toolHandler(h.Merge))
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "ai_label", Description: "Set or append labels on a memory thread"}, toolHandler(h.Label))
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "ai_focus", Description: "Set the session's focus-topic list"}, toolHandler(h.Focus))
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "ai_bridge_scan_orphans", Description: "Delete orphaned bridges"}, toolHandler(h.BridgeScanOrphans))
	sdkmcp.AddTool(server, &sdkmcp.Tool{Name: "ai_backup", Description: "Take an online backup of the project database"}, toolHandler(h.Backup))
}

// toolHandler adapts one of Handler's typed methods into the SDK's
// generic tool-call signature, JSON-encoding the result as the single
// text content item.
func toolHandler[In, Out any](fn func(context.Context, In) (*Out, error)) sdkmcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest, input In) (*sdkmcp.CallToolResult, Out, error) {
		result, err := fn(ctx, input)
		var zero Out
		if err != nil {
			return &sdkmcp.CallToolResult{IsError: true, Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: err.Error()}}}, zero, nil
		}
		encoded, _ := json.Marshal(result)
		return &sdkmcp.CallToolResult{Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(encoded)}}}, *result, nil
	}
}

// Handle dispatches a raw JSON-RPC-style call by tool name, used by the
// HTTP fallback transport for clients that don't speak native MCP.
func (h *Handler) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "ai_recall":
		var p RecallParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return h.Recall(ctx, p)
	case "ai_thread_suspend":
		var p ThreadSuspendParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return h.ThreadSuspend(ctx, p)
	case "ai_merge":
		var p MergeParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return h.Merge(ctx, p)
	case "ai_label":
		var p LabelParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return h.Label(ctx, p)
	case "ai_focus":
		var p FocusParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return h.Focus(ctx, p)
	case "ai_bridge_scan_orphans":
		return h.BridgeScanOrphans(ctx, struct{}{})
	case "ai_backup":
		var p BackupParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return h.Backup(ctx, p)
	default:
		return nil, errUnknownMethod
	}
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	return json.Unmarshal(params, out)
}
