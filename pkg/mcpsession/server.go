package mcpsession

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/activepieces/activepieces-sub025/pkg/domain"
	"github.com/activepieces/activepieces-sub025/pkg/engine"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewFlowServer builds the protocol server a session fronts. Its tools
// do not run anything locally: every invocation is submitted through
// the gateway and executed by a worker, with the result correlated
// back to this node.
func NewFlowServer(name, version string, gateway *engine.Gateway) *server.MCPServer {
	s := server.NewMCPServer(name, version)

	runTool := mcp.NewTool("run_flow",
		mcp.WithDescription("Run a flow by id and return its result."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("The id of the flow to run")),
		mcp.WithString("input", mcp.Description("JSON object passed to the flow as trigger input")),
	)
	s.AddTool(runTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		flowID, _ := args["flow_id"].(string)
		if flowID == "" {
			return mcp.NewToolResultError("flow_id is required"), nil
		}

		var payload json.RawMessage
		if input, ok := args["input"].(string); ok && input != "" {
			payload = json.RawMessage(input)
		}

		raw, err := gateway.SubmitAndWait(ctx, &domain.Job{
			Type:    domain.JobTypeExecuteTool,
			FlowID:  flowID,
			Payload: payload,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("flow execution failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(raw)), nil
	})

	propTool := mcp.NewTool("resolve_property",
		mcp.WithDescription("Resolve a dynamic property of a piece action."),
		mcp.WithString("piece_name", mcp.Required(), mcp.Description("The piece the property belongs to")),
		mcp.WithString("action_name", mcp.Required(), mcp.Description("The action declaring the property")),
		mcp.WithString("context", mcp.Description("JSON object with the already-filled inputs")),
	)
	s.AddTool(propTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		pieceName, _ := args["piece_name"].(string)
		actionName, _ := args["action_name"].(string)
		if pieceName == "" || actionName == "" {
			return mcp.NewToolResultError("piece_name and action_name are required"), nil
		}

		var payload json.RawMessage
		if props, ok := args["context"].(string); ok && props != "" {
			payload = json.RawMessage(props)
		}

		raw, err := gateway.SubmitAndWait(ctx, &domain.Job{
			Type:       domain.JobTypeExecuteProperty,
			PieceName:  pieceName,
			ActionName: actionName,
			Payload:    payload,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("property resolution failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(raw)), nil
	})

	return s
}
