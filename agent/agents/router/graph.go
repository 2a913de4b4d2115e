package router

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	nodex "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/nodes/router"
)

func (r *Router) compileHandleQueryGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, r.logger, r.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("classify",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Classify(ctx, in, r.classifier, r.limits, r.logger)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node classify: %w", err)
	}

	if err := graph.AddLambdaNode("plan",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Plan(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node plan: %w", err)
	}

	if err := graph.AddLambdaNode("dispatch",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return r.dispatcher.Dispatch(ctx, in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node dispatch: %w", err)
	}

	if err := graph.AddLambdaNode("negotiate",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Negotiate(in, r.logger)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node negotiate: %w", err)
	}

	if err := graph.AddLambdaNode("compose",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.Compose(in, r.logger)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node compose: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "classify"},
		{"classify", "plan"},
		{"plan", "dispatch"},
		{"negotiate", "compose"},
		{"compose", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	// Negotiation only runs when dispatch found conflicting results.
	branch := compose.NewGraphBranch(func(ctx context.Context, in *nodex.GraphState) (string, error) {
		if len(in.Conflicts) > 0 {
			return "negotiate", nil
		}
		return "compose", nil
	}, map[string]bool{"negotiate": true, "compose": true})
	if err := graph.AddBranch("dispatch", branch); err != nil {
		return nil, fmt.Errorf("add branch dispatch: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("router.handle_query"))
	if err != nil {
		return nil, fmt.Errorf("compile router graph: %w", err)
	}
	return runner, nil
}
