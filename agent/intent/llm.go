package intent

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
)

type classifierLLMOutput struct {
	Intents []string `json:"intents"`
}

// LLMClassifier labels queries the rule table could not. It never returns
// escalate: escalation stays with the deterministic policy.
type LLMClassifier struct {
	runner compose.Runnable[map[string]any, classifierLLMOutput]
}

var _ contractx.IntentClassifier = (*LLMClassifier)(nil)

func NewLLMClassifier(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*LLMClassifier, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is required", contractx.ErrValidation)
	}
	runner, err := compileStructuredLLMGraph[classifierLLMOutput](ctx, chatModel, systemPrompt, "intent.classifier_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile classifier graph: %v", contractx.ErrModelInvoke, err)
	}
	return &LLMClassifier{runner: runner}, nil
}

func (c *LLMClassifier) Classify(ctx context.Context, query string) ([]contractx.Intent, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, contractx.ErrInvalidQuery
	}

	out, err := c.runner.Invoke(ctx, map[string]any{"input": query})
	if err != nil {
		return nil, fmt.Errorf("%w: classifier invoke: %v", contractx.ErrModelInvoke, err)
	}

	intents := make([]contractx.Intent, 0, len(out.Intents))
	for _, raw := range out.Intents {
		in, ok := contractx.ParseIntent(raw)
		if !ok || in == contractx.IntentEscalate {
			continue
		}
		intents = appendUnique(intents, in)
	}
	return intents, nil
}

func compileStructuredLLMGraph[T any](
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, T], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	parser := schema.NewMessageJSONParser[T](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	graph := compose.NewGraph[map[string]any, T]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add structured prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add structured model node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json", compose.MessageParser(parser)); err != nil {
		return nil, fmt.Errorf("add structured parser node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add structured edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add structured edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", "parse_json"); err != nil {
		return nil, fmt.Errorf("add structured edge model->parse: %w", err)
	}
	if err := graph.AddEdge("parse_json", compose.END); err != nil {
		return nil, fmt.Errorf("add structured edge parse->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile structured graph: %w", err)
	}
	return runner, nil
}
