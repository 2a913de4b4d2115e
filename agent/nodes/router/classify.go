package routernode

import (
	"context"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	intentx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/intent"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/message"
	statex "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/state"
	"github.com/rs/zerolog"
)

// Classify detects the query's intents and extracts its parameters. The
// classifier is optional and only consulted when no rule matched; without one,
// or when it fails, the query is treated as general support.
func Classify(
	ctx context.Context,
	in *GraphState,
	classifier contractx.IntentClassifier,
	limits Limits,
	logger zerolog.Logger,
) (*GraphState, error) {
	if err := in.RC.Advance(statex.PhaseClassifying); err != nil {
		return nil, err
	}
	query := in.RC.Query

	intents := intentx.Detect(query)
	if len(intents) == 0 && classifier != nil {
		labels, err := classifier.Classify(ctx, query)
		if err != nil {
			logger.Warn().Err(err).Str("query_id", in.RC.QueryID).Msg("fallback classifier failed")
		} else {
			intents = labels
		}
	}
	if len(intents) == 0 {
		intents = []contractx.Intent{contractx.IntentMixed}
	}
	in.RC.SetIntents(intents)

	in.Params = intentx.Extract(query)
	in.CustomerID = in.Params.CustomerID
	// A mentioned but invalid id stays 0 so the Data Agent rejects it.
	if in.CustomerID == 0 && in.Params.InvalidCustomerID == "" {
		in.CustomerID = limits.withDefaults().DefaultCustomerID
	}

	detected := in.RC.Intents()
	req, err := message.NewRequest(contractx.RoleUser, contractx.RoleRouter, detected[0], map[string]any{
		"query":       query,
		"intents":     intentNames(detected),
		"customer_id": in.CustomerID,
	})
	if err != nil {
		return nil, err
	}
	if err := in.RC.Log(req); err != nil {
		return nil, err
	}
	in.Request = req

	logger.Debug().
		Str("query_id", in.RC.QueryID).
		Strs("intents", intentNames(detected)).
		Int64("customer_id", in.CustomerID).
		Msg("query classified")
	return in, nil
}

func intentNames(intents []contractx.Intent) []string {
	out := make([]string, 0, len(intents))
	for _, in := range intents {
		out = append(out, string(in))
	}
	return out
}
