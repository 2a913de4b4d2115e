package routernode

import (
	"fmt"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	statex "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/state"
)

// Step is one intent dispatch. It starts once every intent in DependsOn has a
// successful outcome.
type Step struct {
	Intent    contractx.Intent
	Targets   []contractx.AgentRole
	DependsOn []contractx.Intent
}

// Plan turns the classified intents into steps. Reads detected after an
// update report the record the update writes, so they wait for it. Support
// intents fetch their own account context and never wait.
func Plan(in *GraphState) (*GraphState, error) {
	intents := in.RC.Intents()
	steps := make([]Step, 0, len(intents))

	var writer contractx.Intent
	for _, intent := range intents {
		targets, ok := routes[intent]
		if !ok {
			return nil, fmt.Errorf("%w: no route for intent %q", contractx.ErrValidation, intent)
		}
		step := Step{Intent: intent, Targets: targets}
		if writer != "" && readsRecord(intent) {
			step.DependsOn = []contractx.Intent{writer}
		}
		if intent == contractx.IntentUpdate {
			writer = intent
		}
		steps = append(steps, step)
	}

	in.Plan = steps
	if err := in.RC.Advance(statex.PhaseDispatching); err != nil {
		return nil, err
	}
	return in, nil
}

// blocking returns the intents some other step waits for.
func blocking(plan []Step) map[contractx.Intent]bool {
	out := make(map[contractx.Intent]bool, len(plan))
	for _, s := range plan {
		for _, dep := range s.DependsOn {
			out[dep] = true
		}
	}
	return out
}
