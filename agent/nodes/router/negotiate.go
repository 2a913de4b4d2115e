package routernode

import (
	"fmt"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/message"
	statex "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/state"
	"github.com/rs/zerolog"
)

// Conflict is contradictory guidance from the two agents on one intent.
type Conflict struct {
	Intent  contractx.Intent
	Support contractx.Position
	Data    contractx.Position

	supportRank int
	dataRank    int
}

// detectConflicts compares what the Support Agent decided against the account
// state the Data Agent reported. Only intents that succeeded are compared.
func detectConflicts(gs *GraphState) []Conflict {
	var out []Conflict
	for _, o := range gs.RC.Outcomes() {
		if !o.OK() || o.Support == nil || o.Data == nil || o.Data.Customer == nil {
			continue
		}
		c := o.Data.Customer
		if c.Status == contractx.CustomerActive {
			continue
		}
		dataPos := contractx.Position{
			Agent:   contractx.RoleData,
			Intent:  o.Intent,
			Summary: fmt.Sprintf("customer %d account is %s", c.ID, c.Status),
		}

		switch {
		case o.Support.Escalated:
			summary := "escalate with high priority"
			if o.Support.Ticket != nil {
				summary = fmt.Sprintf("ticket #%d escalated with high priority", o.Support.Ticket.ID)
			}
			out = append(out, Conflict{
				Intent:      o.Intent,
				Support:     contractx.Position{Agent: contractx.RoleSupport, Intent: o.Intent, Summary: summary},
				Data:        dataPos,
				supportRank: precedenceSafety,
				dataRank:    precedenceInformational,
			})
		case o.Intent == contractx.IntentUpgrade:
			out = append(out, Conflict{
				Intent:      o.Intent,
				Support:     contractx.Position{Agent: contractx.RoleSupport, Intent: o.Intent, Summary: "proceed with the account upgrade"},
				Data:        dataPos,
				supportRank: precedenceFor(o.Intent),
				dataRank:    precedenceInformational,
			})
		}
	}
	return out
}

// Negotiate settles every conflict by precedence. Each agent is asked for its
// position and the exchange goes to the negotiation log. The higher ranked
// position wins; a tie becomes a NegotiationConflictError carrying both.
func Negotiate(in *GraphState, logger zerolog.Logger) (*GraphState, error) {
	if err := in.RC.Advance(statex.PhaseNegotiating); err != nil {
		return nil, err
	}

	for _, c := range in.Conflicts {
		if err := exchange(in.RC, c.Intent, c.Support, c.supportRank); err != nil {
			return nil, err
		}
		if err := exchange(in.RC, c.Intent, c.Data, c.dataRank); err != nil {
			return nil, err
		}

		o, ok := in.RC.Outcome(c.Intent)
		if !ok {
			continue
		}
		verdict := "tie"
		switch {
		case outranks(c.supportRank, c.dataRank):
			verdict = string(contractx.RoleSupport)
			o.Notes = append(o.Notes, fmt.Sprintf(
				"Note: the %s. The escalation stands because urgent issues take precedence.", c.Data.Summary))
		case outranks(c.dataRank, c.supportRank):
			verdict = string(contractx.RoleData)
			o.Support = nil
			o.Notes = append(o.Notes, fmt.Sprintf("Note: the %s.", c.Data.Summary))
		default:
			o.Err = &contractx.NegotiationConflictError{
				Intent:    c.Intent,
				Positions: []contractx.Position{c.Support, c.Data},
			}
		}
		in.RC.Replace(o)

		logger.Info().
			Str("query_id", in.RC.QueryID).
			Str("intent", string(c.Intent)).
			Str("winner", verdict).
			Msg("negotiation settled")
	}
	return in, nil
}

// exchange asks one agent to restate its position and logs both messages.
func exchange(rc *statex.RouterContext, intent contractx.Intent, pos contractx.Position, rank int) error {
	req, err := message.NewRequest(contractx.RoleRouter, pos.Agent, intent, map[string]any{
		"negotiation": "state_position",
	})
	if err != nil {
		return err
	}
	if err := rc.Negotiate(req); err != nil {
		return err
	}
	reply, err := message.Reply(req, map[string]any{
		"position":   pos.Summary,
		"precedence": rank,
	})
	if err != nil {
		return err
	}
	return rc.Negotiate(reply)
}
