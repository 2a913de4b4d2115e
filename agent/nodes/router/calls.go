package routernode

import (
	"context"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/message"
	statex "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/state"
)

// tracedData wraps the Data Agent so every call made for a query is logged as
// a request and its response or error. The Support Agent gets one too, with
// itself as sender.
type tracedData struct {
	rc     *statex.RouterContext
	sender contractx.AgentRole
	intent contractx.Intent
	data   contractx.DataExecutor
}

var _ contractx.DataExecutor = tracedData{}

func (t tracedData) Execute(ctx context.Context, op contractx.Operation, params map[string]any) (contractx.DataResult, error) {
	req, err := message.NewRequest(t.sender, contractx.RoleData, t.intent, map[string]any{
		"operation": string(op),
		"params":    params,
	})
	if err != nil {
		return contractx.DataResult{}, err
	}
	if err := t.rc.Log(req); err != nil {
		return contractx.DataResult{}, err
	}

	res, callErr := t.data.Execute(ctx, op, params)

	var answer *message.Message
	if callErr != nil {
		answer, err = message.Fail(req, callErr)
	} else {
		answer, err = message.Reply(req, dataPayload(res))
	}
	if err == nil {
		err = t.rc.Log(answer)
	}
	if callErr != nil {
		return contractx.DataResult{}, callErr
	}
	if err != nil {
		return contractx.DataResult{}, err
	}
	return res, nil
}

func dataPayload(res contractx.DataResult) map[string]any {
	out := map[string]any{
		"operation": string(res.Operation),
		"attempts":  res.Attempts,
	}
	if res.Customer != nil {
		out["customer_id"] = res.Customer.ID
		out["status"] = string(res.Customer.Status)
	}
	if res.Customers != nil {
		out["customers"] = len(res.Customers)
	}
	if res.Ticket != nil {
		out["ticket_id"] = res.Ticket.ID
	}
	if res.Tickets != nil {
		out["tickets"] = len(res.Tickets)
	}
	if len(res.Updated) > 0 {
		out["updated"] = res.Updated
	}
	return out
}

func (d *Dispatcher) dataFor(rc *statex.RouterContext, intent contractx.Intent) contractx.DataExecutor {
	return tracedData{rc: rc, sender: contractx.RoleRouter, intent: intent, data: d.data}
}

// callSupport asks the Support Agent for a policy decision. An escalation
// signal is answered with a response, not an error: it is a control signal.
func (d *Dispatcher) callSupport(
	ctx context.Context,
	rc *statex.RouterContext,
	intent contractx.Intent,
	sc contractx.SupportContext,
) (contractx.SupportResult, error) {
	req, err := message.NewRequest(contractx.RoleRouter, contractx.RoleSupport, intent, map[string]any{
		"customer_id": sc.CustomerID,
		"ticket_id":   sc.TicketID,
		"has_context": sc.Customer != nil,
	})
	if err != nil {
		return contractx.SupportResult{}, err
	}
	if err := rc.Log(req); err != nil {
		return contractx.SupportResult{}, err
	}

	sc.Data = tracedData{rc: rc, sender: contractx.RoleSupport, intent: intent, data: d.data}
	res, callErr := d.support.Resolve(ctx, intent, sc)

	var answer *message.Message
	if sig, ok := contractx.AsEscalation(callErr); ok {
		answer, err = message.Reply(req, map[string]any{
			"signal": "escalation_required",
			"reason": sig.Reason,
		})
	} else if callErr != nil {
		answer, err = message.Fail(req, callErr)
	} else {
		answer, err = message.Reply(req, supportPayload(res))
	}
	if err == nil {
		err = rc.Log(answer)
	}
	if callErr != nil {
		return contractx.SupportResult{}, callErr
	}
	if err != nil {
		return contractx.SupportResult{}, err
	}
	return res, nil
}

func supportPayload(res contractx.SupportResult) map[string]any {
	out := map[string]any{
		"text":      res.Text,
		"escalated": res.Escalated,
	}
	if res.Ticket != nil {
		out["ticket_id"] = res.Ticket.ID
		out["priority"] = string(res.Ticket.Priority)
		out["ticket_status"] = string(res.Ticket.Status)
	}
	if len(res.NextSteps) > 0 {
		out["next_steps"] = res.NextSteps
	}
	return out
}
