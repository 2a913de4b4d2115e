package routernode

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/message"
	statex "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/state"
	"github.com/rs/zerolog"
)

// Compose merges the per-intent outcomes into one answer in detection order.
// The query fails only when nothing succeeded or an intent others waited for
// failed; otherwise failed intents become segments of a partial answer.
func Compose(in *GraphState, logger zerolog.Logger) (GraphOutput, error) {
	if err := in.RC.Advance(statex.PhaseComposing); err != nil {
		return GraphOutput{}, err
	}

	intents := in.RC.Intents()
	segments := make([]contractx.Segment, 0, len(intents))
	outcomes := make(map[contractx.Intent]statex.Outcome, len(intents))
	for _, intent := range intents {
		o, ok := in.RC.Outcome(intent)
		if !ok {
			o = statex.Outcome{
				Intent: intent,
				Err:    fmt.Errorf("%w: %s produced no result", contractx.ErrToolInvocation, intent),
			}
		}
		outcomes[intent] = o
		segments = append(segments, segment(in, o))
	}

	resp := contractx.ComposedResponse{
		QueryID:   in.RC.QueryID,
		Query:     in.RC.Query,
		Status:    contractx.StatusCompleted,
		Intents:   intents,
		Segments:  segments,
		Escalated: in.RC.Escalated(),
	}
	resp.Text = render(resp)

	var (
		answer *message.Message
		err    error
	)
	if fatal := fatalError(in.Plan, intents, outcomes); fatal != nil {
		resp.Status = contractx.StatusFailed
		resp.Err = fatal
		resp.ErrorText = fatal.Error()
		answer, err = message.Fail(in.Request, fatal)
	} else {
		answer, err = message.Reply(in.Request, map[string]any{
			"status":    string(resp.Status),
			"succeeded": intentNames(resp.Succeeded()),
			"failed":    intentNames(resp.Failed()),
			"escalated": resp.Escalated,
		})
	}
	if err != nil {
		return GraphOutput{}, err
	}
	if err := in.RC.Log(answer); err != nil {
		return GraphOutput{}, err
	}

	final := statex.PhaseCompleted
	if resp.Status == contractx.StatusFailed {
		final = statex.PhaseFailed
	}
	if err := in.RC.Advance(final); err != nil {
		return GraphOutput{}, err
	}

	resp.Trace = in.RC.Trace()
	resp.Negotiation = in.RC.Negotiation()

	logger.Debug().
		Str("query_id", resp.QueryID).
		Str("status", string(resp.Status)).
		Int("segments", len(segments)).
		Msg("response composed")
	return GraphOutput{Response: resp}, nil
}

// fatalError decides whether the whole query failed.
func fatalError(plan []Step, intents []contractx.Intent, outcomes map[contractx.Intent]statex.Outcome) error {
	waitedFor := blocking(plan)
	var first error
	succeeded := 0
	for _, intent := range intents {
		o := outcomes[intent]
		if o.OK() {
			succeeded++
			continue
		}
		if waitedFor[intent] && !o.Skipped {
			return o.Err
		}
		if first == nil {
			first = o.Err
		}
	}
	if succeeded == 0 {
		return first
	}
	return nil
}

func segment(in *GraphState, o statex.Outcome) contractx.Segment {
	seg := contractx.Segment{Intent: o.Intent, OK: o.OK()}
	if !seg.OK {
		seg.Error = o.Err.Error()
		seg.Code = contractx.ErrorCode(o.Err)
		seg.Text = failureText(in, o)
		return seg
	}

	var text string
	switch {
	case o.Support != nil:
		text = o.Support.Text
	case o.Intent == contractx.IntentLookup:
		text = describeCustomer(o.Data.Customer)
	case o.Intent == contractx.IntentUpdate:
		text = describeUpdate(o.Data)
	case o.Intent == contractx.IntentHistory:
		text = describeHistory(in.CustomerID, o.Tickets)
	case o.Intent == contractx.IntentList:
		text = describeList(in, o)
	default:
		text = fmt.Sprintf("The %s request was handled.", o.Intent)
	}
	if len(o.Notes) > 0 {
		text += " " + strings.Join(o.Notes, " ")
	}
	seg.Text = text
	return seg
}

func failureText(in *GraphState, o statex.Outcome) string {
	var conflict *contractx.NegotiationConflictError
	switch {
	case o.Skipped:
		return fmt.Sprintf("Your %s request was not processed because an earlier step failed.", o.Intent)
	case errors.As(o.Err, &conflict):
		views := make([]string, 0, len(conflict.Positions))
		for _, p := range conflict.Positions {
			views = append(views, fmt.Sprintf("%s: %s", roleLabel(p.Agent), p.Summary))
		}
		return fmt.Sprintf("We could not settle your %s request automatically (%s). A support specialist will follow up.",
			o.Intent, strings.Join(views, "; "))
	case errors.Is(o.Err, contractx.ErrNotFound):
		return notFoundText(in, o.Err)
	case errors.Is(o.Err, contractx.ErrValidation) && in.Params.InvalidCustomerID != "":
		return fmt.Sprintf("Customer id %s is not valid. Customer ids are positive numbers.", in.Params.InvalidCustomerID)
	case errors.Is(o.Err, contractx.ErrValidation):
		return fmt.Sprintf("Your %s request could not be processed: %s.", o.Intent, o.Err)
	default:
		return fmt.Sprintf("Your %s request could not be completed right now. Please try again later.", o.Intent)
	}
}

var missingRecord = regexp.MustCompile(`\b(customer|ticket) (\d+)\b`)

// notFoundText names the record the store reported missing, falling back to
// the query's customer.
func notFoundText(in *GraphState, err error) string {
	m := missingRecord.FindAllStringSubmatch(err.Error(), -1)
	if len(m) == 0 {
		return fmt.Sprintf("Customer %d could not be found.", in.CustomerID)
	}
	last := m[len(m)-1]
	subject := "Customer"
	if last[1] == "ticket" {
		subject = "Ticket"
	}
	return fmt.Sprintf("%s %s could not be found.", subject, last[2])
}

func describeCustomer(c *contractx.Customer) string {
	if c == nil {
		return "No customer details were returned."
	}
	return fmt.Sprintf("Customer %d: %s (%s, %s), status %s.", c.ID, c.Name, orNone(c.Email), orNone(c.Phone), c.Status)
}

func describeUpdate(res *contractx.DataResult) string {
	c := res.Customer
	if c == nil {
		return "The customer record was updated."
	}
	changes := make([]string, 0, len(res.Updated))
	for _, field := range res.Updated {
		switch field {
		case "email":
			changes = append(changes, "email is now "+c.Email)
		case "phone":
			changes = append(changes, "phone is now "+c.Phone)
		case "name":
			changes = append(changes, "name is now "+c.Name)
		case "status":
			changes = append(changes, "status is now "+string(c.Status))
		}
	}
	if len(changes) == 0 {
		return fmt.Sprintf("Customer %d was updated.", c.ID)
	}
	return fmt.Sprintf("Updated customer %d: %s.", c.ID, strings.Join(changes, ", "))
}

func describeHistory(customerID int64, tickets []contractx.Ticket) string {
	if len(tickets) == 0 {
		return fmt.Sprintf("Customer %d has no tickets.", customerID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket history for customer %d:", customerID)
	for _, t := range tickets {
		fmt.Fprintf(&b, "\n  #%d [%s, %s] %s", t.ID, t.Status, t.Priority, t.Issue)
	}
	return b.String()
}

func describeList(in *GraphState, o statex.Outcome) string {
	if len(o.Customers) == 0 {
		return "No customers match your request."
	}

	byCustomer := make(map[int64][]string, len(o.Customers))
	for _, t := range o.Tickets {
		byCustomer[t.CustomerID] = append(byCustomer[t.CustomerID], fmt.Sprintf("#%d", t.ID))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d customer(s) found:", len(o.Customers))
	for _, c := range o.Customers {
		fmt.Fprintf(&b, "\n  %s (#%d, %s)", c.Name, c.ID, c.Status)
		if in.Params.List.NeedsTickets() {
			fmt.Fprintf(&b, " tickets %s", strings.Join(byCustomer[c.ID], ", "))
		}
	}
	return b.String()
}

func render(resp contractx.ComposedResponse) string {
	parts := make([]string, 0, len(resp.Segments)+1)
	for _, s := range resp.Segments {
		parts = append(parts, s.Text)
	}
	parts = append(parts, fmt.Sprintf("Completed: %s. Failed: %s.",
		joinOrNone(resp.Succeeded()), joinOrNone(resp.Failed())))
	return strings.Join(parts, "\n\n")
}

func joinOrNone(intents []contractx.Intent) string {
	if len(intents) == 0 {
		return "none"
	}
	return strings.Join(intentNames(intents), ", ")
}

func orNone(s string) string {
	if s == "" {
		return "not on file"
	}
	return s
}

func roleLabel(r contractx.AgentRole) string {
	switch r {
	case contractx.RoleSupport:
		return "support"
	case contractx.RoleData:
		return "account records"
	default:
		return string(r)
	}
}
