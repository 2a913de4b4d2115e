// Package support implements the Support Agent: escalation, upgrade guidance and
// general replies. Record access always goes through a Data Agent.
package support

import (
	"context"
	"errors"
	"fmt"
	"strings"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultEscalationThreshold = 3

var billingWords = []string{"charge", "refund", "billing", "invoice", "payment"}

type Option func(*Agent)

func WithLogger(logger zerolog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithEscalationThreshold sets how many unresolved tickets turn a general
// request into an escalation.
func WithEscalationThreshold(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.threshold = n
		}
	}
}

type Agent struct {
	data      contractx.DataExecutor
	logger    zerolog.Logger
	threshold int
}

var _ contractx.SupportResolver = (*Agent)(nil)

func New(data contractx.DataExecutor, opts ...Option) (*Agent, error) {
	if data == nil {
		return nil, errors.New("data executor is required")
	}
	a := &Agent{
		data:      data,
		logger:    log.Logger.With().Str("component", "support_agent").Logger(),
		threshold: DefaultEscalationThreshold,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

func (a *Agent) Resolve(ctx context.Context, intent contractx.Intent, sc contractx.SupportContext) (contractx.SupportResult, error) {
	data := sc.Data
	if data == nil {
		data = a.data
	}

	var (
		res contractx.SupportResult
		err error
	)
	switch intent {
	case contractx.IntentEscalate:
		res, err = a.escalate(ctx, data, sc)
	case contractx.IntentUpgrade:
		res, err = a.upgrade(ctx, data, sc)
	case contractx.IntentMixed:
		res, err = a.general(ctx, data, sc)
	default:
		return contractx.SupportResult{}, fmt.Errorf("%w: support agent does not handle intent %q", contractx.ErrValidation, intent)
	}
	if err != nil {
		a.logger.Debug().Err(err).Str("intent", string(intent)).Int64("customer_id", sc.CustomerID).Msg("resolve stopped")
		return contractx.SupportResult{}, err
	}
	res.Intent = intent
	a.logger.Debug().
		Str("intent", string(intent)).
		Int64("customer_id", sc.CustomerID).
		Bool("escalated", res.Escalated).
		Msg("resolved")
	return res, nil
}

func (a *Agent) escalate(ctx context.Context, data contractx.DataExecutor, sc contractx.SupportContext) (contractx.SupportResult, error) {
	customer, err := ensureCustomer(ctx, data, &sc)
	if err != nil {
		return contractx.SupportResult{}, err
	}

	issue := strings.TrimSpace(sc.Issue)
	if issue == "" {
		issue = strings.TrimSpace(sc.Query)
	}
	if issue == "" {
		issue = "Escalated by support"
	}

	var ticket *contractx.Ticket
	if sc.TicketID > 0 {
		owned, err := ownsTicket(ctx, data, &sc, customer.ID)
		if err != nil {
			return contractx.SupportResult{}, err
		}
		if owned {
			res, err := data.Execute(ctx, contractx.OpUpdateTicket, map[string]any{
				"ticket_id": sc.TicketID,
				"status":    string(contractx.TicketEscalated),
				"priority":  string(contractx.PriorityHigh),
			})
			if err != nil {
				return contractx.SupportResult{}, err
			}
			ticket = res.Ticket
		}
	}
	if ticket == nil {
		res, err := data.Execute(ctx, contractx.OpCreateTicket, map[string]any{
			"customer_id": customer.ID,
			"issue":       issue,
			"priority":    string(contractx.PriorityHigh),
			"status":      string(contractx.TicketEscalated),
		})
		if err != nil {
			return contractx.SupportResult{}, err
		}
		ticket = res.Ticket
	}

	team := "senior support team"
	if isBilling(issue) {
		team = "billing team"
	}
	text := fmt.Sprintf(
		"We're sorry for the trouble, %s. Your issue has been escalated to our %s, who will investigate and respond within 24 hours. Reference: ticket #%d (priority %s).",
		firstName(customer.Name), team, ticket.ID, ticket.Priority,
	)
	return contractx.SupportResult{
		Text:   text,
		Ticket: ticket,
		NextSteps: []string{
			fmt.Sprintf("The %s investigates ticket #%d", team, ticket.ID),
			fmt.Sprintf("Updates are sent to %s", contactOf(customer)),
		},
		Escalated: true,
	}, nil
}

func (a *Agent) upgrade(ctx context.Context, data contractx.DataExecutor, sc contractx.SupportContext) (contractx.SupportResult, error) {
	customer, err := ensureCustomer(ctx, data, &sc)
	if err != nil {
		return contractx.SupportResult{}, err
	}
	steps := []string{
		"Review the available plans and pick the tier you want",
		"Confirm the billing details on file",
		fmt.Sprintf("An account specialist will contact you at %s to complete the change", contactOf(customer)),
	}
	text := fmt.Sprintf("Thanks %s, we can help you upgrade your account. Next steps: %s.",
		firstName(customer.Name), strings.Join(steps, "; "))
	return contractx.SupportResult{Text: text, NextSteps: steps}, nil
}

// general answers requests that need account context but no specific operation.
// Repeated unresolved complaints are handed back as an escalation signal.
func (a *Agent) general(ctx context.Context, data contractx.DataExecutor, sc contractx.SupportContext) (contractx.SupportResult, error) {
	customer, err := ensureCustomer(ctx, data, &sc)
	if err != nil {
		return contractx.SupportResult{}, err
	}
	tickets := sc.Tickets
	if tickets == nil {
		res, err := data.Execute(ctx, contractx.OpGetCustomerHistory, map[string]any{"customer_id": customer.ID})
		if err != nil {
			return contractx.SupportResult{}, err
		}
		tickets = res.Tickets
	}

	unresolved := make([]contractx.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t.Status.Unresolved() {
			unresolved = append(unresolved, t)
		}
	}
	if len(unresolved) >= a.threshold {
		return contractx.SupportResult{}, &contractx.EscalationRequired{
			CustomerID: customer.ID,
			Reason:     fmt.Sprintf("%d unresolved tickets on record", len(unresolved)),
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s, I've pulled up your account (status %s).", firstName(customer.Name), customer.Status)
	if len(unresolved) == 0 {
		b.WriteString(" You have no open tickets.")
	} else {
		fmt.Fprintf(&b, " You have %d open ticket(s):", len(unresolved))
		for _, t := range unresolved {
			fmt.Fprintf(&b, " #%d %s (%s, %s);", t.ID, t.Issue, t.Status, t.Priority)
		}
	}

	steps := []string{"Tell us which issue you want to work on first"}
	q := strings.ToLower(sc.Query)
	if strings.Contains(q, "cancel") {
		if isBilling(q) {
			b.WriteString(" Before cancelling we will resolve the billing issue so you are not charged again.")
			steps = []string{"Billing reviews your recent charges", "We confirm the cancellation once billing is settled"}
		} else {
			b.WriteString(" We can process the cancellation once you confirm.")
			steps = []string{"Confirm the cancellation"}
		}
	} else {
		b.WriteString(" How can we help further?")
	}
	return contractx.SupportResult{Text: b.String(), NextSteps: steps}, nil
}

func ensureCustomer(ctx context.Context, data contractx.DataExecutor, sc *contractx.SupportContext) (contractx.Customer, error) {
	if sc.Customer != nil {
		return *sc.Customer, nil
	}
	if sc.CustomerID < 1 {
		return contractx.Customer{}, fmt.Errorf("%w: customer id is required", contractx.ErrValidation)
	}
	res, err := data.Execute(ctx, contractx.OpGetCustomer, map[string]any{"customer_id": sc.CustomerID})
	if err != nil {
		return contractx.Customer{}, err
	}
	sc.Customer = res.Customer
	return *res.Customer, nil
}

// ownsTicket reports whether sc.TicketID is one of the customer's tickets.
// A reference to somebody else's ticket is ignored and a new ticket is opened.
func ownsTicket(ctx context.Context, data contractx.DataExecutor, sc *contractx.SupportContext, customerID int64) (bool, error) {
	if sc.Tickets == nil {
		res, err := data.Execute(ctx, contractx.OpGetCustomerHistory, map[string]any{"customer_id": customerID})
		if err != nil {
			return false, err
		}
		sc.Tickets = res.Tickets
	}
	for _, t := range sc.Tickets {
		if t.ID == sc.TicketID {
			return true, nil
		}
	}
	return false, nil
}

func isBilling(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range billingWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func firstName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return "there"
}

func contactOf(c contractx.Customer) string {
	if c.Email != "" {
		return c.Email
	}
	if c.Phone != "" {
		return c.Phone
	}
	return "your contact address on file"
}
