package data

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	toolx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/tool"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// normalize converts a wire result into the shared record shapes.
func normalize(op contractx.Operation, raw map[string]any) (contractx.DataResult, error) {
	out := contractx.DataResult{Operation: op}

	switch op {
	case contractx.OpGetCustomer:
		if found, ok := raw["found"].(bool); ok && !found {
			return out, fmt.Errorf("%w: %v", contractx.ErrNotFound, raw["message"])
		}
		c, err := customerFrom(raw["customer"])
		if err != nil {
			return out, err
		}
		out.Customer = &c

	case contractx.OpListCustomers:
		items, _ := raw["customers"].([]any)
		out.Customers = make([]contractx.Customer, 0, len(items))
		for _, item := range items {
			c, err := customerFrom(item)
			if err != nil {
				return out, err
			}
			out.Customers = append(out.Customers, c)
		}

	case contractx.OpUpdateCustomer:
		c, err := customerFrom(raw["customer"])
		if err != nil {
			return out, err
		}
		out.Customer = &c
		if fields, ok := raw["updated"].([]any); ok {
			for _, f := range fields {
				if s, ok := f.(string); ok {
					out.Updated = append(out.Updated, s)
				}
			}
		}

	case contractx.OpCreateTicket, contractx.OpUpdateTicket:
		t, err := ticketFrom(raw["ticket"])
		if err != nil {
			return out, err
		}
		out.Ticket = &t

	case contractx.OpGetCustomerHistory:
		items, _ := raw["tickets"].([]any)
		out.Tickets = make([]contractx.Ticket, 0, len(items))
		for _, item := range items {
			t, err := ticketFrom(item)
			if err != nil {
				return out, err
			}
			out.Tickets = append(out.Tickets, t)
		}

	default:
		return out, fmt.Errorf("%w: no normalizer for %s", contractx.ErrToolInvocation, op)
	}
	return out, nil
}

func customerFrom(v any) (contractx.Customer, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return contractx.Customer{}, fmt.Errorf("%w: customer payload is %T", contractx.ErrToolInvocation, v)
	}
	id, err := toolx.IntArg(m, "id")
	if err != nil || id < 1 {
		return contractx.Customer{}, fmt.Errorf("%w: customer id is missing", contractx.ErrToolInvocation)
	}

	c := contractx.Customer{
		ID:        id,
		Name:      str(m, "name"),
		Email:     str(m, "email"),
		Phone:     str(m, "phone"),
		Status:    customerStatus(str(m, "status")),
		CreatedAt: parseTime(str(m, "created_at")),
		UpdatedAt: parseTime(str(m, "updated_at")),
	}
	if !c.Status.Valid() {
		return contractx.Customer{}, fmt.Errorf("%w: customer %d has unknown status %q",
			contractx.ErrToolInvocation, id, str(m, "status"))
	}
	if c.UpdatedAt.Before(c.CreatedAt) {
		c.UpdatedAt = c.CreatedAt
	}
	return c, nil
}

func ticketFrom(v any) (contractx.Ticket, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return contractx.Ticket{}, fmt.Errorf("%w: ticket payload is %T", contractx.ErrToolInvocation, v)
	}
	id, err := toolx.IntArg(m, "id")
	if err != nil || id < 1 {
		return contractx.Ticket{}, fmt.Errorf("%w: ticket id is missing", contractx.ErrToolInvocation)
	}
	customerID, err := toolx.IntArg(m, "customer_id")
	if err != nil {
		return contractx.Ticket{}, fmt.Errorf("%w: ticket %d has no customer", contractx.ErrToolInvocation, id)
	}

	t := contractx.Ticket{
		ID:         id,
		CustomerID: customerID,
		Issue:      str(m, "issue"),
		Status:     contractx.TicketStatus(strings.ToLower(str(m, "status"))),
		Priority:   contractx.TicketPriority(strings.ToLower(str(m, "priority"))),
		CreatedAt:  parseTime(str(m, "created_at")),
	}
	if !t.Status.Valid() || !t.Priority.Valid() {
		return contractx.Ticket{}, fmt.Errorf("%w: ticket %d has status=%q priority=%q",
			contractx.ErrToolInvocation, id, t.Status, t.Priority)
	}
	return t, nil
}

func customerStatus(raw string) contractx.CustomerStatus {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case "disabled", "closed":
		return contractx.CustomerInactive
	default:
		return contractx.CustomerStatus(s)
	}
}

func parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
