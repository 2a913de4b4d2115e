package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/records"
)

var ErrUnknownOperation = errors.New("unknown operation")

// Executor runs one already validated operation against the record store and
// returns its wire result.
type Executor func(ctx context.Context, op contractx.Operation, args map[string]any) (map[string]any, error)

func NewExecutor(store records.Store) Executor {
	return func(ctx context.Context, op contractx.Operation, args map[string]any) (map[string]any, error) {
		if store == nil {
			return nil, fmt.Errorf("%w: no record store configured", contractx.ErrUnavailable)
		}
		out, err := execute(ctx, store, op, args)
		if err != nil {
			return nil, translate(err)
		}
		return out, nil
	}
}

func execute(ctx context.Context, store records.Store, op contractx.Operation, args map[string]any) (map[string]any, error) {
	switch op {
	case contractx.OpGetCustomer:
		id, err := IntArg(args, "customer_id")
		if err != nil {
			return nil, err
		}
		c, err := store.GetCustomer(ctx, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"found":    true,
			"customer": customerWire(c),
			"message":  fmt.Sprintf("customer %d found", c.ID),
		}, nil

	case contractx.OpListCustomers:
		filter := records.ListFilter{Status: StringArg(args, "status")}
		if _, ok := args["limit"]; ok {
			limit, err := IntArg(args, "limit")
			if err != nil {
				return nil, err
			}
			filter.Limit = int(limit)
		}
		list, err := store.ListCustomers(ctx, filter)
		if err != nil {
			return nil, err
		}
		customers := make([]any, 0, len(list))
		for _, c := range list {
			customers = append(customers, customerWire(c))
		}
		return map[string]any{
			"count":     len(customers),
			"customers": customers,
		}, nil

	case contractx.OpUpdateCustomer:
		id, err := IntArg(args, "customer_id")
		if err != nil {
			return nil, err
		}
		patch := records.CustomerPatch{
			Name:   optString(args, "name"),
			Email:  optString(args, "email"),
			Phone:  optString(args, "phone"),
			Status: optString(args, "status"),
		}
		c, err := store.UpdateCustomer(ctx, id, patch)
		if err != nil {
			return nil, err
		}
		updated := make([]any, 0, 4)
		for _, col := range patch.Columns() {
			updated = append(updated, col)
		}
		return map[string]any{
			"success":       true,
			"rows_affected": 1,
			"updated":       updated,
			"customer":      customerWire(c),
			"message":       fmt.Sprintf("customer %d updated", c.ID),
		}, nil

	case contractx.OpCreateTicket:
		id, err := IntArg(args, "customer_id")
		if err != nil {
			return nil, err
		}
		t, err := store.CreateTicket(ctx, records.NewTicket{
			CustomerID: id,
			Issue:      StringArg(args, "issue"),
			Priority:   StringArg(args, "priority"),
			Status:     StringArg(args, "status"),
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"success": true,
			"ticket":  ticketWire(t),
			"message": fmt.Sprintf("ticket %d created", t.ID),
		}, nil

	case contractx.OpUpdateTicket:
		id, err := IntArg(args, "ticket_id")
		if err != nil {
			return nil, err
		}
		t, err := store.UpdateTicket(ctx, id, records.TicketPatch{
			Status:   optString(args, "status"),
			Priority: optString(args, "priority"),
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"success": true,
			"ticket":  ticketWire(t),
			"message": fmt.Sprintf("ticket %d updated", t.ID),
		}, nil

	case contractx.OpGetCustomerHistory:
		id, err := IntArg(args, "customer_id")
		if err != nil {
			return nil, err
		}
		history, err := store.CustomerHistory(ctx, id)
		if err != nil {
			return nil, err
		}
		tickets := make([]any, 0, len(history))
		for _, t := range history {
			tickets = append(tickets, ticketWire(t))
		}
		return map[string]any{
			"customer_id":  id,
			"ticket_count": len(tickets),
			"tickets":      tickets,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
}

// translate maps store errors onto the shared taxonomy.
func translate(err error) error {
	switch {
	case errors.Is(err, ErrUnknownOperation):
		return err
	case errors.Is(err, records.ErrNotFound):
		return fmt.Errorf("%w: %w", contractx.ErrNotFound, err)
	case errors.Is(err, records.ErrInvalid):
		return fmt.Errorf("%w: %w", contractx.ErrValidation, err)
	case errors.Is(err, records.ErrUnavailable):
		return fmt.Errorf("%w: %w", contractx.ErrUnavailable, err)
	default:
		return err
	}
}

func customerWire(c records.Customer) map[string]any {
	return map[string]any{
		"id":         c.ID,
		"name":       c.Name,
		"email":      c.Email,
		"phone":      c.Phone,
		"status":     c.Status,
		"created_at": c.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func ticketWire(t records.Ticket) map[string]any {
	return map[string]any{
		"id":          t.ID,
		"customer_id": t.CustomerID,
		"issue":       t.Issue,
		"status":      t.Status,
		"priority":    t.Priority,
		"created_at":  t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// IntArg reads an integral argument. JSON numbers arrive as float64 or json.Number.
func IntArg(args map[string]any, key string) (int64, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, fmt.Errorf("%w: %s is required", contractx.ErrValidation, key)
	}
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("%w: %s must be an integer", contractx.ErrValidation, key)
		}
		return int64(v), nil
	case json.Number:
		n, err := strconv.ParseInt(v.String(), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer", contractx.ErrValidation, key)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer, got %T", contractx.ErrValidation, key, raw)
	}
}

// StringArg returns the string argument or "" when absent.
func StringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func optString(args map[string]any, key string) *string {
	s, ok := args[key].(string)
	if !ok {
		return nil
	}
	return &s
}
