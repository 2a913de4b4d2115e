package data

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/protocol"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/records"
	toolx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/tool"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/pkg/retry"
	"github.com/rs/zerolog"
)

// flakyStore fails the first failures calls of GetCustomer with a transient error.
type flakyStore struct {
	records.Store
	failures int32
	calls    atomic.Int32
}

func (f *flakyStore) GetCustomer(ctx context.Context, id int64) (records.Customer, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return records.Customer{}, fmt.Errorf("%w: connection reset", records.ErrUnavailable)
	}
	return f.Store.GetCustomer(ctx, id)
}

func seeded(t *testing.T) *records.MemoryStore {
	t.Helper()

	store := records.NewMemoryStore()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	err := store.Seed(context.Background(),
		[]records.Customer{
			{ID: 5, Name: "Charlie Brown", Email: "charlie@example.com", Phone: "+1-555-0105", Status: records.StatusActive, CreatedAt: created},
			{ID: 6, Name: "Diana Prince", Email: "diana@example.com", Status: records.StatusDisabled, CreatedAt: created},
		},
		[]records.Ticket{
			{ID: 1, CustomerID: 5, Issue: "Cannot login", Status: records.TicketOpen, Priority: records.PriorityHigh, CreatedAt: created},
		},
	)
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	return store
}

func newAgent(t *testing.T, store records.Store) *Agent {
	t.Helper()

	server := protocol.NewServer(toolx.NewExecutor(store), protocol.WithServerLogger(zerolog.Nop()))
	agent, err := New(
		protocol.NewClient("data-test", protocol.NewLoopback(server)),
		WithRetryConfig(retry.Config{MaxAttempts: 3, Delay: time.Millisecond}),
		WithLogger(zerolog.Nop()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return agent
}

func TestExecuteGetCustomer(t *testing.T) {
	t.Parallel()

	agent := newAgent(t, seeded(t))
	res, err := agent.Execute(context.Background(), contractx.OpGetCustomer, map[string]any{"customer_id": 5})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Customer == nil || res.Customer.Name != "Charlie Brown" {
		t.Fatalf("Execute() customer = %+v", res.Customer)
	}
	if res.Customer.Status != contractx.CustomerActive {
		t.Fatalf("status = %s, want active", res.Customer.Status)
	}
	if res.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", res.Attempts)
	}
}

func TestExecuteGetCustomerIsIdempotent(t *testing.T) {
	t.Parallel()

	agent := newAgent(t, seeded(t))
	first, err := agent.Execute(context.Background(), contractx.OpGetCustomer, map[string]any{"customer_id": 5})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	second, err := agent.Execute(context.Background(), contractx.OpGetCustomer, map[string]any{"customer_id": 5})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated get_customer differs:\n%+v\n%+v", first, second)
	}
}

func TestExecuteNormalizesLegacyStatus(t *testing.T) {
	t.Parallel()

	agent := newAgent(t, seeded(t))
	res, err := agent.Execute(context.Background(), contractx.OpGetCustomer, map[string]any{"customer_id": 6})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Customer.Status != contractx.CustomerInactive {
		t.Fatalf("status = %s, want inactive", res.Customer.Status)
	}
}

func TestExecuteUpdateThenGetRoundTrip(t *testing.T) {
	t.Parallel()

	agent := newAgent(t, seeded(t))
	ctx := context.Background()

	upd, err := agent.Execute(ctx, contractx.OpUpdateCustomer, map[string]any{"customer_id": 5, "email": "new@email.com"})
	if err != nil {
		t.Fatalf("Execute(update) error = %v", err)
	}
	if !reflect.DeepEqual(upd.Updated, []string{"email"}) {
		t.Fatalf("updated fields = %v, want [email]", upd.Updated)
	}

	got, err := agent.Execute(ctx, contractx.OpGetCustomer, map[string]any{"customer_id": 5})
	if err != nil {
		t.Fatalf("Execute(get) error = %v", err)
	}
	if got.Customer.Email != "new@email.com" {
		t.Fatalf("email = %q, want new@email.com", got.Customer.Email)
	}
	if got.Customer.UpdatedAt.Before(got.Customer.CreatedAt) {
		t.Fatal("updated_at before created_at")
	}
}

func TestExecuteRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	store := &flakyStore{Store: seeded(t), failures: 2}
	agent := newAgent(t, store)

	res, err := agent.Execute(context.Background(), contractx.OpGetCustomer, map[string]any{"customer_id": 5})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", res.Attempts)
	}
	if got := store.calls.Load(); got != 3 {
		t.Fatalf("store calls = %d, want 3", got)
	}
}

func TestExecuteSurfacesToolInvocationErrorAfterRetries(t *testing.T) {
	t.Parallel()

	store := &flakyStore{Store: seeded(t), failures: 10}
	agent := newAgent(t, store)

	_, err := agent.Execute(context.Background(), contractx.OpGetCustomer, map[string]any{"customer_id": 5})
	if !errors.Is(err, contractx.ErrToolInvocation) {
		t.Fatalf("Execute() error = %v, want ErrToolInvocation", err)
	}
	if contractx.Retryable(err) {
		t.Fatal("surfaced error is still retryable")
	}
	if got := store.calls.Load(); got != 3 {
		t.Fatalf("store calls = %d, want 3", got)
	}
}

func TestExecuteNotFoundIsNotRetried(t *testing.T) {
	t.Parallel()

	store := &flakyStore{Store: seeded(t)}
	agent := newAgent(t, store)

	_, err := agent.Execute(context.Background(), contractx.OpGetCustomer, map[string]any{"customer_id": 999})
	if !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("Execute() error = %v, want ErrNotFound", err)
	}
	if got := store.calls.Load(); got != 1 {
		t.Fatalf("store calls = %d, want 1", got)
	}
}

func TestExecuteValidationFailsFast(t *testing.T) {
	t.Parallel()

	store := &flakyStore{Store: seeded(t)}
	agent := newAgent(t, store)

	_, err := agent.Execute(context.Background(), contractx.OpGetCustomer, map[string]any{"customer_id": -3})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Execute() error = %v, want ErrValidation", err)
	}
	if got := store.calls.Load(); got != 0 {
		t.Fatalf("store calls = %d, want 0", got)
	}

	_, err = agent.Execute(context.Background(), "delete_customer", map[string]any{"customer_id": 1})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Execute(unknown) error = %v, want ErrValidation", err)
	}
}

func TestExecuteHistoryAndTicket(t *testing.T) {
	t.Parallel()

	agent := newAgent(t, seeded(t))
	ctx := context.Background()

	created, err := agent.Execute(ctx, contractx.OpCreateTicket, map[string]any{
		"customer_id": 5, "issue": "Charged twice", "priority": "high", "status": "escalated",
	})
	if err != nil {
		t.Fatalf("Execute(create_ticket) error = %v", err)
	}
	if created.Ticket.Priority != contractx.PriorityHigh || created.Ticket.Status != contractx.TicketEscalated {
		t.Fatalf("ticket = %+v", created.Ticket)
	}

	hist, err := agent.Execute(ctx, contractx.OpGetCustomerHistory, map[string]any{"customer_id": 5})
	if err != nil {
		t.Fatalf("Execute(history) error = %v", err)
	}
	if len(hist.Tickets) != 2 || hist.Tickets[0].ID != created.Ticket.ID {
		t.Fatalf("history = %+v, want newest ticket first", hist.Tickets)
	}
}
