package routernode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/message"
	statex "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/state"
	"github.com/rs/zerolog"
)

func newState(t *testing.T, query string, intents ...contractx.Intent) *GraphState {
	t.Helper()

	rc := statex.NewRouterContext("q-1", query, message.NewLog(zerolog.Nop()), time.Now())
	if err := rc.Advance(statex.PhaseClassifying); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	rc.SetIntents(intents)
	req, err := message.NewRequest(contractx.RoleUser, contractx.RoleRouter, intents[0], map[string]any{"query": query})
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if err := rc.Log(req); err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	return &GraphState{RC: rc, CustomerID: 5, Request: req}
}

// fakeData answers from fixed records and can fail or stall chosen operations.
type fakeData struct {
	mu       sync.Mutex
	customer contractx.Customer
	tickets  []contractx.Ticket
	listed   map[string][]contractx.Customer
	fail     map[contractx.Operation]error
	stall    map[contractx.Operation]bool
	calls    []contractx.Operation
}

func (f *fakeData) Execute(ctx context.Context, op contractx.Operation, params map[string]any) (contractx.DataResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	err := f.fail[op]
	stall := f.stall[op]
	f.mu.Unlock()

	if stall {
		<-ctx.Done()
		return contractx.DataResult{}, ctx.Err()
	}
	if err != nil {
		return contractx.DataResult{}, err
	}
	c := f.customer
	switch op {
	case contractx.OpGetCustomer:
		return contractx.DataResult{Operation: op, Customer: &c, Attempts: 1}, nil
	case contractx.OpUpdateCustomer:
		c.Email, _ = params["email"].(string)
		return contractx.DataResult{Operation: op, Customer: &c, Updated: []string{"email"}, Attempts: 1}, nil
	case contractx.OpGetCustomerHistory:
		return contractx.DataResult{Operation: op, Tickets: f.tickets, Attempts: 1}, nil
	case contractx.OpListCustomers:
		status, _ := params["status"].(string)
		return contractx.DataResult{Operation: op, Customers: f.listed[status], Attempts: 1}, nil
	default:
		return contractx.DataResult{}, fmt.Errorf("%w: %s", contractx.ErrValidation, op)
	}
}

type fakeSupport struct {
	res contractx.SupportResult
	err error
}

func (f fakeSupport) Resolve(ctx context.Context, intent contractx.Intent, sc contractx.SupportContext) (contractx.SupportResult, error) {
	return f.res, f.err
}

func TestPlanChainsIntentsAfterUpdate(t *testing.T) {
	t.Parallel()

	gs := newState(t, "q", contractx.IntentLookup, contractx.IntentUpdate, contractx.IntentHistory, contractx.IntentEscalate)
	gs, err := Plan(gs)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(gs.Plan[0].DependsOn) != 0 || len(gs.Plan[1].DependsOn) != 0 {
		t.Fatalf("steps before the update must not wait: %+v", gs.Plan)
	}
	if deps := gs.Plan[2].DependsOn; len(deps) != 1 || deps[0] != contractx.IntentUpdate {
		t.Fatalf("history DependsOn = %v, want [update]", deps)
	}
	if deps := gs.Plan[3].DependsOn; len(deps) != 0 {
		t.Fatalf("escalate DependsOn = %v, want none", deps)
	}
	if gs.RC.Phase() != statex.PhaseDispatching {
		t.Fatalf("Phase = %s, want dispatching", gs.RC.Phase())
	}
}

func TestDispatchSkipsDependentsOfFailedIntent(t *testing.T) {
	t.Parallel()

	data := &fakeData{
		customer: contractx.Customer{ID: 5, Name: "Charlie Brown", Status: contractx.CustomerActive},
		fail:     map[contractx.Operation]error{contractx.OpUpdateCustomer: fmt.Errorf("%w: customer 5", contractx.ErrNotFound)},
	}
	d := NewDispatcher(data, fakeSupport{}, Limits{}, zerolog.Nop(), nil)

	gs := newState(t, "q", contractx.IntentUpdate, contractx.IntentHistory)
	gs.Params.Email = "new@example.com"
	gs, err := Plan(gs)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if _, err := d.Dispatch(context.Background(), gs); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	o, _ := gs.RC.Outcome(contractx.IntentHistory)
	if !o.Skipped || !errors.Is(o.Err, ErrDependencyFailed) || !errors.Is(o.Err, contractx.ErrNotFound) {
		t.Fatalf("history outcome = %+v, want skipped with the update's cause", o)
	}
	for _, op := range data.calls {
		if op == contractx.OpGetCustomerHistory {
			t.Fatal("history ran although the update failed")
		}
	}

	out, err := Compose(gs, zerolog.Nop())
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if out.Response.Status != contractx.StatusFailed || !errors.Is(out.Response.Err, contractx.ErrNotFound) {
		t.Fatalf("response = %s %v, want failed with ErrNotFound", out.Response.Status, out.Response.Err)
	}
	if code := out.Response.Segments[1].Code; code != contractx.CodeDependencyFailed {
		t.Fatalf("history segment code = %q, want %q", code, contractx.CodeDependencyFailed)
	}
}

func TestDispatchRunsEscalationWhenUpdateFails(t *testing.T) {
	t.Parallel()

	data := &fakeData{customer: contractx.Customer{ID: 5, Name: "Charlie Brown", Status: contractx.CustomerActive}}
	support := fakeSupport{res: contractx.SupportResult{
		Intent:    contractx.IntentEscalate,
		Text:      "We will investigate.",
		Ticket:    &contractx.Ticket{ID: 9, Priority: contractx.PriorityHigh, Status: contractx.TicketEscalated},
		Escalated: true,
	}}
	d := NewDispatcher(data, support, Limits{}, zerolog.Nop(), nil)

	// No update field in the query, so the update fails validation.
	gs := newState(t, "update my email, I was charged twice", contractx.IntentUpdate, contractx.IntentEscalate)
	gs, err := Plan(gs)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if _, err := d.Dispatch(context.Background(), gs); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if o, _ := gs.RC.Outcome(contractx.IntentUpdate); !errors.Is(o.Err, contractx.ErrValidation) {
		t.Fatalf("update outcome = %+v, want validation error", o)
	}
	if o, _ := gs.RC.Outcome(contractx.IntentEscalate); !o.OK() || o.Skipped {
		t.Fatalf("escalate outcome = %+v, want success", o)
	}
	if !gs.RC.Escalated() {
		t.Fatal("Escalated() = false, want true")
	}

	out, err := Compose(gs, zerolog.Nop())
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if out.Response.Status != contractx.StatusCompleted {
		t.Fatalf("Status = %s, want completed", out.Response.Status)
	}
}

func TestDispatchListInactiveMergesLegacyStatus(t *testing.T) {
	t.Parallel()

	day := func(d int) time.Time { return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC) }
	data := &fakeData{listed: map[string][]contractx.Customer{
		"inactive": {{ID: 10, Name: "Ivy", Status: contractx.CustomerInactive, CreatedAt: day(4)}},
		"disabled": {
			{ID: 11, Name: "Jack", Status: contractx.CustomerInactive, CreatedAt: day(9)},
			{ID: 3, Name: "Bob", Status: contractx.CustomerInactive, CreatedAt: day(1)},
		},
	}}
	d := NewDispatcher(data, fakeSupport{}, Limits{ListLimit: 2}, zerolog.Nop(), nil)

	gs := newState(t, "Show all inactive customers", contractx.IntentList)
	gs.Params.List.CustomerStatus = contractx.CustomerInactive
	gs, err := Plan(gs)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if _, err := d.Dispatch(context.Background(), gs); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	o, _ := gs.RC.Outcome(contractx.IntentList)
	if !o.OK() {
		t.Fatalf("list outcome = %+v", o)
	}
	var ids []int64
	for _, c := range o.Customers {
		ids = append(ids, c.ID)
	}
	if fmt.Sprint(ids) != "[11 10]" {
		t.Fatalf("customers = %v, want newest two [11 10]", ids)
	}
	if len(data.calls) != 2 {
		t.Fatalf("calls = %v, want one list per stored status", data.calls)
	}
}

func TestDispatchTimeoutIsPerIntent(t *testing.T) {
	t.Parallel()

	data := &fakeData{
		customer: contractx.Customer{ID: 5, Name: "Charlie Brown", Status: contractx.CustomerActive},
		stall:    map[contractx.Operation]bool{contractx.OpGetCustomerHistory: true},
	}
	d := NewDispatcher(data, fakeSupport{}, Limits{QueryTimeout: 30 * time.Millisecond}, zerolog.Nop(), nil)

	gs := newState(t, "q", contractx.IntentLookup, contractx.IntentHistory)
	gs, err := Plan(gs)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if _, err := d.Dispatch(context.Background(), gs); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if o, _ := gs.RC.Outcome(contractx.IntentLookup); !o.OK() {
		t.Fatalf("lookup outcome = %+v, want success", o)
	}
	o, ok := gs.RC.Outcome(contractx.IntentHistory)
	if !ok || !errors.Is(o.Err, contractx.ErrToolInvocation) {
		t.Fatalf("history outcome = %+v, want tool invocation error", o)
	}
}

func TestDispatchForcesEscalationOnSignal(t *testing.T) {
	t.Parallel()

	data := &fakeData{customer: contractx.Customer{ID: 5, Name: "Charlie Brown", Status: contractx.CustomerActive}}
	support := &scriptedSupport{}
	d := NewDispatcher(data, support, Limits{}, zerolog.Nop(), nil)

	gs := newState(t, "I need help with my account", contractx.IntentMixed)
	gs, err := Plan(gs)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if _, err := d.Dispatch(context.Background(), gs); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if !gs.RC.Escalated() {
		t.Fatal("Escalated() = false, want true")
	}
	if got := support.intents; len(got) != 2 || got[1] != contractx.IntentEscalate {
		t.Fatalf("support intents = %v, want [mixed escalate]", got)
	}
	o, _ := gs.RC.Outcome(contractx.IntentMixed)
	if !o.OK() || o.Support == nil || !o.Support.Escalated || len(o.Notes) != 1 {
		t.Fatalf("mixed outcome = %+v", o)
	}
}

type scriptedSupport struct {
	mu      sync.Mutex
	intents []contractx.Intent
}

func (s *scriptedSupport) Resolve(ctx context.Context, intent contractx.Intent, sc contractx.SupportContext) (contractx.SupportResult, error) {
	s.mu.Lock()
	s.intents = append(s.intents, intent)
	s.mu.Unlock()

	if intent == contractx.IntentMixed {
		return contractx.SupportResult{}, &contractx.EscalationRequired{CustomerID: sc.CustomerID, Reason: "3 unresolved tickets on record"}
	}
	return contractx.SupportResult{
		Intent:    intent,
		Text:      "escalated",
		Ticket:    &contractx.Ticket{ID: 42, Priority: contractx.PriorityHigh, Status: contractx.TicketEscalated},
		Escalated: true,
	}, nil
}

func TestNegotiateTieBecomesConflict(t *testing.T) {
	t.Parallel()

	gs := newState(t, "upgrade", contractx.IntentUpgrade)
	if err := gs.RC.Advance(statex.PhaseDispatching); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	customer := contractx.Customer{ID: 6, Status: contractx.CustomerSuspended}
	if err := gs.RC.Record(statex.Outcome{
		Intent:  contractx.IntentUpgrade,
		Data:    &contractx.DataResult{Customer: &customer},
		Support: &contractx.SupportResult{Text: "next steps"},
	}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	gs.Conflicts = detectConflicts(gs)
	if len(gs.Conflicts) != 1 {
		t.Fatalf("Conflicts = %+v, want 1", gs.Conflicts)
	}
	if _, err := Negotiate(gs, zerolog.Nop()); err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}

	o, _ := gs.RC.Outcome(contractx.IntentUpgrade)
	var conflict *contractx.NegotiationConflictError
	if !errors.As(o.Err, &conflict) {
		t.Fatalf("upgrade Err = %v, want NegotiationConflictError", o.Err)
	}
	if conflict.Positions[0].Agent != contractx.RoleSupport || conflict.Positions[1].Agent != contractx.RoleData {
		t.Fatalf("Positions = %+v", conflict.Positions)
	}
	neg := gs.RC.Negotiation()
	if len(neg) != 4 || neg[0].CorrelationID != neg[1].CorrelationID {
		t.Fatalf("negotiation log = %+v, want two request/response pairs", neg)
	}
}

func TestDetectConflictsIgnoresActiveAccounts(t *testing.T) {
	t.Parallel()

	gs := newState(t, "refund", contractx.IntentEscalate)
	customer := contractx.Customer{ID: 5, Status: contractx.CustomerActive}
	if err := gs.RC.Record(statex.Outcome{
		Intent:  contractx.IntentEscalate,
		Data:    &contractx.DataResult{Customer: &customer},
		Support: &contractx.SupportResult{Escalated: true},
	}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if got := detectConflicts(gs); len(got) != 0 {
		t.Fatalf("detectConflicts() = %+v, want none", got)
	}
}

func TestComposeOrdersSegmentsByIntent(t *testing.T) {
	t.Parallel()

	gs := newState(t, "q", contractx.IntentHistory, contractx.IntentLookup)
	gs, err := Plan(gs)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	customer := contractx.Customer{ID: 5, Name: "Charlie Brown", Email: "charlie@example.com", Status: contractx.CustomerActive}
	// Record in reverse completion order.
	if err := gs.RC.Record(statex.Outcome{Intent: contractx.IntentLookup, Data: &contractx.DataResult{Customer: &customer}}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := gs.RC.Record(statex.Outcome{Intent: contractx.IntentHistory, Err: fmt.Errorf("%w: timeout", contractx.ErrToolInvocation)}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	out, err := Compose(gs, zerolog.Nop())
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	resp := out.Response
	if resp.Status != contractx.StatusCompleted || resp.Err != nil {
		t.Fatalf("response = %s %v, want partial completion", resp.Status, resp.Err)
	}
	if resp.Segments[0].Intent != contractx.IntentHistory || resp.Segments[0].OK {
		t.Fatalf("first segment = %+v", resp.Segments[0])
	}
	if !strings.HasSuffix(resp.Text, "Completed: lookup. Failed: history.") {
		t.Fatalf("Text = %q", resp.Text)
	}
	if gs.RC.Phase() != statex.PhaseCompleted {
		t.Fatalf("Phase = %s, want completed", gs.RC.Phase())
	}
	last := resp.Trace[len(resp.Trace)-1]
	if last.Kind != contractx.KindResponse || last.CorrelationID != gs.Request.CorrelationID() {
		t.Fatalf("last trace record = %+v, want the answer to the query", last)
	}
}

func TestComposeNamesMissingTicket(t *testing.T) {
	t.Parallel()

	gs := newState(t, "escalate ticket 7", contractx.IntentEscalate)
	gs, err := Plan(gs)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	missing := contractx.FromCode(contractx.CodeNotFound, "record not found: ticket 7")
	if err := gs.RC.Record(statex.Outcome{Intent: contractx.IntentEscalate, Err: missing}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	out, err := Compose(gs, zerolog.Nop())
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if got := out.Response.Segments[0].Text; got != "Ticket 7 could not be found." {
		t.Fatalf("segment text = %q", got)
	}
}

func TestValidateRequestRejectsBlankQuery(t *testing.T) {
	t.Parallel()

	_, err := ValidateRequest(GraphInput{Query: " \t"}, zerolog.Nop(), time.Now)
	if !errors.Is(err, contractx.ErrInvalidQuery) {
		t.Fatalf("ValidateRequest() error = %v, want ErrInvalidQuery", err)
	}
}

type stubClassifier struct {
	intents []contractx.Intent
	calls   int
}

func (s *stubClassifier) Classify(context.Context, string) ([]contractx.Intent, error) {
	s.calls++
	return s.intents, nil
}

func TestClassifyFallsBack(t *testing.T) {
	t.Parallel()

	stub := &stubClassifier{intents: []contractx.Intent{contractx.IntentUpgrade}}
	gs, err := ValidateRequest(GraphInput{Query: "hmm, what are my options"}, zerolog.Nop(), time.Now)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	gs, err = Classify(context.Background(), gs, stub, Limits{DefaultCustomerID: 3}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if stub.calls != 1 {
		t.Fatalf("classifier calls = %d, want 1", stub.calls)
	}
	if got := gs.RC.Intents(); len(got) != 1 || got[0] != contractx.IntentUpgrade {
		t.Fatalf("Intents = %v, want [upgrade]", got)
	}
	if gs.CustomerID != 3 {
		t.Fatalf("CustomerID = %d, want default 3", gs.CustomerID)
	}

	gs, err = ValidateRequest(GraphInput{Query: "hmm, what are my options"}, zerolog.Nop(), time.Now)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	gs, err = Classify(context.Background(), gs, nil, Limits{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got := gs.RC.Intents(); len(got) != 1 || got[0] != contractx.IntentMixed {
		t.Fatalf("Intents = %v, want [mixed]", got)
	}
}

func TestClassifyKeepsInvalidCustomerID(t *testing.T) {
	t.Parallel()

	gs, err := ValidateRequest(GraphInput{Query: "Get customer information for ID 0"}, zerolog.Nop(), time.Now)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	gs, err = Classify(context.Background(), gs, nil, Limits{DefaultCustomerID: 3}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if gs.CustomerID != 0 || gs.Params.InvalidCustomerID != "0" {
		t.Fatalf("CustomerID = %d, invalid = %q, want 0 and \"0\"", gs.CustomerID, gs.Params.InvalidCustomerID)
	}
}
