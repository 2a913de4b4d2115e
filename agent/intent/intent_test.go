package intent

import (
	"context"
	"errors"
	"reflect"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
)

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  []contractx.Intent
	}{
		{"Get customer information for ID 5", []contractx.Intent{contractx.IntentLookup}},
		{"I've been charged twice, please refund immediately!", []contractx.Intent{contractx.IntentEscalate}},
		{"Update my email to new@email.com and show my ticket history", []contractx.Intent{contractx.IntentUpdate, contractx.IntentHistory}},
		{"Show my ticket history, then update my phone to 555-0100", []contractx.Intent{contractx.IntentHistory, contractx.IntentUpdate}},
		{"Show me all active customers who have open tickets", []contractx.Intent{contractx.IntentList}},
		{"I need help with my account, customer ID 12345", []contractx.Intent{contractx.IntentMixed}},
		{"I want to cancel my subscription but I'm having billing issues", []contractx.Intent{contractx.IntentMixed}},
		{"I'd like to upgrade my account, customer 7", []contractx.Intent{contractx.IntentUpgrade}},
		{"I need help, this is urgent", []contractx.Intent{contractx.IntentEscalate}},
		{"history history history", []contractx.Intent{contractx.IntentHistory}},
		{"hello there", []contractx.Intent{}},
		{"   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()
			got := Detect(tt.query)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Detect(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestEscalationPolicy(t *testing.T) {
	t.Parallel()

	hits := []string{
		"I've been charged twice",
		"there is a duplicate charge on my card",
		"I want a refund",
		"this is URGENT",
		"please fix it asap",
		"this is the third time I write to you",
		"I opened a billing dispute",
	}
	for _, q := range hits {
		if !DefaultEscalationPolicy.Triggered(q) {
			t.Errorf("Triggered(%q) = false, want true", q)
		}
	}

	misses := []string{
		"Get customer information for ID 5",
		"I want to cancel my subscription but I'm having billing issues",
		"show my ticket history",
	}
	for _, q := range misses {
		if DefaultEscalationPolicy.Triggered(q) {
			t.Errorf("Triggered(%q) = true, want false", q)
		}
	}

	m, ok := DefaultEscalationPolicy.Match("please refund, I was charged twice")
	if !ok || m.Name != "refund" {
		t.Fatalf("Match() = %+v, want earliest marker refund", m)
	}
}

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  Params
	}{
		{
			query: "Get customer information for ID 5",
			want:  Params{CustomerID: 5},
		},
		{
			query: "I need help with my account, customer ID 12345",
			want:  Params{CustomerID: 12345},
		},
		{
			query: "customer #7 wants ticket #12 escalated",
			want:  Params{CustomerID: 7, TicketID: 12},
		},
		{
			query: "Update my email to new@email.com and show my ticket history",
			want:  Params{Email: "new@email.com"},
		},
		{
			query: "For customer 3 change my name to Jane Doe and my phone to +1 555-0100",
			want:  Params{CustomerID: 3, Name: "Jane Doe", Phone: "+1 555-0100"},
		},
		{
			query: "set status to suspended for id 9",
			want:  Params{CustomerID: 9, Status: contractx.CustomerSuspended},
		},
		{
			query: "high-priority tickets for premium customers",
			want: Params{List: ListFilter{
				CustomerStatus: contractx.CustomerActive,
				TicketPriority: contractx.PriorityHigh,
			}},
		},
		{
			query: "Get customer information for ID 0",
			want:  Params{InvalidCustomerID: "0"},
		},
		{
			query: "Get customer information for ID 99999999999999999999",
			want:  Params{InvalidCustomerID: "99999999999999999999"},
		},
		{
			query: "Show me all active customers who have open tickets",
			want: Params{List: ListFilter{
				CustomerStatus: contractx.CustomerActive,
				TicketStatus:   contractx.TicketOpen,
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()
			if got := Extract(tt.query); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Extract(%q) = %+v, want %+v", tt.query, got, tt.want)
			}
		})
	}
}

func TestListFilterMatching(t *testing.T) {
	t.Parallel()

	tickets := []contractx.Ticket{
		{ID: 1, Status: contractx.TicketOpen, Priority: contractx.PriorityHigh},
		{ID: 2, Status: contractx.TicketResolved, Priority: contractx.PriorityHigh},
		{ID: 3, Status: contractx.TicketOpen, Priority: contractx.PriorityLow},
	}

	f := ListFilter{TicketStatus: contractx.TicketOpen, TicketPriority: contractx.PriorityHigh}
	got := f.Matching(tickets)
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("Matching() = %+v, want ticket 1", got)
	}
	if !f.NeedsTickets() {
		t.Fatal("NeedsTickets() = false")
	}
	if (ListFilter{CustomerStatus: contractx.CustomerActive}).NeedsTickets() {
		t.Fatal("status-only filter should not need tickets")
	}
}

type fakeChatModel struct {
	content string
	err     error
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &schema.Message{Role: schema.Assistant, Content: f.content}, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func TestLLMClassifierFiltersIntents(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{content: `{"intents":["history","escalate","bogus","HISTORY","upgrade"]}`}
	c, err := NewLLMClassifier(context.Background(), fake, "classifier prompt")
	if err != nil {
		t.Fatalf("NewLLMClassifier() error = %v", err)
	}

	got, err := c.Classify(context.Background(), "what did I ask you last month")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	want := []contractx.Intent{contractx.IntentHistory, contractx.IntentUpgrade}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Classify() = %v, want %v", got, want)
	}
}

func TestLLMClassifierModelError(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{err: errors.New("rate limited")}
	c, err := NewLLMClassifier(context.Background(), fake, "classifier prompt")
	if err != nil {
		t.Fatalf("NewLLMClassifier() error = %v", err)
	}
	if _, err := c.Classify(context.Background(), "something"); !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("Classify() error = %v, want ErrModelInvoke", err)
	}
	if _, err := c.Classify(context.Background(), " "); !errors.Is(err, contractx.ErrInvalidQuery) {
		t.Fatalf("Classify(empty) error = %v, want ErrInvalidQuery", err)
	}
}
