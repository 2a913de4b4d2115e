package contract

import (
	"strings"
	"time"
)

// AgentRole identifies a participant in the coordination layer.
type AgentRole string

const (
	RoleUser    AgentRole = "user"
	RoleRouter  AgentRole = "router"
	RoleData    AgentRole = "data_agent"
	RoleSupport AgentRole = "support_agent"
)

func (r AgentRole) Valid() bool {
	switch r {
	case RoleUser, RoleRouter, RoleData, RoleSupport:
		return true
	default:
		return false
	}
}

type MessageKind string

const (
	KindRequest  MessageKind = "request"
	KindResponse MessageKind = "response"
	KindError    MessageKind = "error"
)

func (k MessageKind) Valid() bool {
	return k == KindRequest || k == KindResponse || k == KindError
}

// Intent is the classified purpose of a query segment. The set is closed.
type Intent string

const (
	IntentLookup   Intent = "lookup"
	IntentUpdate   Intent = "update"
	IntentList     Intent = "list"
	IntentEscalate Intent = "escalate"
	IntentHistory  Intent = "history"
	IntentUpgrade  Intent = "upgrade"
	IntentMixed    Intent = "mixed"
)

// Intents lists the closed intent set in declaration order.
var Intents = []Intent{
	IntentLookup,
	IntentUpdate,
	IntentList,
	IntentEscalate,
	IntentHistory,
	IntentUpgrade,
	IntentMixed,
}

func (i Intent) Valid() bool {
	for _, known := range Intents {
		if i == known {
			return true
		}
	}
	return false
}

// ParseIntent accepts the canonical lowercase name, ignoring surrounding space and case.
func ParseIntent(raw string) (Intent, bool) {
	i := Intent(strings.ToLower(strings.TrimSpace(raw)))
	return i, i.Valid()
}

// Operation names a Tool Invocation Protocol operation.
type Operation string

const (
	OpGetCustomer        Operation = "get_customer"
	OpListCustomers      Operation = "list_customers"
	OpUpdateCustomer     Operation = "update_customer"
	OpCreateTicket       Operation = "create_ticket"
	OpUpdateTicket       Operation = "update_ticket"
	OpGetCustomerHistory Operation = "get_customer_history"
)

type CustomerStatus string

const (
	CustomerActive    CustomerStatus = "active"
	CustomerInactive  CustomerStatus = "inactive"
	CustomerSuspended CustomerStatus = "suspended"
)

func (s CustomerStatus) Valid() bool {
	return s == CustomerActive || s == CustomerInactive || s == CustomerSuspended
}

type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketEscalated  TicketStatus = "escalated"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketResolved, TicketEscalated:
		return true
	default:
		return false
	}
}

// Unresolved reports whether the ticket still needs attention.
func (s TicketStatus) Unresolved() bool {
	return s == TicketOpen || s == TicketInProgress || s == TicketEscalated
}

type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
)

func (p TicketPriority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type Customer struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	Status    CustomerStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Ticket struct {
	ID         int64          `json:"id"`
	CustomerID int64          `json:"customer_id"`
	Issue      string         `json:"issue"`
	Status     TicketStatus   `json:"status"`
	Priority   TicketPriority `json:"priority"`
	CreatedAt  time.Time      `json:"created_at"`
}

// DataResult is the normalized outcome of one Data Agent execution.
type DataResult struct {
	Operation Operation  `json:"operation"`
	Customer  *Customer  `json:"customer,omitempty"`
	Customers []Customer `json:"customers,omitempty"`
	Ticket    *Ticket    `json:"ticket,omitempty"`
	Tickets   []Ticket   `json:"tickets,omitempty"`
	Updated   []string   `json:"updated,omitempty"`
	Attempts  int        `json:"attempts"`
}

// SupportContext is everything the Router already knows when it asks for a policy decision.
type SupportContext struct {
	Query      string
	CustomerID int64
	Customer   *Customer
	Tickets    []Ticket
	TicketID   int64
	Issue      string

	// Data is the Data Agent handle used for missing context. Nil means the
	// Support Agent's own handle.
	Data DataExecutor
}

type SupportResult struct {
	Intent    Intent   `json:"intent"`
	Text      string   `json:"text"`
	Ticket    *Ticket  `json:"ticket,omitempty"`
	NextSteps []string `json:"next_steps,omitempty"`
	Escalated bool     `json:"escalated"`
}

// ResponseStatus is the terminal state of one Router query.
type ResponseStatus string

const (
	StatusCompleted ResponseStatus = "completed"
	StatusFailed    ResponseStatus = "failed"
)

// Segment is the part of a composed answer produced by one intent.
type Segment struct {
	Intent Intent `json:"intent"`
	OK     bool   `json:"ok"`
	Text   string `json:"text"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// ComposedResponse is the final answer for a query plus its full message trace.
type ComposedResponse struct {
	QueryID     string          `json:"query_id"`
	Query       string          `json:"query"`
	Status      ResponseStatus  `json:"status"`
	Text        string          `json:"text"`
	Intents     []Intent        `json:"intents"`
	Segments    []Segment       `json:"segments"`
	Escalated   bool            `json:"escalated"`
	Negotiation []MessageRecord `json:"negotiation,omitempty"`
	Trace       []MessageRecord `json:"trace"`
	ErrorText   string          `json:"error,omitempty"`

	Err error `json:"-"`
}

// Succeeded returns the intents whose segment succeeded, in detection order.
func (r ComposedResponse) Succeeded() []Intent {
	out := make([]Intent, 0, len(r.Segments))
	for _, s := range r.Segments {
		if s.OK {
			out = append(out, s.Intent)
		}
	}
	return out
}

// Failed returns the intents whose segment failed, in detection order.
func (r ComposedResponse) Failed() []Intent {
	out := make([]Intent, 0, len(r.Segments))
	for _, s := range r.Segments {
		if !s.OK {
			out = append(out, s.Intent)
		}
	}
	return out
}

// MessageRecord is the serializable view of a message envelope.
type MessageRecord struct {
	ID            string         `json:"id"`
	CorrelationID string         `json:"correlation_id"`
	Sender        AgentRole      `json:"sender"`
	Receiver      AgentRole      `json:"receiver"`
	Kind          MessageKind    `json:"kind"`
	Intent        Intent         `json:"intent"`
	Payload       map[string]any `json:"payload,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
