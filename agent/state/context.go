package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/message"
)

// Phase is a Router state machine state.
type Phase string

const (
	PhaseReceived    Phase = "received"
	PhaseClassifying Phase = "classifying"
	PhaseDispatching Phase = "dispatching"
	PhaseNegotiating Phase = "negotiating"
	PhaseComposing   Phase = "composing"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
)

func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

var transitions = map[Phase][]Phase{
	PhaseReceived:    {PhaseClassifying, PhaseFailed},
	PhaseClassifying: {PhaseDispatching, PhaseFailed},
	PhaseDispatching: {PhaseNegotiating, PhaseComposing, PhaseFailed},
	PhaseNegotiating: {PhaseComposing, PhaseFailed},
	PhaseComposing:   {PhaseCompleted, PhaseFailed},
}

var (
	ErrInvalidTransition = errors.New("invalid phase transition")
	ErrUnknownIntent     = errors.New("intent was not detected for this query")
)

// Outcome is what one intent dispatch produced.
type Outcome struct {
	Intent    contractx.Intent
	Data      *contractx.DataResult
	Support   *contractx.SupportResult
	Customers []contractx.Customer
	Tickets   []contractx.Ticket
	Notes     []string
	Err       error

	// Skipped marks an intent that never ran because a dependency failed.
	Skipped  bool
	Finished time.Time
}

func (o Outcome) OK() bool { return o.Err == nil && !o.Skipped }

// RouterContext is the per-query state owned by one Router invocation. It is
// created when the query arrives and dropped after the response is composed.
// Dispatch goroutines record outcomes concurrently, so all access is locked.
type RouterContext struct {
	QueryID   string
	Query     string
	StartedAt time.Time

	mu          sync.Mutex
	phase       Phase
	history     []Phase
	intents     []contractx.Intent
	outcomes    map[contractx.Intent]Outcome
	escalated   bool
	negotiation []*message.Message
	trace       *message.Log
}

func NewRouterContext(queryID, query string, trace *message.Log, now time.Time) *RouterContext {
	return &RouterContext{
		QueryID:   queryID,
		Query:     query,
		StartedAt: now.UTC(),
		phase:     PhaseReceived,
		history:   []Phase{PhaseReceived},
		outcomes:  make(map[contractx.Intent]Outcome, 4),
		trace:     trace,
	}
}

func (c *RouterContext) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Phases returns every phase visited, in order.
func (c *RouterContext) Phases() []Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Phase(nil), c.history...)
}

// Advance moves the state machine. Failed is reachable from any non-terminal phase.
func (c *RouterContext) Advance(next Phase) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, allowed := range transitions[c.phase] {
		if allowed == next {
			c.phase = next
			c.history = append(c.history, next)
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.phase, next)
}

// SetIntents records the classified intents, dropping duplicates and keeping first-seen order.
func (c *RouterContext) SetIntents(intents []contractx.Intent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.intents = c.intents[:0]
	seen := make(map[contractx.Intent]bool, len(intents))
	for _, in := range intents {
		if seen[in] {
			continue
		}
		seen[in] = true
		c.intents = append(c.intents, in)
	}
}

func (c *RouterContext) Intents() []contractx.Intent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]contractx.Intent(nil), c.intents...)
}

// Record stores the outcome for its intent. The first outcome wins, so a late
// timeout cannot overwrite a real result.
func (c *RouterContext) Record(o Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	known := false
	for _, existing := range c.intents {
		if existing == o.Intent {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownIntent, o.Intent)
	}
	if _, done := c.outcomes[o.Intent]; done {
		return nil
	}
	if o.Finished.IsZero() {
		o.Finished = time.Now().UTC()
	}
	c.outcomes[o.Intent] = o
	return nil
}

// Replace overwrites the outcome of an intent. Negotiation uses it to apply its verdict.
func (c *RouterContext) Replace(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o.Finished.IsZero() {
		o.Finished = time.Now().UTC()
	}
	c.outcomes[o.Intent] = o
}

func (c *RouterContext) Outcome(in contractx.Intent) (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.outcomes[in]
	return o, ok
}

// Outcomes returns recorded outcomes in intent order.
func (c *RouterContext) Outcomes() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Outcome, 0, len(c.intents))
	for _, in := range c.intents {
		if o, ok := c.outcomes[in]; ok {
			out = append(out, o)
		}
	}
	return out
}

func (c *RouterContext) MarkEscalated() {
	c.mu.Lock()
	c.escalated = true
	c.mu.Unlock()
}

func (c *RouterContext) Escalated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.escalated
}

// Log appends m to the query trace.
func (c *RouterContext) Log(m *message.Message) error {
	return c.trace.Append(m)
}

// Negotiate appends m to both the trace and the negotiation log.
func (c *RouterContext) Negotiate(m *message.Message) error {
	if err := c.trace.Append(m); err != nil {
		return err
	}
	c.mu.Lock()
	c.negotiation = append(c.negotiation, m)
	c.mu.Unlock()
	return nil
}

func (c *RouterContext) Negotiation() []contractx.MessageRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]contractx.MessageRecord, 0, len(c.negotiation))
	for _, m := range c.negotiation {
		out = append(out, m.Record())
	}
	return out
}

func (c *RouterContext) Trace() []contractx.MessageRecord {
	return c.trace.Records()
}
