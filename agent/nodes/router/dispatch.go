package routernode

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	statex "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/state"
	metricsx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/pkg/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrDependencyFailed marks an intent skipped because an intent it waits for failed.
var ErrDependencyFailed = contractx.ErrDependencyFailed

// legacyDisabled is the store status older inactive accounts still carry.
const legacyDisabled = "disabled"

type handler func(ctx context.Context, gs *GraphState) statex.Outcome

// Dispatcher runs a plan: one goroutine per step, dependent steps chained on
// the completion of the steps they wait for.
type Dispatcher struct {
	data     contractx.DataExecutor
	support  contractx.SupportResolver
	limits   Limits
	logger   zerolog.Logger
	metrics  *metricsx.Recorder
	handlers map[contractx.Intent]handler
}

func NewDispatcher(
	data contractx.DataExecutor,
	support contractx.SupportResolver,
	limits Limits,
	logger zerolog.Logger,
	metrics *metricsx.Recorder,
) *Dispatcher {
	d := &Dispatcher{
		data:    data,
		support: support,
		limits:  limits.withDefaults(),
		logger:  logger,
		metrics: metrics,
	}
	d.handlers = map[contractx.Intent]handler{
		contractx.IntentLookup:   d.lookup,
		contractx.IntentUpdate:   d.update,
		contractx.IntentList:     d.list,
		contractx.IntentHistory:  d.history,
		contractx.IntentEscalate: d.escalate,
		contractx.IntentUpgrade:  d.upgrade,
		contractx.IntentMixed:    d.mixed,
	}
	return d
}

// Dispatch runs every step of the plan within the query timeout. An intent
// still running when the timeout fires gets a tool invocation error; the
// others keep their results.
func (d *Dispatcher) Dispatch(ctx context.Context, gs *GraphState) (*GraphState, error) {
	ctx, cancel := context.WithTimeout(ctx, d.limits.QueryTimeout)
	defer cancel()

	done := make(map[contractx.Intent]chan struct{}, len(gs.Plan))
	for _, step := range gs.Plan {
		done[step.Intent] = make(chan struct{})
	}

	var g errgroup.Group
	for _, step := range gs.Plan {
		g.Go(func() error {
			defer close(done[step.Intent])
			return d.runStep(ctx, gs, step, done)
		})
	}

	waited := make(chan error, 1)
	go func() { waited <- g.Wait() }()

	select {
	case err := <-waited:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
	}
	if err := d.expire(gs); err != nil {
		return nil, err
	}

	gs.Conflicts = detectConflicts(gs)
	return gs, nil
}

func (d *Dispatcher) runStep(ctx context.Context, gs *GraphState, step Step, done map[contractx.Intent]chan struct{}) error {
	for _, dep := range step.DependsOn {
		select {
		case <-done[dep]:
		case <-ctx.Done():
			return nil
		}
		if o, ok := gs.RC.Outcome(dep); !ok || !o.OK() {
			cause := o.Err
			if cause == nil {
				cause = errors.New("no result")
			}
			d.metrics.ObserveIntent(string(step.Intent), false)
			return gs.RC.Record(statex.Outcome{
				Intent:  step.Intent,
				Skipped: true,
				Err:     fmt.Errorf("%w: %s: %w", ErrDependencyFailed, dep, cause),
			})
		}
	}

	h, ok := d.handlers[step.Intent]
	if !ok {
		return fmt.Errorf("%w: no handler for intent %q", contractx.ErrValidation, step.Intent)
	}
	o := h(ctx, gs)
	o.Intent = step.Intent
	if o.Err != nil && ctx.Err() != nil && !errors.Is(o.Err, contractx.ErrNotFound) {
		o.Err = d.timeoutErr(step.Intent)
	}
	d.metrics.ObserveIntent(string(step.Intent), o.OK())
	if o.Err != nil {
		d.logger.Debug().Err(o.Err).
			Str("query_id", gs.RC.QueryID).
			Str("intent", string(step.Intent)).
			Msg("intent failed")
	}
	return gs.RC.Record(o)
}

// expire records a timeout for every intent that has no outcome yet.
func (d *Dispatcher) expire(gs *GraphState) error {
	expired := 0
	for _, step := range gs.Plan {
		if _, ok := gs.RC.Outcome(step.Intent); ok {
			continue
		}
		expired++
		d.metrics.ObserveIntent(string(step.Intent), false)
		if err := gs.RC.Record(statex.Outcome{Intent: step.Intent, Err: d.timeoutErr(step.Intent)}); err != nil {
			return err
		}
	}
	if expired > 0 {
		d.logger.Warn().
			Str("query_id", gs.RC.QueryID).
			Int("expired", expired).
			Dur("timeout", d.limits.QueryTimeout).
			Msg("dispatch timed out")
	}
	return nil
}

func (d *Dispatcher) timeoutErr(intent contractx.Intent) error {
	return fmt.Errorf("%w: %s not resolved within %s", contractx.ErrToolInvocation, intent, d.limits.QueryTimeout)
}

func (d *Dispatcher) lookup(ctx context.Context, gs *GraphState) statex.Outcome {
	res, err := d.dataFor(gs.RC, contractx.IntentLookup).Execute(ctx, contractx.OpGetCustomer, map[string]any{
		"customer_id": gs.CustomerID,
	})
	if err != nil {
		return statex.Outcome{Err: err}
	}
	return statex.Outcome{Data: &res}
}

func (d *Dispatcher) update(ctx context.Context, gs *GraphState) statex.Outcome {
	fields := gs.Params.UpdateFields()
	if len(fields) == 0 {
		return statex.Outcome{Err: fmt.Errorf("%w: no field to update was found in the request", contractx.ErrValidation)}
	}
	fields["customer_id"] = gs.CustomerID
	res, err := d.dataFor(gs.RC, contractx.IntentUpdate).Execute(ctx, contractx.OpUpdateCustomer, fields)
	if err != nil {
		return statex.Outcome{Err: err}
	}
	return statex.Outcome{Data: &res}
}

func (d *Dispatcher) history(ctx context.Context, gs *GraphState) statex.Outcome {
	res, err := d.dataFor(gs.RC, contractx.IntentHistory).Execute(ctx, contractx.OpGetCustomerHistory, map[string]any{
		"customer_id": gs.CustomerID,
	})
	if err != nil {
		return statex.Outcome{Err: err}
	}
	return statex.Outcome{Data: &res, Tickets: res.Tickets}
}

// list answers customer listings. A ticket filter turns it into a two step
// coordination: list the customers, then read every customer's history
// concurrently and keep the ones with matching tickets.
func (d *Dispatcher) list(ctx context.Context, gs *GraphState) statex.Outcome {
	data := d.dataFor(gs.RC, contractx.IntentList)
	filter := gs.Params.List

	res, err := d.listCustomers(ctx, data, filter.CustomerStatus)
	if err != nil {
		return statex.Outcome{Err: err}
	}
	customers := res.Customers
	if !filter.NeedsTickets() {
		return statex.Outcome{Data: &res, Customers: customers}
	}

	matches := make([][]contractx.Ticket, len(customers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.limits.FanOut)
	for i, c := range customers {
		g.Go(func() error {
			h, err := data.Execute(gctx, contractx.OpGetCustomerHistory, map[string]any{"customer_id": c.ID})
			if err != nil {
				return err
			}
			matches[i] = filter.Matching(h.Tickets)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return statex.Outcome{Err: err}
	}

	out := statex.Outcome{Data: &res, Customers: make([]contractx.Customer, 0, len(customers))}
	for i, c := range customers {
		if len(matches[i]) == 0 {
			continue
		}
		out.Customers = append(out.Customers, c)
		out.Tickets = append(out.Tickets, matches[i]...)
	}
	return out
}

// listCustomers pushes the status filter to the store. Inactive accounts may
// still carry the legacy "disabled" status, so both are listed and merged
// newest first.
func (d *Dispatcher) listCustomers(ctx context.Context, data contractx.DataExecutor, status contractx.CustomerStatus) (contractx.DataResult, error) {
	var native []string
	switch status {
	case "":
		native = []string{""}
	case contractx.CustomerInactive:
		native = []string{string(contractx.CustomerInactive), legacyDisabled}
	default:
		native = []string{string(status)}
	}

	results := make([]contractx.DataResult, len(native))
	g, gctx := errgroup.WithContext(ctx)
	for i, st := range native {
		g.Go(func() error {
			params := map[string]any{"limit": d.limits.ListLimit}
			if st != "" {
				params["status"] = st
			}
			res, err := data.Execute(gctx, contractx.OpListCustomers, params)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return contractx.DataResult{}, err
	}
	if len(results) == 1 {
		return results[0], nil
	}

	merged := contractx.DataResult{Operation: contractx.OpListCustomers}
	seen := make(map[int64]bool)
	for _, res := range results {
		merged.Attempts = max(merged.Attempts, res.Attempts)
		for _, c := range res.Customers {
			if !seen[c.ID] {
				seen[c.ID] = true
				merged.Customers = append(merged.Customers, c)
			}
		}
	}
	slices.SortFunc(merged.Customers, func(a, b contractx.Customer) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if len(merged.Customers) > d.limits.ListLimit {
		merged.Customers = merged.Customers[:d.limits.ListLimit]
	}
	return merged, nil
}

// escalate gathers the account and its tickets for the Support Agent so it
// can decide between updating a referenced ticket and opening a new one.
func (d *Dispatcher) escalate(ctx context.Context, gs *GraphState) statex.Outcome {
	account, tickets, err := d.accountContext(ctx, gs, contractx.IntentEscalate)
	if err != nil {
		return statex.Outcome{Err: err}
	}
	res, err := d.callSupport(ctx, gs.RC, contractx.IntentEscalate, contractx.SupportContext{
		Query:      gs.RC.Query,
		CustomerID: gs.CustomerID,
		Customer:   account.Customer,
		Tickets:    tickets,
		TicketID:   gs.Params.TicketID,
		Issue:      gs.RC.Query,
	})
	if err != nil {
		return statex.Outcome{Data: &account, Err: err}
	}
	if res.Escalated {
		gs.RC.MarkEscalated()
	}
	return statex.Outcome{Data: &account, Support: &res}
}

func (d *Dispatcher) upgrade(ctx context.Context, gs *GraphState) statex.Outcome {
	account, err := d.dataFor(gs.RC, contractx.IntentUpgrade).Execute(ctx, contractx.OpGetCustomer, map[string]any{
		"customer_id": gs.CustomerID,
	})
	if err != nil {
		return statex.Outcome{Err: err}
	}
	res, err := d.callSupport(ctx, gs.RC, contractx.IntentUpgrade, contractx.SupportContext{
		Query:      gs.RC.Query,
		CustomerID: gs.CustomerID,
		Customer:   account.Customer,
	})
	if err != nil {
		return statex.Outcome{Data: &account, Err: err}
	}
	return statex.Outcome{Data: &account, Support: &res}
}

// mixed is general support. When the Support Agent answers with an
// escalation signal the Router forces the escalation path with the context it
// already holds.
func (d *Dispatcher) mixed(ctx context.Context, gs *GraphState) statex.Outcome {
	account, tickets, err := d.accountContext(ctx, gs, contractx.IntentMixed)
	if err != nil {
		return statex.Outcome{Err: err}
	}
	sc := contractx.SupportContext{
		Query:      gs.RC.Query,
		CustomerID: gs.CustomerID,
		Customer:   account.Customer,
		Tickets:    tickets,
		TicketID:   gs.Params.TicketID,
	}
	res, err := d.callSupport(ctx, gs.RC, contractx.IntentMixed, sc)
	sig, forced := contractx.AsEscalation(err)
	if err != nil && !forced {
		return statex.Outcome{Data: &account, Err: err}
	}
	if !forced {
		return statex.Outcome{Data: &account, Support: &res}
	}

	d.logger.Info().
		Str("query_id", gs.RC.QueryID).
		Int64("customer_id", sig.CustomerID).
		Str("reason", sig.Reason).
		Msg("escalation forced")
	sc.Issue = fmt.Sprintf("%s (%s)", gs.RC.Query, sig.Reason)
	res, err = d.callSupport(ctx, gs.RC, contractx.IntentEscalate, sc)
	if err != nil {
		return statex.Outcome{Data: &account, Err: err}
	}
	gs.RC.MarkEscalated()
	return statex.Outcome{
		Data:    &account,
		Support: &res,
		Notes:   []string{fmt.Sprintf("Escalated automatically: %s.", sig.Reason)},
	}
}

// accountContext reads the customer and their tickets concurrently.
func (d *Dispatcher) accountContext(ctx context.Context, gs *GraphState, intent contractx.Intent) (contractx.DataResult, []contractx.Ticket, error) {
	data := d.dataFor(gs.RC, intent)

	var account, history contractx.DataResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		account, err = data.Execute(gctx, contractx.OpGetCustomer, map[string]any{"customer_id": gs.CustomerID})
		return err
	})
	g.Go(func() error {
		var err error
		history, err = data.Execute(gctx, contractx.OpGetCustomerHistory, map[string]any{"customer_id": gs.CustomerID})
		return err
	})
	if err := g.Wait(); err != nil {
		return contractx.DataResult{}, nil, err
	}
	return account, history.Tickets, nil
}
