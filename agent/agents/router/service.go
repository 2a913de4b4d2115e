// Package router implements the Router Agent: it classifies a query, dispatches
// its intents to the Data and Support agents and composes one answer.
package router

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	nodex "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/nodes/router"
	metricsx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/pkg/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidQuery     = contractx.ErrInvalidQuery
	ErrDependencyFailed = nodex.ErrDependencyFailed
)

type Config struct {
	QueryTimeout      time.Duration `split_words:"true" default:"5s"`
	DefaultCustomerID int64         `split_words:"true" default:"1"`
	ListLimit         int           `split_words:"true" default:"20"`
	FanOut            int           `split_words:"true" default:"4"`
}

type Option func(*Router)

// WithClassifier sets the fallback used when no intent rule matches.
func WithClassifier(c contractx.IntentClassifier) Option {
	return func(r *Router) { r.classifier = c }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

func WithMetrics(m *metricsx.Recorder) Option {
	return func(r *Router) { r.metrics = m }
}

// WithTraceStore archives every finished query.
func WithTraceStore(s contractx.TraceStore) Option {
	return func(r *Router) { r.traces = s }
}

func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

type Router struct {
	data       contractx.DataExecutor
	support    contractx.SupportResolver
	classifier contractx.IntentClassifier
	traces     contractx.TraceStore
	dispatcher *nodex.Dispatcher

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	limits  nodex.Limits
	logger  zerolog.Logger
	metrics *metricsx.Recorder
	now     func() time.Time
}

func New(
	data contractx.DataExecutor,
	support contractx.SupportResolver,
	cfg Config,
	opts ...Option,
) (*Router, error) {
	if data == nil {
		return nil, errors.New("data executor is required")
	}
	if support == nil {
		return nil, errors.New("support resolver is required")
	}

	r := &Router{
		data:    data,
		support: support,
		limits: nodex.Limits{
			QueryTimeout:      cfg.QueryTimeout,
			DefaultCustomerID: cfg.DefaultCustomerID,
			ListLimit:         cfg.ListLimit,
			FanOut:            cfg.FanOut,
		},
		logger: log.Logger.With().Str("component", "router").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.dispatcher = nodex.NewDispatcher(r.data, r.support, r.limits, r.logger, r.metrics)

	graphRunner, err := r.compileHandleQueryGraph(context.Background())
	if err != nil {
		return nil, err
	}
	r.graphRunner = graphRunner

	return r, nil
}

// Handle resolves one query. The response is always usable: when the query
// failed it still carries the composed text and the trace, and the returned
// error is the cause.
func (r *Router) Handle(ctx context.Context, query string) (contractx.ComposedResponse, error) {
	started := r.now()

	out, err := r.graphRunner.Invoke(ctx, nodex.GraphInput{Query: query})
	if err != nil {
		resp := contractx.ComposedResponse{
			Query:     query,
			Status:    contractx.StatusFailed,
			Text:      "Your request could not be processed.",
			ErrorText: err.Error(),
			Err:       err,
		}
		if errors.Is(err, contractx.ErrInvalidQuery) {
			resp.Text = "Please tell us what you need help with."
		}
		r.metrics.ObserveQuery(string(resp.Status), r.now().Sub(started))
		r.logger.Warn().Err(err).Msg("query failed")
		return resp, err
	}

	resp := out.Response
	if r.traces != nil {
		if err := r.traces.SaveTrace(ctx, resp); err != nil {
			r.logger.Warn().Err(err).Str("query_id", resp.QueryID).Msg("trace archive failed")
		}
	}

	r.metrics.ObserveQuery(string(resp.Status), r.now().Sub(started))
	r.logger.Info().
		Str("query_id", resp.QueryID).
		Str("status", string(resp.Status)).
		Strs("intents", intentNames(resp.Intents)).
		Bool("escalated", resp.Escalated).
		Dur("elapsed", r.now().Sub(started)).
		Msg("query handled")
	return resp, resp.Err
}

func intentNames(intents []contractx.Intent) []string {
	out := make([]string, 0, len(intents))
	for _, in := range intents {
		out = append(out, string(in))
	}
	return out
}
