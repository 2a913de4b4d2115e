// Package data implements the Data Agent: validated, retried tool invocations
// normalized into customer and ticket records.
package data

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/protocol"
	toolx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/tool"
	metricsx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/pkg/metrics"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/pkg/retry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ToolClient is the protocol surface the agent needs.
type ToolClient interface {
	Initialize(ctx context.Context) (protocol.InitializeResult, error)
	ListOperations(ctx context.Context) ([]toolx.OperationSpec, error)
	Call(ctx context.Context, op contractx.Operation, args map[string]any) (map[string]any, error)
}

type Option func(*Agent)

func WithRetryConfig(cfg retry.Config) Option {
	return func(a *Agent) { a.policy = retry.NewPolicy(cfg, contractx.Retryable) }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

func WithMetrics(m *metricsx.Recorder) Option {
	return func(a *Agent) { a.metrics = m }
}

type Agent struct {
	client  ToolClient
	policy  *retry.Policy
	logger  zerolog.Logger
	metrics *metricsx.Recorder

	mu      sync.Mutex
	schemas map[contractx.Operation]toolx.OperationSpec
}

var _ contractx.DataExecutor = (*Agent)(nil)

func New(client ToolClient, opts ...Option) (*Agent, error) {
	if client == nil {
		return nil, errors.New("tool client is required")
	}
	a := &Agent{
		client: client,
		policy: retry.NewPolicy(retry.DefaultConfig, contractx.Retryable),
		logger: log.Logger.With().Str("component", "data_agent").Logger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Execute validates params against the operation schema, invokes it with the
// bounded retry policy and normalizes the result. Validation and not-found
// errors are never retried.
func (a *Agent) Execute(ctx context.Context, op contractx.Operation, params map[string]any) (contractx.DataResult, error) {
	spec, err := a.schema(ctx, op)
	if err != nil {
		return contractx.DataResult{}, err
	}
	args := maps.Clone(params)
	if args == nil {
		args = map[string]any{}
	}
	if err := protocol.Validate(spec, args); err != nil {
		a.metrics.ObserveToolCall(string(op), contractx.CodeValidation, 0, 0)
		return contractx.DataResult{}, err
	}

	started := time.Now()
	var raw map[string]any
	attempts, err := a.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		out, callErr := a.client.Call(ctx, op, args)
		if callErr != nil {
			a.logger.Debug().Err(callErr).
				Str("operation", string(op)).
				Int("attempt", attempt).
				Msg("tool call failed")
			return callErr
		}
		raw = out
		return nil
	})
	if err != nil {
		err = surface(op, attempts, err)
	}

	var result contractx.DataResult
	if err == nil {
		result, err = normalize(op, raw)
		result.Attempts = attempts
	}

	code := contractx.ErrorCode(err)
	a.metrics.ObserveToolCall(string(op), code, attempts, time.Since(started))
	event := a.logger.Debug()
	if err != nil {
		event = a.logger.Warn().Err(err)
	}
	event.
		Str("operation", string(op)).
		Int("attempts", attempts).
		Str("code", code).
		Dur("duration", time.Since(started)).
		Msg("tool call finished")

	if err != nil {
		return contractx.DataResult{}, err
	}
	return result, nil
}

// surface turns exhausted transient failures into a ToolInvocationError. The
// transient cause is kept as text so the Router never sees it as retryable.
func surface(op contractx.Operation, attempts int, err error) error {
	switch {
	case errors.Is(err, retry.ErrExhausted), errors.Is(err, contractx.ErrUnavailable):
		return fmt.Errorf("%w: %s failed after %d attempts: %v", contractx.ErrToolInvocation, op, attempts, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %s: %w", contractx.ErrToolInvocation, op, err)
	default:
		return err
	}
}

// schema returns the declared parameters of op, running the handshake on first use.
func (a *Agent) schema(ctx context.Context, op contractx.Operation) (toolx.OperationSpec, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.schemas == nil {
		schemas := make(map[contractx.Operation]toolx.OperationSpec)
		_, err := a.policy.Do(ctx, func(ctx context.Context, _ int) error {
			if _, err := a.client.Initialize(ctx); err != nil {
				return err
			}
			specs, err := a.client.ListOperations(ctx)
			if err != nil {
				return err
			}
			for _, s := range specs {
				schemas[s.Name] = s
			}
			return nil
		})
		if err != nil {
			return toolx.OperationSpec{}, fmt.Errorf("%w: handshake: %v", contractx.ErrToolInvocation, err)
		}
		a.schemas = schemas
	}

	spec, ok := a.schemas[op]
	if !ok {
		return toolx.OperationSpec{}, fmt.Errorf("%w: operation %q is not offered by the tool endpoint", contractx.ErrValidation, op)
	}
	return spec, nil
}
