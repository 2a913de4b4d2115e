// Package routernode holds the node functions of the Router graph. Every node
// takes and returns the per-query *GraphState.
package routernode

import (
	"strings"
	"time"

	"github.com/google/uuid"
	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	intentx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/intent"
	"github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/message"
	statex "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/state"
	"github.com/rs/zerolog"
)

type GraphInput struct {
	Query string
}

type GraphOutput struct {
	Response contractx.ComposedResponse
}

type GraphState struct {
	RC *statex.RouterContext

	Params     intentx.Params
	CustomerID int64
	Plan       []Step
	Conflicts  []Conflict

	// Request is the user's query as a message; the composed answer replies to it.
	Request *message.Message
}

// Limits bound one query's work.
type Limits struct {
	QueryTimeout      time.Duration
	DefaultCustomerID int64
	ListLimit         int
	FanOut            int
}

func (l Limits) withDefaults() Limits {
	if l.QueryTimeout <= 0 {
		l.QueryTimeout = 5 * time.Second
	}
	if l.DefaultCustomerID < 1 {
		l.DefaultCustomerID = 1
	}
	if l.ListLimit < 1 {
		l.ListLimit = 20
	}
	if l.FanOut < 1 {
		l.FanOut = 4
	}
	return l
}

func ValidateRequest(in GraphInput, logger zerolog.Logger, nowFn func() time.Time) (*GraphState, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, contractx.ErrInvalidQuery
	}

	queryID := uuid.NewString()
	trace := message.NewLog(logger.With().Str("query_id", queryID).Logger())
	return &GraphState{
		RC: statex.NewRouterContext(queryID, query, trace, nowFn()),
	}, nil
}
