package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	toolx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/tool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Server answers protocol requests. It keeps no per-client state, so any call
// may be replayed verbatim.
type Server struct {
	name   string
	exec   toolx.Executor
	logger zerolog.Logger
}

type ServerOption func(*Server)

func WithServerName(name string) ServerOption {
	return func(s *Server) {
		if name != "" {
			s.name = name
		}
	}
}

func WithServerLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func NewServer(exec toolx.Executor, opts ...ServerOption) *Server {
	s := &Server{
		name:   "customer-records",
		exec:   exec,
		logger: log.Logger.With().Str("component", "tool_server").Logger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// HandleJSON decodes one request, dispatches it and encodes the response.
func (s *Server) HandleJSON(ctx context.Context, raw []byte) []byte {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return mustEncode(errorResponse("", contractx.CodeValidation, "malformed request: "+err.Error()))
	}
	return mustEncode(s.Handle(ctx, req))
}

func (s *Server) Handle(ctx context.Context, req Request) Response {
	switch req.Op {
	case MethodInitialize:
		return resultResponse(req.ID, InitializeResult{
			ProtocolVersion: Version,
			ServerName:      s.name,
			Operations:      toolx.Names(),
		})
	case MethodList:
		return resultResponse(req.ID, ListResult{Operations: toolx.Catalog()})
	case MethodCall:
		return s.call(ctx, req)
	default:
		return errorResponse(req.ID, contractx.CodeUnknownOperation, fmt.Sprintf("unknown op %q", req.Op))
	}
}

func (s *Server) call(ctx context.Context, req Request) Response {
	var params CallParams
	if len(req.Params) == 0 {
		return errorResponse(req.ID, contractx.CodeValidation, "operations/call requires params")
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, contractx.CodeValidation, "malformed params: "+err.Error())
	}
	spec, ok := toolx.Lookup(params.Operation)
	if !ok {
		return errorResponse(req.ID, contractx.CodeUnknownOperation, fmt.Sprintf("unknown operation %q", params.Operation))
	}
	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	}
	if err := Validate(spec, params.Arguments); err != nil {
		return errorResponse(req.ID, contractx.CodeValidation, err.Error())
	}

	started := time.Now()
	result, err := s.exec(ctx, params.Operation, params.Arguments)
	code := codeFor(err)

	logEvent := s.logger.Debug()
	if err != nil {
		logEvent = s.logger.Warn().Err(err)
	}
	logEvent.
		Str("request_id", req.ID).
		Str("operation", string(params.Operation)).
		Str("code", code).
		Dur("duration", time.Since(started)).
		Msg("operation served")

	if err != nil {
		return errorResponse(req.ID, code, err.Error())
	}
	return resultResponse(req.ID, result)
}

func codeFor(err error) string {
	if errors.Is(err, toolx.ErrUnknownOperation) {
		return contractx.CodeUnknownOperation
	}
	return contractx.ErrorCode(err)
}

func resultResponse(id string, result any) Response {
	raw, err := json.Marshal(result)
	if err != nil {
		return errorResponse(id, contractx.CodeInternal, "encode result: "+err.Error())
	}
	return Response{ID: id, Result: raw}
}

func errorResponse(id, code, message string) Response {
	return Response{ID: id, Error: &ErrorObject{Code: code, Message: message}}
}

func mustEncode(resp Response) []byte {
	raw, err := json.Marshal(resp)
	if err != nil {
		raw, _ = json.Marshal(errorResponse(resp.ID, contractx.CodeInternal, "encode response"))
	}
	return raw
}
