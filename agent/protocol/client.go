package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	toolx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/tool"
)

var ErrProtocol = errors.New("protocol violation")

type Client struct {
	name      string
	transport Transport
}

func NewClient(name string, transport Transport) *Client {
	return &Client{name: name, transport: transport}
}

func (c *Client) Initialize(ctx context.Context) (InitializeResult, error) {
	var out InitializeResult
	err := c.roundTrip(ctx, MethodInitialize, InitializeParams{ProtocolVersion: Version, ClientName: c.name}, &out)
	if err != nil {
		return InitializeResult{}, err
	}
	if out.ProtocolVersion != Version {
		return InitializeResult{}, fmt.Errorf("%w: %w: server speaks %q, want %q",
			contractx.ErrToolInvocation, ErrProtocol, out.ProtocolVersion, Version)
	}
	return out, nil
}

func (c *Client) ListOperations(ctx context.Context) ([]toolx.OperationSpec, error) {
	var out ListResult
	if err := c.roundTrip(ctx, MethodList, nil, &out); err != nil {
		return nil, err
	}
	return out.Operations, nil
}

// Call performs one self-contained operations/call round trip.
func (c *Client) Call(ctx context.Context, op contractx.Operation, args map[string]any) (map[string]any, error) {
	var out map[string]any
	if err := c.roundTrip(ctx, MethodCall, CallParams{Operation: op, Arguments: args}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func (c *Client) roundTrip(ctx context.Context, method string, params any, out any) error {
	req := Request{Op: method, ID: uuid.NewString()}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("%w: encode params: %w", contractx.ErrValidation, err)
		}
		req.Params = raw
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: encode request: %w", contractx.ErrToolInvocation, err)
	}

	respData, err := c.transport.RoundTrip(ctx, data)
	if err != nil {
		if errors.Is(err, contractx.ErrUnavailable) || errors.Is(err, contractx.ErrToolInvocation) {
			return err
		}
		return fmt.Errorf("%w: %w", contractx.ErrUnavailable, err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return fmt.Errorf("%w: %w: decode response: %w", contractx.ErrToolInvocation, ErrProtocol, err)
	}
	if resp.ID != req.ID {
		return fmt.Errorf("%w: %w: response id %q does not answer %q",
			contractx.ErrToolInvocation, ErrProtocol, resp.ID, req.ID)
	}
	if resp.Error != nil {
		return contractx.FromCode(resp.Error.Code, resp.Error.Message)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%w: %w: decode result: %w", contractx.ErrToolInvocation, ErrProtocol, err)
	}
	return nil
}
