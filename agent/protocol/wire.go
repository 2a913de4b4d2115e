// Package protocol implements the Tool Invocation Protocol between the Data Agent
// and the record store endpoint.
package protocol

import (
	"encoding/json"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	toolx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/tool"
)

const Version = "2025-06-18"

const (
	MethodInitialize = "initialize"
	MethodList       = "operations/list"
	MethodCall       = "operations/call"
)

type Request struct {
	Op     string          `json:"op"`
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorObject    `json:"error,omitempty"`
}

type ErrorObject struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type InitializeParams struct {
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

type InitializeResult struct {
	ProtocolVersion string                `json:"protocol_version"`
	ServerName      string                `json:"server_name"`
	Operations      []contractx.Operation `json:"operations"`
}

type ListResult struct {
	Operations []toolx.OperationSpec `json:"operations"`
}

type CallParams struct {
	Operation contractx.Operation `json:"operation"`
	Arguments map[string]any      `json:"arguments"`
}
