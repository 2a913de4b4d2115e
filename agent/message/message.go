package message

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
)

var (
	ErrInvalidEnvelope = errors.New("invalid message envelope")
	ErrNotRequest      = errors.New("only a request can be answered")
)

// Message is an immutable unit of inter-agent communication. Fields are only
// readable through getters; every step is a new Message.
type Message struct {
	id            string
	correlationID string
	sender        contractx.AgentRole
	receiver      contractx.AgentRole
	kind          contractx.MessageKind
	intent        contractx.Intent
	payload       map[string]any
	createdAt     time.Time
}

// NewRequest builds a Request with a fresh correlation id.
func NewRequest(sender, receiver contractx.AgentRole, intent contractx.Intent, payload map[string]any) (*Message, error) {
	return build(uuid.NewString(), sender, receiver, contractx.KindRequest, intent, payload)
}

// Reply answers req with a Response carrying the same correlation id and intent.
func Reply(req *Message, payload map[string]any) (*Message, error) {
	if req == nil || req.kind != contractx.KindRequest {
		return nil, ErrNotRequest
	}
	return build(req.correlationID, req.receiver, req.sender, contractx.KindResponse, req.intent, payload)
}

// Fail answers req with an Error message. The error is flattened to code and text.
func Fail(req *Message, cause error) (*Message, error) {
	if req == nil || req.kind != contractx.KindRequest {
		return nil, ErrNotRequest
	}
	payload := map[string]any{
		"code":  contractx.ErrorCode(cause),
		"error": errText(cause),
	}
	return build(req.correlationID, req.receiver, req.sender, contractx.KindError, req.intent, payload)
}

func build(
	correlationID string,
	sender, receiver contractx.AgentRole,
	kind contractx.MessageKind,
	intent contractx.Intent,
	payload map[string]any,
) (*Message, error) {
	if !sender.Valid() {
		return nil, fmt.Errorf("%w: sender=%q", ErrInvalidEnvelope, sender)
	}
	if !receiver.Valid() {
		return nil, fmt.Errorf("%w: receiver=%q", ErrInvalidEnvelope, receiver)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: kind=%q", ErrInvalidEnvelope, kind)
	}
	if !intent.Valid() {
		return nil, fmt.Errorf("%w: intent=%q", ErrInvalidEnvelope, intent)
	}
	if correlationID == "" {
		return nil, fmt.Errorf("%w: correlation id is empty", ErrInvalidEnvelope)
	}

	return &Message{
		id:            uuid.NewString(),
		correlationID: correlationID,
		sender:        sender,
		receiver:      receiver,
		kind:          kind,
		intent:        intent,
		payload:       maps.Clone(payload),
		createdAt:     time.Now().UTC(),
	}, nil
}

func (m *Message) ID() string                    { return m.id }
func (m *Message) CorrelationID() string         { return m.correlationID }
func (m *Message) Sender() contractx.AgentRole   { return m.sender }
func (m *Message) Receiver() contractx.AgentRole { return m.receiver }
func (m *Message) Kind() contractx.MessageKind   { return m.kind }
func (m *Message) Intent() contractx.Intent      { return m.intent }
func (m *Message) CreatedAt() time.Time          { return m.createdAt }
func (m *Message) IsError() bool                 { return m.kind == contractx.KindError }

// Payload returns a shallow copy of the payload.
func (m *Message) Payload() map[string]any { return maps.Clone(m.payload) }

// Record is the serializable view used in traces.
func (m *Message) Record() contractx.MessageRecord {
	return contractx.MessageRecord{
		ID:            m.id,
		CorrelationID: m.correlationID,
		Sender:        m.sender,
		Receiver:      m.receiver,
		Kind:          m.kind,
		Intent:        m.intent,
		Payload:       maps.Clone(m.payload),
		CreatedAt:     m.createdAt,
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
