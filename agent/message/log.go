package message

import (
	"errors"
	"fmt"
	"sync"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
	"github.com/rs/zerolog"
)

var ErrDuplicateID = errors.New("message id already logged")

// Log is the append-only run log. Safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	entries []*Message
	seen    map[string]struct{}
	logger  zerolog.Logger
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{
		seen:   make(map[string]struct{}),
		logger: logger,
	}
}

func (l *Log) Append(m *Message) error {
	if m == nil {
		return fmt.Errorf("%w: nil message", ErrInvalidEnvelope)
	}

	l.mu.Lock()
	if _, dup := l.seen[m.id]; dup {
		l.mu.Unlock()
		return fmt.Errorf("%w: id=%s", ErrDuplicateID, m.id)
	}
	l.seen[m.id] = struct{}{}
	l.entries = append(l.entries, m)
	l.mu.Unlock()

	l.logger.Debug().
		Str("message_id", m.id).
		Str("correlation_id", m.correlationID).
		Str("sender", string(m.sender)).
		Str("receiver", string(m.receiver)).
		Str("kind", string(m.kind)).
		Str("intent", string(m.intent)).
		Msg("message logged")
	return nil
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Messages returns the logged messages in append order.
func (l *Log) Messages() []*Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Message, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Records() []contractx.MessageRecord {
	msgs := l.Messages()
	out := make([]contractx.MessageRecord, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Record())
	}
	return out
}
