package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/loqalabs/yapper/internal/eventstore"
	"github.com/loqalabs/yapper/internal/protocol"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type busSink struct {
	pub       Publisher
	sessionID string
	seq       int
}

// NewBus broadcasts each sentence of a session as protocol.Sentence.
func NewBus(pub Publisher, sessionID string) Sink {
	return &busSink{pub: pub, sessionID: sessionID}
}

func (b *busSink) Emit(_ context.Context, text string) error {
	msg := protocol.Sentence{
		SessionID: b.sessionID,
		Sequence:  b.seq,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	b.seq++
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal sentence: %w", err)
	}
	if err := b.pub.Publish(protocol.SubjectSentence, data); err != nil {
		return fmt.Errorf("publish sentence: %w", err)
	}
	return nil
}

// Appender is satisfied by *eventstore.Store.
type Appender interface {
	AppendEvent(ctx context.Context, evt eventstore.Event) error
}

type ledgerSink struct {
	store     Appender
	sessionID string
	seq       int
}

// NewLedger records each sentence of a session in the event store.
func NewLedger(store Appender, sessionID string) Sink {
	return &ledgerSink{store: store, sessionID: sessionID}
}

func (l *ledgerSink) Emit(ctx context.Context, text string) error {
	evt := eventstore.Event{
		SessionID: l.sessionID,
		Sequence:  l.seq,
		Type:      eventstore.EventSentenceEmitted,
		Payload:   []byte(text),
	}
	l.seq++
	if err := l.store.AppendEvent(ctx, evt); err != nil {
		return fmt.Errorf("record sentence: %w", err)
	}
	return nil
}
