package kafkasink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing deadline")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestSinkPublishesJSON(t *testing.T) {
	w := &fakeWriter{}
	s := newSink(w, Config{Topic: "auth.audit"}, nil)

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.Emit(context.Background(), goToken.AuditEvent{
		Timestamp: at,
		EventType: "login",
		UserID:    "u1",
		RequestID: "req-1",
		Success:   true,
	})

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	require.Equal(t, []byte("u1"), msg.Key)
	require.Equal(t, at, msg.Time)
	require.Equal(t, []kafka.Header{
		{Key: "event_type", Value: []byte("login")},
		{Key: "request_id", Value: []byte("req-1")},
	}, msg.Headers)

	var got goToken.AuditEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	require.Equal(t, "login", got.EventType)
	require.True(t, got.Success)

	require.NoError(t, s.Close())
	require.True(t, w.closed)
}

func TestSinkLogsWriteFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	w := &fakeWriter{err: errors.New("broker down")}
	s := newSink(w, Config{Topic: "auth.audit"}, zap.New(core))

	s.Emit(context.Background(), goToken.AuditEvent{EventType: "refresh", UserID: "u1"})

	entries := logs.FilterMessage("kafka write failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, "audit.kafka", entries[0].ContextMap()["component"])
}
