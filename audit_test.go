package goToken

import (
	"bytes"
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, AuditEvent) {
	<-s.release
}

type panicSink struct {
	calls atomic.Int64
}

func (s *panicSink) Emit(context.Context, AuditEvent) {
	s.calls.Add(1)
	panic("sink exploded")
}

func TestAuditDispatcherDisabledIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, &countingSink{}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestAuditDispatcherDrainsOnClose(t *testing.T) {
	sink := &countingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 64}, sink, nil)
	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditEventLogout})
	}
	d.Close()

	if got := sink.count.Load(); got != 50 {
		t.Fatalf("expected 50 delivered events, got %d", got)
	}
	d.Emit(context.Background(), AuditEvent{EventType: auditEventLogout})
	if got := sink.count.Load(); got != 50 {
		t.Fatal("emit after close must be ignored")
	}
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, nil)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditEventLoginFailure})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a stalled sink")
	}
	close(sink.release)
	d.Close()
}

func TestAuditDispatcherBlockingRespectsContext(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1}, sink, nil)

	d.Emit(context.Background(), AuditEvent{})
	d.Emit(context.Background(), AuditEvent{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		d.Emit(ctx, AuditEvent{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit did not honor context cancellation")
	}
	if d.Dropped() != 1 {
		t.Fatalf("expected one drop, got %d", d.Dropped())
	}
	close(sink.release)
	d.Close()
}

func TestAuditDispatcherSurvivesPanickingSink(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sink := &panicSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink, zap.New(core))

	d.Emit(context.Background(), AuditEvent{EventType: auditEventLoginSuccess})
	d.Emit(context.Background(), AuditEvent{EventType: auditEventLogout})
	d.Close()

	if sink.calls.Load() != 2 {
		t.Fatalf("expected dispatcher to keep delivering, got %d calls", sink.calls.Load())
	}
	if logs.FilterMessage("audit sink panicked").Len() != 2 {
		t.Fatalf("expected two panic logs, got %d", logs.Len())
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{EventType: auditEventRefreshInvalid, UserID: "u1", Error: "token_mismatch"})

	var got AuditEvent
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.EventType != auditEventRefreshInvalid || got.UserID != "u1" || got.Error != "token_mismatch" {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), AuditEvent{EventType: auditEventLoginSuccess, Success: true, UserID: "u1"})
	sink.Emit(context.Background(), AuditEvent{EventType: auditEventLoginFailure, Error: "invalid_credentials"})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
	if entries[0].Level != zap.InfoLevel || entries[1].Level != zap.WarnLevel {
		t.Fatalf("unexpected levels %v %v", entries[0].Level, entries[1].Level)
	}
	if entries[0].ContextMap()["component"] != "audit" {
		t.Fatalf("missing component field: %v", entries[0].ContextMap())
	}
}
