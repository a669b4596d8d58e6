package types

import (
	"context"
	"testing"
)

// mockLogger implements the Logger interface for testing purposes.
type mockLogger struct {
	messages []string
}

func (m *mockLogger) Info(msg string, args ...any)  { m.messages = append(m.messages, "info:"+msg) }
func (m *mockLogger) Error(msg string, args ...any) { m.messages = append(m.messages, "error:"+msg) }
func (m *mockLogger) Warn(msg string, args ...any)  { m.messages = append(m.messages, "warn:"+msg) }
func (m *mockLogger) With(args ...any) Logger       { return m }

func TestWithRequestID_GetRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID() = %q, want %q", got, "req-123")
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() on empty context = %q, want empty", got)
	}
}

func TestWithLogger_LoggerFromContext(t *testing.T) {
	if LoggerFromContext(context.Background()) != nil {
		t.Fatal("expected nil logger on empty context")
	}

	l := &mockLogger{}
	ctx := WithLogger(context.Background(), l)
	got := LoggerFromContext(ctx)
	if got == nil {
		t.Fatal("expected logger from context")
	}
	got.Info("hello")
	if len(l.messages) != 1 || l.messages[0] != "info:hello" {
		t.Errorf("messages = %v", l.messages)
	}
}

func TestWithCallingService(t *testing.T) {
	if _, ok := GetCallingService(context.Background()); ok {
		t.Error("expected no calling service on empty context")
	}
	if _, ok := GetCallingService(WithCallingService(context.Background(), "")); ok {
		t.Error("empty service name should report not ok")
	}
	name, ok := GetCallingService(WithCallingService(context.Background(), "ccd_data"))
	if !ok || name != "ccd_data" {
		t.Errorf("GetCallingService() = %q, %v", name, ok)
	}
}
