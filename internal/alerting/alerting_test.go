package alerting

import (
	"context"
	"testing"
)

func TestNewWithoutCredentialsIsNoop(t *testing.T) {
	sink := New("", "", nil)
	if _, ok := sink.(*noopSink); !ok {
		t.Fatalf("expected a noopSink when bot token/chat id are empty, got %T", sink)
	}
	// Must not panic even though nothing is configured.
	sink.Notify(context.Background(), "test message")
}

func TestParseChatID(t *testing.T) {
	id, err := parseChatID("123456789")
	if err != nil {
		t.Fatalf("parseChatID: %v", err)
	}
	if id != 123456789 {
		t.Errorf("parseChatID = %d, want 123456789", id)
	}

	if _, err := parseChatID("not-a-number"); err == nil {
		t.Error("expected parseChatID to reject a non-numeric chat id")
	}
}
