package webchat

import (
	"log/slog"
	"strings"
	"testing"
)

func TestName(t *testing.T) {
	adapter := NewWebchatAdapter(18701, slog.Default())
	if adapter.Name() != "webchat" {
		t.Errorf("expected name webchat, got %s", adapter.Name())
	}
}

func TestIsEnabled(t *testing.T) {
	if !NewWebchatAdapter(18701, slog.Default()).IsEnabled() {
		t.Error("adapter with a port should be enabled")
	}
	if NewWebchatAdapter(0, slog.Default()).IsEnabled() {
		t.Error("adapter without a port should be disabled")
	}
}

func TestNormalizeID(t *testing.T) {
	if got := normalizeID("web:abc"); got != "web:abc" {
		t.Errorf("prefixed id should pass through, got %q", got)
	}
	if got := normalizeID("abc"); got != "web:abc" {
		t.Errorf("bare id should gain the web prefix, got %q", got)
	}
	minted := normalizeID("")
	if !strings.HasPrefix(minted, "web:") || len(minted) <= len("web:") {
		t.Errorf("empty id should mint a fresh one, got %q", minted)
	}
	if normalizeID("") == normalizeID("") {
		t.Error("minted ids should be unique")
	}
}

func TestSendToUnknownSessionIsNoop(t *testing.T) {
	adapter := NewWebchatAdapter(18701, slog.Default())
	if err := adapter.SendMessage("web:gone", nil); err != nil {
		t.Errorf("sending to a disconnected session should not error, got %v", err)
	}
}
