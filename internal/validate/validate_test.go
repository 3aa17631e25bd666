package validate

import (
	"strings"
	"testing"
)

func TestStringRequired(t *testing.T) {
	if err := String("name", "", 1, 10, true); err == nil {
		t.Error("expected error for empty required string")
	}
	if err := String("name", "", 1, 10, false); err != nil {
		t.Errorf("optional empty string should be valid, got %v", err)
	}
}

func TestStringLength(t *testing.T) {
	if err := String("name", "ab", 3, 10, true); err == nil {
		t.Error("expected error for too-short string")
	}
	if err := String("name", strings.Repeat("x", 11), 1, 10, true); err == nil {
		t.Error("expected error for too-long string")
	}
	if err := String("name", "hello", 1, 10, true); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
}

func TestNumberCoercion(t *testing.T) {
	if _, err := Number("temperature", "abc", 0, 2, true); err == nil {
		t.Error("expected error for non-numeric input")
	}
	v, err := Number("temperature", "1.5", 0, 2, true)
	if err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	if v != 1.5 {
		t.Errorf("expected 1.5, got %g", v)
	}
}

func TestNumberRange(t *testing.T) {
	if _, err := Number("temperature", "3.5", 0, 2, true); err == nil {
		t.Error("expected error for out-of-range value")
	}
	if _, err := Number("temperature", "-0.1", 0, 2, true); err == nil {
		t.Error("expected error for value below minimum")
	}
}

func TestIntRange(t *testing.T) {
	if _, err := Int("memory", "0", 1, 100, true); err == nil {
		t.Error("expected error for value below minimum")
	}
	if _, err := Int("memory", "2.5", 1, 100, true); err == nil {
		t.Error("expected error for non-integer input")
	}
	v, err := Int("memory", "50", 1, 100, true)
	if err != nil || v != 50 {
		t.Errorf("expected 50, got %d err %v", v, err)
	}
}

func TestEnum(t *testing.T) {
	allowed := []string{"openai", "mistral"}
	if err := Enum("provider", "MISTRAL", allowed, true); err != nil {
		t.Errorf("enum match should be case-insensitive, got %v", err)
	}
	if err := Enum("provider", "claude", allowed, true); err == nil {
		t.Error("expected error for unknown enum value")
	}
}

func TestBlob(t *testing.T) {
	if err := Blob("audio", make([]byte, 11), 10, true); err == nil {
		t.Error("expected error for oversized blob")
	}
	if err := Blob("audio", nil, 10, false); err != nil {
		t.Errorf("optional empty blob should be valid, got %v", err)
	}
	if err := Blob("audio", nil, 10, true); err == nil {
		t.Error("expected error for empty required blob")
	}
}

func TestErrorMessageIsUserFacing(t *testing.T) {
	_, err := Number("temperature", "3.5", 0, 2, true)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "temperature") || !strings.Contains(msg, "between 0 and 2") {
		t.Errorf("message should name the field and its range, got %q", msg)
	}
}
