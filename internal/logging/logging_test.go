package logging

import "testing"

func TestNew(t *testing.T) {
	if _, err := New("debug", "json"); err != nil {
		t.Fatalf("json logger: %v", err)
	}
	if _, err := New("", ""); err != nil {
		t.Fatalf("default logger: %v", err)
	}
	if _, err := New("loud", "console"); err == nil {
		t.Fatalf("expected invalid level error")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Fatalf("expected invalid format error")
	}
	if OrNop(nil) == nil {
		t.Fatalf("OrNop(nil) returned nil")
	}
}
