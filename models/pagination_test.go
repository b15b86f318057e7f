package models

import "testing"

func TestCompositeCursorRoundTrip(t *testing.T) {
	cursor := EncodeCompositeCursor("2026-08-01T10:00:00Z", 42)
	value, id := DecodeCompositeCursor(&cursor)
	if value != "2026-08-01T10:00:00Z" || id != 42 {
		t.Fatalf("round trip broken: %q %d", value, id)
	}
}

func TestDecodeCompositeCursor_Garbage(t *testing.T) {
	for _, raw := range []string{"", "not-base64!!", "bm9waXBl"} {
		raw := raw
		value, id := DecodeCompositeCursor(&raw)
		if value != "" || id != 0 {
			t.Fatalf("expected zero values for %q, got %q %d", raw, value, id)
		}
	}
	if value, id := DecodeCompositeCursor(nil); value != "" || id != 0 {
		t.Fatalf("expected zero values for nil cursor")
	}
}
