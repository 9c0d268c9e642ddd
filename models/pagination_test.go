package models

import (
	"testing"
)

func TestCompositeCursorRoundTrip(t *testing.T) {
	encoded := EncodeCompositeCursor("2026-03-15 10:30:00", 42)

	createdAt, id := DecodeCompositeCursor(&encoded)
	if createdAt != "2026-03-15 10:30:00" {
		t.Fatalf("createdAt: got %q", createdAt)
	}
	if id != 42 {
		t.Fatalf("id: got %d", id)
	}
}

func TestDecodeCompositeCursorInvalid(t *testing.T) {
	cases := map[string]*string{
		"nil cursor":   nil,
		"empty":        strPtr(""),
		"not base64":   strPtr("!!not-base64!!"),
		"no separator": strPtr(EncodeCursor("2026-03-15")),
		"bad id":       strPtr(EncodeCursor("2026-03-15|abc")),
	}

	for name, cursor := range cases {
		createdAt, id := DecodeCompositeCursor(cursor)
		if createdAt != "" || id != 0 {
			t.Errorf("%s: expected zero values, got %q/%d", name, createdAt, id)
		}
	}
}

func TestDecodeCursor(t *testing.T) {
	encoded := EncodeCursor("2026-03-15 10:30:00")
	decoded, err := DecodeCursor(&encoded)
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if decoded != "2026-03-15 10:30:00" {
		t.Fatalf("got %q", decoded)
	}

	decoded, err = DecodeCursor(nil)
	if err != nil || decoded != "" {
		t.Fatalf("nil cursor: got %q, %v", decoded, err)
	}

	bad := "!!not-base64!!"
	if _, err := DecodeCursor(&bad); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func strPtr(s string) *string {
	return &s
}
