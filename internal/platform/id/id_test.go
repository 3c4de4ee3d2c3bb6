package id

import (
	"net/http"
	"strings"
	"testing"
)

func decode(t *testing.T, value string) []byte {
	t.Helper()
	raw, err := encoding.DecodeString(strings.ToUpper(value))
	if err != nil {
		t.Fatalf("decode %q: %v", value, err)
	}
	return raw
}

func TestNewIDIsCookieSafe(t *testing.T) {
	for range 50 {
		value, err := NewID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if len(value) != 26 {
			t.Fatalf("id %q has length %d, want 26", value, len(value))
		}
		if value != strings.ToLower(value) || strings.ContainsAny(value, "=;, \"") {
			t.Fatalf("id %q is not a bare lowercase token", value)
		}
		cookie := &http.Cookie{Name: "sessionstore.sid", Value: value}
		if err := cookie.Valid(); err != nil {
			t.Fatalf("id %q rejected as cookie value: %v", value, err)
		}
		if got := cookie.String(); got != "sessionstore.sid="+value {
			t.Fatalf("cookie header = %q, want value unquoted", got)
		}
	}
}

func TestNewIDCarriesUUIDv4Bits(t *testing.T) {
	value, err := NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	raw := decode(t, value)
	if len(raw) != 16 {
		t.Fatalf("decoded %d bytes, want 16", len(raw))
	}
	if raw[6]>>4 != 4 || raw[8]&0xC0 != 0x80 {
		t.Fatalf("version/variant bits = %x/%x", raw[6], raw[8])
	}
}

func TestNewIDIsUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		value, err := NewID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if _, ok := seen[value]; ok {
			t.Fatalf("duplicate id %q", value)
		}
		seen[value] = struct{}{}
	}
}
