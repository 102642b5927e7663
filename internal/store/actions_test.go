package store

import "testing"

func TestNaturalKey(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		same bool
	}{
		{"identical titles", "Call mom", "Call mom", true},
		{"case folded", "Call Mom", "call mom", true},
		{"whitespace collapsed", "call   mom", "call mom", true},
		{"surrounding whitespace ignored", "  call mom  ", "call mom", true},
		{"different titles", "Call mom", "Call dad", false},
		{"word order matters", "mom call", "call mom", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka, kb := NaturalKey(tt.a), NaturalKey(tt.b)
			if (ka == kb) != tt.same {
				t.Errorf("NaturalKey(%q) == NaturalKey(%q) is %v, want %v", tt.a, tt.b, ka == kb, tt.same)
			}
		})
	}
}

func TestNaturalKey_IsHexDigest(t *testing.T) {
	key := NaturalKey("Call mom")
	if len(key) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(key))
	}
	for _, r := range key {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Fatalf("unexpected character %q in key", r)
		}
	}
}
