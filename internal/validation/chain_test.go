package validation

import (
	"strings"
	"testing"
)

func TestSizeValidator(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		max    int64
		wantOK bool
	}{
		{"under the cap", make([]byte, 10), 100, true},
		{"exactly at the cap", make([]byte, 100), 100, true},
		{"over the cap", make([]byte, 101), 100, false},
		{"empty blob", nil, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := SizeValidator{Max: tt.max}.Validate(tt.data, Meta{})
			if ok != tt.wantOK {
				t.Errorf("Validate() ok = %v, want %v", ok, tt.wantOK)
			}
			if !tt.wantOK {
				// Message carries both the actual and the maximum
				if !strings.Contains(msg, "101") || !strings.Contains(msg, "100") {
					t.Errorf("Message %q missing actual or max size", msg)
				}
			}
		})
	}
}

func TestMimeAllowlistValidator(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		mime    string
		wantOK  bool
	}{
		{"empty list permits all", nil, "application/x-anything", true},
		{"empty list permits missing mime", nil, "", true},
		{"exact match", []string{"application/pdf"}, "application/pdf", true},
		{"exact mismatch", []string{"application/pdf"}, "image/png", false},
		{"category wildcard match", []string{"image/*"}, "image/png", true},
		{"category wildcard mismatch", []string{"image/*"}, "video/mp4", false},
		{"mixed list second entry", []string{"application/pdf", "image/*"}, "image/webp", true},
		{"missing mime fails non-empty list", []string{"image/*"}, "", false},
		{"case insensitive", []string{"image/PNG"}, "IMAGE/png", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := MimeAllowlistValidator{Allowed: tt.allowed}
			ok, msg := v.Validate(nil, Meta{MimeType: tt.mime})
			if ok != tt.wantOK {
				t.Errorf("Validate() ok = %v (msg %q), want %v", ok, msg, tt.wantOK)
			}
		})
	}
}

func TestChainShortCircuits(t *testing.T) {
	// Oversized blob with a disallowed type: the size message must win
	// because the size validator runs first.
	chain := Chain{
		SizeValidator{Max: 4},
		MimeAllowlistValidator{Allowed: []string{"image/*"}},
	}

	ok, msg := chain.Validate([]byte("too big"), Meta{MimeType: "text/plain"})
	if ok {
		t.Fatal("Chain passed an upload that fails both validators")
	}
	if !strings.Contains(msg, "too large") && !strings.Contains(msg, "File too large") {
		t.Errorf("Expected the size failure message first, got %q", msg)
	}

	// A compliant upload passes the whole chain
	ok, msg = chain.Validate([]byte("ok"), Meta{MimeType: "image/png"})
	if !ok {
		t.Errorf("Chain rejected a compliant upload: %q", msg)
	}

	// An empty chain accepts anything
	if ok, _ := (Chain{}).Validate([]byte("x"), Meta{}); !ok {
		t.Error("Empty chain rejected an upload")
	}
}
