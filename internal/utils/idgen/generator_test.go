package idgen

import (
	"strings"
	"testing"
)

func TestGenerateSecureID(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		length     int
		wantErr    bool
		wantPrefix string
	}{
		{
			name:       "generate conversation ID",
			prefix:     "conv",
			length:     16,
			wantPrefix: "conv_",
		},
		{
			name:       "generate short ID",
			prefix:     "test",
			length:     4,
			wantPrefix: "test_",
		},
		{
			name:       "generate long ID",
			prefix:     "test",
			length:     48,
			wantPrefix: "test_",
		},
		{
			name:    "zero length",
			prefix:  "conv",
			length:  0,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateSecureID(tt.prefix, tt.length)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GenerateSecureID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("GenerateSecureID() = %v, want prefix %v", got, tt.wantPrefix)
			}
			if want := len(tt.prefix) + 1 + tt.length; len(got) != want {
				t.Errorf("GenerateSecureID() length = %v, want %v", len(got), want)
			}
			if !ValidateIDFormat(got, tt.prefix) {
				t.Errorf("ValidateIDFormat(%q, %q) = false", got, tt.prefix)
			}
		})
	}
}

func TestGenerateSecureIDUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id, err := GenerateSecureID("conv", 16)
		if err != nil {
			t.Fatalf("GenerateSecureID() error = %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s after %d iterations", id, i)
		}
		seen[id] = struct{}{}
	}
}

func TestValidateIDFormat(t *testing.T) {
	tests := []struct {
		id     string
		prefix string
		want   bool
	}{
		{"conv_abc123", "conv", true},
		{"conv_", "conv", false},
		{"conv_ABC", "conv", false},
		{"msg_abc", "conv", false},
		{"conv-abc", "conv", false},
		{"", "conv", false},
	}

	for _, tt := range tests {
		if got := ValidateIDFormat(tt.id, tt.prefix); got != tt.want {
			t.Errorf("ValidateIDFormat(%q, %q) = %v, want %v", tt.id, tt.prefix, got, tt.want)
		}
	}
}
