package stringutils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"short content unchanged", "Explain recursion", "Explain recursion"},
		{"exactly at limit", strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{"over limit gets ellipsis", strings.Repeat("b", 80), strings.Repeat("b", 50) + Ellipsis},
		{"multibyte counted as characters", strings.Repeat("é", 51), strings.Repeat("é", 50) + Ellipsis},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.content, 50))
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Work ", "ideas", "work", "", "  "})
	assert.Equal(t, []string{"ideas", "work"}, got)
	assert.Empty(t, NormalizeTags(nil))
}
