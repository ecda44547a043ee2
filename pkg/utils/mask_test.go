package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"short", "***"},
		{"12345678", "***"},
		{"123456789", "12345678..."},
		{"a-very-long-refresh-token-value", "a-very-l..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskToken(tt.in), "input %q", tt.in)
	}
}
