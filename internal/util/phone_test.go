package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already local", "09123456789", "09123456789"},
		{"plus prefix", "+989123456789", "09123456789"},
		{"double zero prefix", "00989123456789", "09123456789"},
		{"bare country code", "989123456789", "09123456789"},
		{"spaces and dashes", " 0912-345 6789 ", "09123456789"},
		{"parentheses", "(0912)3456789", "09123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.input))
		})
	}
}

func TestIsValidPhone(t *testing.T) {
	assert.True(t, IsValidPhone("09123456789"))
	assert.True(t, IsValidPhone("09000000000"))

	assert.False(t, IsValidPhone("9123456789"), "missing leading zero")
	assert.False(t, IsValidPhone("091234567890"), "too long")
	assert.False(t, IsValidPhone("0912345678"), "too short")
	assert.False(t, IsValidPhone("08123456789"), "not a mobile prefix")
	assert.False(t, IsValidPhone("0912345678a"), "non-digit")
	assert.False(t, IsValidPhone(""))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "0912***89", MaskPhone("09123456789"))
	assert.Equal(t, "***", MaskPhone("123"))
}
