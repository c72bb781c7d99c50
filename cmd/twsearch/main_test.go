package main

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "timeout", 60, "timeout"},
		{"exact", strings.Repeat("a", 60), 60, strings.Repeat("a", 60)},
		{"ascii", strings.Repeat("a", 61), 60, strings.Repeat("a", 60) + "..."},
		{"cyrillic", strings.Repeat("ж", 61), 60, strings.Repeat("ж", 60) + "..."},
		{"emoji at boundary", strings.Repeat("a", 59) + "🚀🚀", 60, strings.Repeat("a", 59) + "🚀..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
