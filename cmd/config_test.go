package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "(not set)"},
		{"abc", "****"},
		{"sk-1234567890", "****7890"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskSecret(tt.input))
		})
	}
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "postgres://user:xxxxx@db:5432/talksubs", redactURL("postgres://user:secret@db:5432/talksubs"))
	assert.Equal(t, "postgres://db/talksubs", redactURL("postgres://db/talksubs"))
}
