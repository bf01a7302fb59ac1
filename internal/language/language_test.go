package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeFor(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Spanish", "es"},
		{"spanish", "es"},
		{"SPANISH", "es"},
		{" Polish ", "pl"},
		{"English", "en"},
		// Unknown names fall back to the first two characters
		{"Klingon", "kl"},
		{"X", "x"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, CodeFor(tt.input))
		})
	}
}

func TestCodeFor_UnknownIsTwoCharacters(t *testing.T) {
	code := CodeFor("Klingon")
	assert.Len(t, code, 2)
	assert.False(t, IsValidLanguage("Klingon"))
}

func TestNameFor(t *testing.T) {
	assert.Equal(t, "Spanish", NameFor("es"))
	assert.Equal(t, "Spanish", NameFor("ES"))
	assert.Equal(t, "Romanian", NameFor("ro"))
	assert.Equal(t, "xx", NameFor("xx"))
}

func TestIsValidLanguage(t *testing.T) {
	assert.True(t, IsValidLanguage("French"))
	assert.True(t, IsValidLanguage("french"))
	assert.False(t, IsValidLanguage("fr"))
	assert.False(t, IsValidLanguage(""))
}

func TestResolve(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{"Spanish", "es", true},
		{"es", "es", true},
		{"FR", "fr", true},
		{"Klingon", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			code, ok := Resolve(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, code)
		})
	}
}

func TestAllLanguages(t *testing.T) {
	all := AllLanguages()
	assert.Equal(t, "English", all[0].Name)
	assert.Equal(t, "en", all[0].Code)

	// Round trip every entry
	for _, l := range all {
		assert.Equal(t, l.Code, CodeFor(l.Name))
		assert.Equal(t, l.Name, NameFor(l.Code))
	}

	// Returned slice is a copy
	all[0].Name = "changed"
	assert.Equal(t, "English", AllLanguages()[0].Name)
}
