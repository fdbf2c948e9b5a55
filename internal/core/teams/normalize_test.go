package teams

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Montréal Canadiens", "montreal canadiens"},
		{"  Utah   Hockey Club ", "utah hockey club"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Key(tt.in), "Key(%q)", tt.in)
	}
}

func TestResolverCanonical(t *testing.T) {
	r := NewResolver(map[string]string{"Utah Hockey Club": "Utah Mammoth"})

	assert.Equal(t, "Utah Mammoth", r.Canonical("Utah Hockey Club"))
	assert.Equal(t, "Utah Mammoth", r.Canonical("utah  hockey club"))
	assert.Equal(t, "Boston Bruins", r.Canonical(" Boston  Bruins "))
}

func TestNilResolverKeepsName(t *testing.T) {
	var r *Resolver
	assert.Equal(t, "Ottawa Senators", r.Canonical("Ottawa Senators"))
}
