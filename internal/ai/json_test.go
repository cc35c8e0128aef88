package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{`Oto wynik: {"a":{"b":"}"}} dziękuję`, `{"a":{"b":"}"}}`, true},
		{`{"a":"\"{"}`, `{"a":"\"{"}`, true},
		{`brak`, ``, false},
		{`{"a":1`, ``, false},
	}

	for _, tt := range tests {
		got, ok := ExtractJSONObject(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDecodeJSONReply_StripsFences(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, DecodeJSONReply("```json\n{\"name\":\"Program\"}\n```", &out))
	assert.Equal(t, "Program", out.Name)
}
