package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
		"```{\"a\":1}```":         `{"a":1}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, StripFences(in), in)
	}
}

func TestDecodeJSONWithProse(t *testing.T) {
	var out struct {
		Score float64 `json:"score"`
	}
	require.NoError(t, DecodeJSON("Here you go: {\"score\": 8.5} hope it helps", &out))
	assert.Equal(t, 8.5, out.Score)

	assert.Error(t, DecodeJSON("no json here", &out))
}
