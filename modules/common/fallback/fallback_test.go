package fallback

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeFloatShapes(t *testing.T) {
	assert.Equal(t, 8.5, SafeFloat(8.5, 0))
	assert.Equal(t, 7.0, SafeFloat(json.Number("7"), 0))
	assert.Equal(t, 9.2, SafeFloat(" 9.2 ", 0))
	assert.Equal(t, 6.0, SafeFloat("6/10", 0))
	assert.Equal(t, 1.5, SafeFloat(nil, 1.5))
	assert.Equal(t, 1.5, SafeFloat("n/a", 1.5))
}

func TestSafeIntAndBool(t *testing.T) {
	assert.Equal(t, 2, SafeInt(2.0, 0))
	assert.Equal(t, -1, SafeInt("-1", 0))
	assert.Equal(t, 3, SafeInt(nil, 3))
	assert.True(t, SafeBool("yes", false))
	assert.False(t, SafeBool(false, true))
	assert.True(t, SafeBool(nil, true))
}

func TestSafeStringsAndAspect(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SafeStrings([]any{"a", " ", 3, "b"}))
	assert.Equal(t, []string{"only"}, SafeStrings("only"))
	assert.Nil(t, SafeStrings(42))
	assert.Equal(t, "16:9", SafeAspectRatio("16:9"))
	assert.Equal(t, "9:16", SafeAspectRatio("21:9"))
}
