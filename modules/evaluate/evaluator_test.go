package evaluate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poster-studio-server/modules/common/apperr"
	"poster-studio-server/modules/common/llm"
	"poster-studio-server/modules/common/model"
)

func images(n int) []model.PosterImage {
	out := make([]model.PosterImage, n)
	for i := range out {
		out[i] = model.NewPosterImage([]byte{byte(i)}, "image/png", 1, 1, model.SourceGenerated)
	}
	return out
}

func TestEvaluateEmptyInput(t *testing.T) {
	called := false
	e := NewEvaluator(llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		called = true
		return "{}", nil
	}))
	_, err := e.Evaluate(context.Background(), nil, "intent", "")
	assert.ErrorIs(t, err, apperr.ErrEmptyInput)
	assert.False(t, called)
}

func TestEvaluateSendsAllImages(t *testing.T) {
	var req llm.Request
	e := NewEvaluator(llm.CompleterFunc(func(ctx context.Context, r llm.Request) (string, error) {
		req = r
		return `{"picked_index": 1, "score": 8.26, "rationale": "clean", "edit_instructions": "warmer light"}`, nil
	}))
	result, err := e.Evaluate(context.Background(), images(2), "Diwali family poster", "enhanced")
	require.NoError(t, err)
	assert.True(t, req.JSON)
	require.Len(t, req.Parts, 3)
	assert.Contains(t, req.Parts[0].Text, "set of 2 images")
	assert.True(t, req.Parts[1].IsImage())
	assert.Equal(t, 1, result.PickedIndex)
	assert.Equal(t, 8.3, result.Score)
	assert.Equal(t, "warmer light", result.EditInstructions)
	assert.NotEmpty(t, result.RawPayload)
}

func TestParseShapes(t *testing.T) {
	cases := map[string]string{
		"flat":        `{"picked_index": 0, "score": 7.5, "rationale": "r", "edit_instructions": "e"}`,
		"fenced":      "```json\n{\"picked_index\": 0, \"score\": \"7.5\", \"rationale\": \"r\", \"edit_instructions\": \"e\"}\n```",
		"json_schema": `{"type": "json_schema", "json_schema": {"name": "ImageEval", "schema": {"picked_index": 0, "score": 7.5, "rationale": "r", "edit_instructions": "e"}}}`,
		"schema":      `{"schema": {"properties": {"picked_index": 0, "score": 7.5, "rationale": "r", "edit_instructions": "e"}}}`,
		"properties":  `{"properties": {"picked_index": {"value": 0}, "score": {"value": 7.5}, "rationale": {"value": "r"}, "edit_instructions": {"value": "e"}}}`,
		"result":      `{"result": {"picked_index": 0, "score": 7.5, "rationale": "r", "edit_instructions": "e"}}`,
		"ImageEval":   `{"ImageEval": {"picked_index": 0, "score": 7.5, "rationale": "r", "edit_instructions": "e"}}`,
		"with prose":  `Here you go: {"picked_index": 0, "score": 7.5, "rationale": "r", "edit_instructions": "e"} thanks`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			result, err := Parse(raw, 2)
			require.NoError(t, err)
			assert.Equal(t, 7.5, result.Score)
			assert.Equal(t, 0, result.PickedIndex)
			assert.Equal(t, "r", result.Rationale)
			assert.Equal(t, "e", result.EditInstructions)
		})
	}
}

func TestParseClampsAndNormalizes(t *testing.T) {
	result, err := Parse(`{"picked_index": 5, "score": 14}`, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, result.PickedIndex)
	assert.Equal(t, 10.0, result.Score)

	result, err = Parse(`{"picked_index": -1, "score": -3}`, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, result.PickedIndex)
	assert.Equal(t, 0.0, result.Score)
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{"looks great!", `{"rationale": "no score"}`, `{"score": "excellent"}`} {
		_, err := Parse(raw, 1)
		var malformed *apperr.MalformedResponseError
		assert.ErrorAs(t, err, &malformed, raw)
	}
}
