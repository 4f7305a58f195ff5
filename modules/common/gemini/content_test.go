package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"poster-studio-server/modules/common/apperr"
	"poster-studio-server/modules/common/llm"
)

type stubGenerator struct {
	resp   *genai.GenerateContentResponse
	config *genai.GenerateContentConfig
	parts  []*genai.Part
}

func (s *stubGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.config = config
	if len(contents) > 0 {
		s.parts = contents[0].Parts
	}
	return s.resp, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
	}}}
}

func TestExtractImagesSkipsTextParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{
			{Text: "here is your poster"},
			{InlineData: &genai.Blob{Data: []byte{1, 2, 3}}},
			{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: []byte{4}}},
		}},
	}}}

	images := ExtractImages(resp)
	require.Len(t, images, 2)
	assert.Equal(t, "image/png", images[0].MIMEType)
	assert.Equal(t, "image/jpeg", images[1].MIMEType)
	assert.Empty(t, ExtractImages(nil))
}

func TestCompleterSetsJSONModeAndParts(t *testing.T) {
	gen := &stubGenerator{resp: textResponse(`{"ok":true}`)}
	c := NewCompleter(gen, "gemini-2.5-flash")

	out, err := c.Complete(context.Background(), llm.Request{
		System:      "judge",
		JSON:        true,
		Temperature: 0.2,
		Parts:       []llm.Part{llm.Text("score this"), llm.Image([]byte{9}, "")},
	})

	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, "application/json", gen.config.ResponseMIMEType)
	require.NotNil(t, gen.config.Temperature)
	assert.InDelta(t, 0.2, *gen.config.Temperature, 1e-6)
	require.Len(t, gen.parts, 2)
	assert.Equal(t, "image/png", gen.parts[1].InlineData.MIMEType)
}

func TestCompleterEmptyText(t *testing.T) {
	c := NewCompleter(&stubGenerator{resp: &genai.GenerateContentResponse{}}, "m")
	_, err := c.Complete(context.Background(), llm.Request{Parts: []llm.Part{llm.Text("x")}})
	assert.Error(t, err)
}

func TestClassifyRateLimit(t *testing.T) {
	err := classify("m", genai.APIError{Code: 429, Message: "quota"})
	var transient *apperr.TransientServiceError
	require.True(t, errors.As(err, &transient))
	assert.Equal(t, 429, transient.StatusCode)

	plain := classify("m", genai.APIError{Code: 400, Message: "bad request"})
	assert.False(t, errors.As(plain, &transient))
}
