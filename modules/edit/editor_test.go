package edit

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"poster-studio-server/modules/common/model"
	"poster-studio-server/modules/common/utils"
)

type stubGenerator struct {
	calls  int
	config *genai.GenerateContentConfig
	parts  []*genai.Part
	reply  []byte
}

func (s *stubGenerator) GenerateContent(ctx context.Context, m string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.calls++
	s.config = config
	s.parts = contents[0].Parts
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{
			genai.NewPartFromText("here is your edit"),
			{InlineData: &genai.Blob{MIMEType: "image/png", Data: s.reply}},
		}},
	}}}, nil
}

func poster(t *testing.T, w, h int) model.PosterImage {
	t.Helper()
	img, err := utils.PosterFromImage(image.NewNRGBA(image.Rect(0, 0, w, h)), model.SourceGenerated)
	require.NoError(t, err)
	return img
}

func TestBlankInstructionSkipsBackend(t *testing.T) {
	gen := &stubGenerator{}
	out, err := NewEditor(gen, "image-model").Edit(context.Background(), poster(t, 9, 16), " \n\t")
	assert.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 0, gen.calls)
	assert.True(t, IsNoop(""))
}

func TestEditReturnsEditedImages(t *testing.T) {
	base := poster(t, 90, 160)
	gen := &stubGenerator{reply: poster(t, 90, 160).Data}

	out, err := NewEditor(gen, "image-model").Edit(context.Background(), base, "make the sky warmer")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, model.SourceEdited, out[0].Source)
	assert.NotEqual(t, base.ID, out[0].ID)
	assert.Equal(t, "9:16", gen.config.ImageConfig.AspectRatio)
	require.Len(t, gen.parts, 2)
	assert.Equal(t, base.Data, gen.parts[0].InlineData.Data)
	assert.Contains(t, gen.parts[1].Text, "make the sky warmer")
}
