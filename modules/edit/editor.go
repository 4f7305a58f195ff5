package edit

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"poster-studio-server/modules/common/gemini"
	"poster-studio-server/modules/common/model"
	"poster-studio-server/modules/common/utils"
)

const editPreamble = `Edit the attached poster image. Apply ONLY the following changes and keep everything else (composition, subjects, colours, aspect ratio) intact.
Do not add any text, letters, numbers, logos, QR codes or UI elements.

Changes:
`

// IsNoop - 공백뿐인 편집 지시는 편집하지 않음
func IsNoop(instruction string) bool {
	return strings.TrimSpace(instruction) == ""
}

// Editor - 기존 이미지 + 지시문으로 수정본을 만드는 Gemini 이미지 편집기
type Editor struct {
	client gemini.ContentGenerator
	model  string
}

// NewEditor - Editor 생성
func NewEditor(client gemini.ContentGenerator, modelName string) *Editor {
	log.Info().Msgf("✅ [Edit] Image editor initialized (model: %s)", modelName)
	return &Editor{client: client, model: modelName}
}

// Edit - 지시문을 적용한 새 이미지 목록 반환. 지시문이 비면 호출 없이 nil, nil
func (e *Editor) Edit(ctx context.Context, image model.PosterImage, instruction string) ([]model.PosterImage, error) {
	if IsNoop(instruction) {
		return nil, nil
	}
	if len(image.Data) == 0 {
		return nil, fmt.Errorf("edit: base image has no data")
	}

	mime := image.MIMEType
	if mime == "" {
		mime = utils.DetectMIME(image.Data)
	}
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mime, Data: image.Data}},
		genai.NewPartFromText(editPreamble + strings.TrimSpace(instruction)),
	}

	config := &genai.GenerateContentConfig{}
	if ratio := aspectRatioOf(image); ratio != "" {
		config.ImageConfig = &genai.ImageConfig{AspectRatio: ratio}
	}

	log.Info().Msgf("✏️ [Edit] Applying edit: %.80q", instruction)
	resp, err := e.client.GenerateContent(ctx, e.model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		return nil, fmt.Errorf("edit image: %w", err)
	}

	var out []model.PosterImage
	for _, inline := range gemini.ExtractImages(resp) {
		img, err := utils.NewPosterImage(inline.Data, inline.MIMEType, model.SourceEdited)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ [Edit] Skipping undecodable edit result")
			continue
		}
		out = append(out, img)
	}
	log.Info().Msgf("✅ [Edit] %d edited image(s)", len(out))
	return out, nil
}

// aspectRatioOf - 원본 크기와 가장 가까운 지원 비율
func aspectRatioOf(image model.PosterImage) string {
	if image.Width <= 0 || image.Height <= 0 {
		return ""
	}
	ratios := []struct {
		name  string
		value float64
	}{
		{"1:1", 1}, {"3:4", 0.75}, {"4:3", 4.0 / 3}, {"9:16", 9.0 / 16}, {"16:9", 16.0 / 9},
	}
	actual := float64(image.Width) / float64(image.Height)
	best, bestDiff := "", 1e9
	for _, r := range ratios {
		diff := actual - r.value
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = r.name, diff
		}
	}
	return best
}
