package assetlayer

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"poster-studio-server/modules/common/gemini"
	"poster-studio-server/modules/common/utils"
)

const cleanPrompt = `Remove the background from this brand asset. Keep the subject exactly as it is (shape, colours, lettering, proportions).
Return the subject on a fully transparent background as a PNG. Do not add anything.`

// Cleaner - Gemini 이미지 모델로 에셋 배경 제거
type Cleaner struct {
	client gemini.ContentGenerator
	model  string
}

// NewCleaner - Cleaner 생성
func NewCleaner(client gemini.ContentGenerator, modelName string) *Cleaner {
	return &Cleaner{client: client, model: modelName}
}

// Clean - 배경 제거본. 실패하면 원본 그대로
func (c *Cleaner) Clean(ctx context.Context, data []byte) []byte {
	if c == nil || c.client == nil || len(data) == 0 {
		return data
	}
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: utils.DetectMIME(data), Data: data}},
		genai.NewPartFromText(cleanPrompt),
	}
	resp, err := c.client.GenerateContent(ctx, c.model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ [AssetLayer] Background removal failed, using original asset")
		return data
	}
	images := gemini.ExtractImages(resp)
	if len(images) == 0 {
		log.Warn().Msg("⚠️ [AssetLayer] Background removal returned no image, using original asset")
		return data
	}
	if _, err := utils.DecodeImage(images[0].Data); err != nil {
		log.Warn().Err(err).Msg("⚠️ [AssetLayer] Background removal returned an unreadable image, using original asset")
		return data
	}
	return images[0].Data
}

// CleanAll - 에셋 목록 병렬 처리 (순서 유지)
func (c *Cleaner) CleanAll(ctx context.Context, assets [][]byte) [][]byte {
	out := make([][]byte, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, data := range assets {
		g.Go(func() error {
			out[i] = c.Clean(gctx, data)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
