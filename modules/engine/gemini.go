package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"poster-studio-server/modules/common/apperr"
	"poster-studio-server/modules/common/fallback"
	"poster-studio-server/modules/common/gemini"
	"poster-studio-server/modules/common/model"
	"poster-studio-server/modules/common/utils"
)

type geminiEngine struct {
	opts   GeminiOptions
	client gemini.ContentGenerator
}

func newGeminiEngine(opts GeminiOptions, client gemini.ContentGenerator) *geminiEngine {
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	log.Info().Msgf("✅ [Engine] Gemini image engine initialized (model: %s)", opts.Model)
	return &geminiEngine{opts: opts, client: client}
}

func (e *geminiEngine) Name() string { return string(KindGemini) }

// Generate - 요청한 장수만큼 GenerateContent 를 호출 (호출당 1장)
// 일부 호출만 실패하면 성공한 이미지만 반환
func (e *geminiEngine) Generate(ctx context.Context, req GenerateRequest) ([]model.PosterImage, error) {
	count := normalizeCount(req.Count)
	aspectRatio := fallback.SafeAspectRatio(req.AspectRatio)
	contents := []*genai.Content{genai.NewContentFromParts(e.buildParts(req), genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: aspectRatio},
		Temperature: &e.opts.Temperature,
	}

	var (
		images  []model.PosterImage
		lastErr error
	)
	for i := 0; i < count; i++ {
		log.Info().Msgf("🎨 [Gemini Engine] Generating image %d/%d (%s)", i+1, count, aspectRatio)
		resp, err := e.client.GenerateContent(ctx, e.opts.Model, contents, config)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Msgf("⚠️ [Gemini Engine] Image %d/%d failed", i+1, count)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		for _, inline := range gemini.ExtractImages(resp) {
			img, err := utils.NewPosterImage(inline.Data, inline.MIMEType, model.SourceGenerated)
			if err != nil {
				log.Warn().Err(err).Msg("⚠️ [Gemini Engine] Skipping undecodable image")
				continue
			}
			images = append(images, img)
		}
	}

	if len(images) == 0 && lastErr != nil {
		return nil, &apperr.GenerationFailure{Engine: e.Name(), Err: lastErr}
	}
	if len(images) == 0 {
		return nil, nil
	}
	if len(images) > count {
		images = images[:count]
	}
	return images, nil
}

func (e *geminiEngine) buildParts(req GenerateRequest) []*genai.Part {
	var parts []*genai.Part
	if e.opts.UseReferenceAssets {
		for _, asset := range req.Assets {
			if len(asset.Data) == 0 {
				continue
			}
			mime := asset.MIMEType
			if mime == "" {
				mime = utils.DetectMIME(asset.Data)
			}
			parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: asset.Data}})
		}
	}
	text := req.Prompt
	if len(parts) > 0 {
		text = fmt.Sprintf("%s\n\nThe attached images are brand references (%d). Match their colours and mood; do not reproduce any logo or text.", req.Prompt, len(parts))
	}
	return append(parts, genai.NewPartFromText(text))
}
