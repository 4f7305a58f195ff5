package engine

import (
	"context"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"poster-studio-server/modules/common/apperr"
	"poster-studio-server/modules/common/fallback"
	"poster-studio-server/modules/common/gemini"
	"poster-studio-server/modules/common/model"
	"poster-studio-server/modules/common/utils"
)

type imagenEngine struct {
	opts   ImagenOptions
	client gemini.ImageGenerator
}

func newImagenEngine(opts ImagenOptions, client gemini.ImageGenerator) *imagenEngine {
	if opts.MIMEType == "" {
		opts.MIMEType = "image/jpeg"
	}
	log.Info().Msgf("✅ [Engine] Imagen engine initialized (model: %s)", opts.Model)
	return &imagenEngine{opts: opts, client: client}
}

func (e *imagenEngine) Name() string { return string(KindImagen) }

// Generate - Imagen 으로 count 장 생성. 참조 에셋은 무시
func (e *imagenEngine) Generate(ctx context.Context, req GenerateRequest) ([]model.PosterImage, error) {
	count := normalizeCount(req.Count)
	config := &genai.GenerateImagesConfig{
		NumberOfImages: int32(count),
		AspectRatio:    fallback.SafeAspectRatio(req.AspectRatio),
		OutputMIMEType: e.opts.MIMEType,
	}
	if e.opts.AllowAdult {
		config.PersonGeneration = genai.PersonGenerationAllowAdult
	}

	log.Info().Msgf("🎨 [Imagen] Generating %d image(s) (%s)", count, config.AspectRatio)
	resp, err := e.client.GenerateImages(ctx, e.opts.Model, req.Prompt, config)
	if err != nil {
		return nil, &apperr.GenerationFailure{Engine: e.Name(), Err: err}
	}
	if resp == nil || len(resp.GeneratedImages) == 0 {
		log.Warn().Msg("⚠️ [Imagen] No images returned")
		return nil, nil
	}

	var images []model.PosterImage
	for i, gen := range resp.GeneratedImages {
		if gen == nil || gen.Image == nil || len(gen.Image.ImageBytes) == 0 {
			continue
		}
		img, err := utils.NewPosterImage(gen.Image.ImageBytes, gen.Image.MIMEType, model.SourceGenerated)
		if err != nil {
			log.Warn().Err(err).Msgf("⚠️ [Imagen] Skipping undecodable image #%d", i)
			continue
		}
		images = append(images, img)
	}
	log.Info().Msgf("✅ [Imagen] %d image(s) generated", len(images))
	return images, nil
}
