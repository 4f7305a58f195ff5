package assetlayer

import (
	"context"
	"fmt"
	"image"

	"github.com/rs/zerolog/log"

	"poster-studio-server/modules/common/model"
	"poster-studio-server/modules/common/utils"
)

// Layer - 배경 제거(선택) → 배치 분석 → 합성
type Layer struct {
	positioner *Positioner
	cleaner    *Cleaner
	opts       CompositeOptions
}

// NewLayer - cleaner 는 nil 이어도 됨
func NewLayer(positioner *Positioner, cleaner *Cleaner, opts CompositeOptions) *Layer {
	log.Info().Msgf("✅ [AssetLayer] Initialized (background removal: %v)", cleaner != nil)
	return &Layer{positioner: positioner, cleaner: cleaner, opts: opts}
}

// Apply - 로고/제품을 포스터에 합성. 에셋이 없으면 포스터 그대로
func (l *Layer) Apply(ctx context.Context, poster model.PosterImage, logos, products [][]byte, intent string) (model.PosterImage, model.PlacementPlan, error) {
	if len(logos) == 0 && len(products) == 0 {
		return poster, model.PlacementPlan{}, nil
	}
	if l.cleaner != nil {
		logos = l.cleaner.CleanAll(ctx, logos)
		products = l.cleaner.CleanAll(ctx, products)
	}

	logoImages, err := decodeAll(logos)
	if err != nil {
		return poster, model.PlacementPlan{}, fmt.Errorf("decode logo: %w", err)
	}
	productImages, err := decodeAll(products)
	if err != nil {
		return poster, model.PlacementPlan{}, fmt.Errorf("decode product: %w", err)
	}

	plan := l.positioner.Position(ctx, poster, logoImages, productImages, intent)
	out, err := Composite(poster, logoImages, productImages, plan, l.opts)
	if err != nil {
		return poster, plan, err
	}
	log.Info().Msgf("✅ [AssetLayer] Composited %d logo(s) and %d product(s) (fallback: %v)", len(plan.Logos), len(plan.Products), plan.Fallback)
	return out, plan, nil
}

func decodeAll(assets [][]byte) ([]image.Image, error) {
	out := make([]image.Image, 0, len(assets))
	for i, data := range assets {
		img, err := utils.DecodeImage(data)
		if err != nil {
			return nil, fmt.Errorf("asset #%d: %w", i, err)
		}
		out = append(out, img)
	}
	return out, nil
}
