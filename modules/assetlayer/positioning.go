package assetlayer

import (
	"context"
	"encoding/json"
	"fmt"
	"image"

	"github.com/rs/zerolog/log"

	"poster-studio-server/modules/common/apperr"
	"poster-studio-server/modules/common/fallback"
	"poster-studio-server/modules/common/llm"
	"poster-studio-server/modules/common/model"
)

const positioningPrompt = `You are an expert graphic designer analysing a poster for optimal asset placement.

CONTEXT:
- Original user intent: %q
- Poster dimensions: %dx%d pixels
- Assets to place: %d logo(s) and %d product(s)

Consider visual hierarchy, negative space, brand conventions, room for a headline, and balance.

POSITIONING RULES:
- Logos: corners or header area, 10-20%% of poster width.
- Products: prominent (center, lower-center or side), 20-60%% of poster width.
- Avoid covering important visual elements; keep 2-5%% padding from edges.

Return ONLY JSON with this structure:
{"asset_placements": {"logos": [{"asset_index": 0, "position": {"x": 0, "y": 0, "anchor": "top-left"}, "size": {"width": 150, "height": 75, "scale_factor": 0.15}, "justification": "..."}],
  "products": [{"asset_index": 0, "position": {"x": 400, "y": 600, "anchor": "center"}, "size": {"width": 300, "height": 400, "scale_factor": 0.4}, "justification": "..."}]},
 "layout_confidence": 0.85}
Coordinates are pixels from the top-left corner. scale_factor is relative to poster width.
anchor is the reference point of (x, y): top-left, top-right, top-center, center, center-left, center-right, bottom-left, bottom-right or bottom-center.

Asset dimensions:
%s`

// Positioner - 비전 모델로 에셋 배치를 분석. 실패하면 FallbackPlan
type Positioner struct {
	completer llm.Completer
}

// NewPositioner - completer 가 nil 이면 항상 FallbackPlan
func NewPositioner(completer llm.Completer) *Positioner {
	return &Positioner{completer: completer}
}

// Position - 배치 계획 생성 (에러 없음)
func (p *Positioner) Position(ctx context.Context, poster model.PosterImage, logos, products []image.Image, intent string) model.PlacementPlan {
	logoSizes, productSizes := sizesOf(logos), sizesOf(products)
	fallbackPlan := func(reason error) model.PlacementPlan {
		log.Warn().Err(reason).Msg("⚠️ [AssetLayer] Using fallback positioning")
		return FallbackPlan(poster.Width, poster.Height, logoSizes, productSizes)
	}
	if p == nil || p.completer == nil {
		return fallbackPlan(fmt.Errorf("no positioning model configured"))
	}

	info, _ := json.MarshalIndent(map[string]any{
		"poster_dimensions": map[string]int{"width": poster.Width, "height": poster.Height},
		"logos":             sizesJSON(logoSizes),
		"products":          sizesJSON(productSizes),
	}, "", "  ")

	raw, err := p.completer.Complete(ctx, llm.Request{
		Parts: []llm.Part{
			llm.Text(fmt.Sprintf(positioningPrompt, intent, poster.Width, poster.Height, len(logos), len(products), info)),
			llm.Image(poster.Data, poster.MIMEType),
		},
		JSON: true,
	})
	if err != nil {
		return fallbackPlan(err)
	}

	plan, err := ParsePlan(raw, poster.Width, logoSizes, productSizes)
	if err != nil {
		return fallbackPlan(err)
	}
	log.Info().Msgf("✅ [AssetLayer] Positioning ready (%d logo(s), %d product(s), confidence %.2f)",
		len(plan.Logos), len(plan.Products), plan.Confidence)
	return plan
}

// ParsePlan - 배치 JSON 파싱. 범위 밖 인덱스는 버리고 크기가 없으면 scale_factor 또는 원본 크기로 보충
func ParsePlan(raw string, posterW int, logos, products []Size) (model.PlacementPlan, error) {
	var data map[string]any
	if err := llm.DecodeJSON(raw, &data); err != nil {
		return model.PlacementPlan{}, apperr.Malformed("positioning", raw, err)
	}
	placements := fallback.SafeMap(data["asset_placements"])
	if placements == nil {
		return model.PlacementPlan{}, apperr.Malformed("positioning", raw, fmt.Errorf("missing asset_placements"))
	}

	plan := model.PlacementPlan{
		Logos:      parsePlacements(placements["logos"], model.AssetLogo, posterW, logos),
		Products:   parsePlacements(placements["products"], model.AssetProduct, posterW, products),
		Confidence: fallback.SafeFloat(data["layout_confidence"], 0.5),
	}
	if len(plan.Logos)+len(plan.Products) == 0 && len(logos)+len(products) > 0 {
		return model.PlacementPlan{}, apperr.Malformed("positioning", raw, fmt.Errorf("no usable placements"))
	}
	return plan, nil
}

func parsePlacements(value any, kind model.AssetKind, posterW int, sizes []Size) []model.AssetPlacement {
	items, _ := value.([]any)
	var out []model.AssetPlacement
	for _, item := range items {
		m := fallback.SafeMap(item)
		if m == nil {
			continue
		}
		idx := fallback.SafeInt(m["asset_index"], -1)
		if idx < 0 || idx >= len(sizes) {
			continue
		}
		src := sizes[idx]
		if src.Width <= 0 || src.Height <= 0 {
			continue
		}
		pos := fallback.SafeMap(m["position"])
		size := fallback.SafeMap(m["size"])

		scale := fallback.SafeFloat(size["scale_factor"], 0)
		w := fallback.SafeInt(size["width"], 0)
		h := fallback.SafeInt(size["height"], 0)
		switch {
		case w > 0 && h <= 0:
			h = int(float64(src.Height) * float64(w) / float64(src.Width))
		case w <= 0 && scale > 0:
			w = int(float64(posterW) * scale)
			h = int(float64(src.Height) * float64(w) / float64(src.Width))
		case w <= 0:
			w, h = src.Width, src.Height
		}

		out = append(out, model.AssetPlacement{
			Kind:          kind,
			AssetIndex:    idx,
			X:             fallback.SafeInt(pos["x"], 0),
			Y:             fallback.SafeInt(pos["y"], 0),
			Anchor:        fallback.SafeString(pos["anchor"], "top-left"),
			Width:         w,
			Height:        h,
			ScaleFactor:   scale,
			Justification: fallback.SafeString(m["justification"], ""),
		})
	}
	return out
}

func sizesOf(images []image.Image) []Size {
	out := make([]Size, len(images))
	for i, img := range images {
		if img == nil {
			continue
		}
		b := img.Bounds()
		out[i] = Size{Width: b.Dx(), Height: b.Dy()}
	}
	return out
}

func sizesJSON(sizes []Size) []map[string]int {
	out := make([]map[string]int, len(sizes))
	for i, s := range sizes {
		out[i] = map[string]int{"width": s.Width, "height": s.Height}
	}
	return out
}
