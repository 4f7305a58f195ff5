package assetlayer

import (
	"fmt"

	"poster-studio-server/modules/common/model"
)

const (
	logoScale          = 0.12
	productScale       = 0.35
	marginRatio        = 0.03
	maxFallbackLogos   = 2
	fallbackConfidence = 0.6
)

// Size - 에셋 픽셀 크기
type Size struct {
	Width  int
	Height int
}

// FallbackPlan - LLM 분석 실패 시 표준 배치
// 로고: 폭 12%, 최대 2개, 좌상단 → 우상단. 제품: 폭 35%, 하단 중앙 한 줄
// 좌표는 모두 좌상단 기준 (anchor=top-left)
func FallbackPlan(posterW, posterH int, logos, products []Size) model.PlacementPlan {
	margin := int(float64(minInt(posterW, posterH)) * marginRatio)
	plan := model.PlacementPlan{Confidence: fallbackConfidence, Fallback: true}

	logoW := int(float64(posterW) * logoScale)
	for i, logo := range logos {
		if i >= maxFallbackLogos {
			break
		}
		if logo.Width <= 0 || logo.Height <= 0 {
			continue
		}
		h := int(float64(logo.Height) * float64(logoW) / float64(logo.Width))
		x, corner := margin, "top-left"
		if i == 1 {
			x, corner = posterW-logoW-margin, "top-right"
		}
		plan.Logos = append(plan.Logos, model.AssetPlacement{
			Kind:          model.AssetLogo,
			AssetIndex:    i,
			X:             x,
			Y:             margin,
			Anchor:        "top-left",
			Width:         logoW,
			Height:        h,
			ScaleFactor:   logoScale,
			Justification: fmt.Sprintf("Standard %s logo placement", corner),
		})
	}

	var valid []int
	for i, p := range products {
		if p.Width > 0 && p.Height > 0 {
			valid = append(valid, i)
		}
	}
	if len(valid) == 0 {
		return plan
	}

	productW := int(float64(posterW) * productScale)
	scale := productScale
	// 한 줄에 다 들어가지 않으면 균등 축소
	if usable := posterW - 2*margin; productW*len(valid) > usable && usable > 0 {
		productW = usable / len(valid)
		scale = float64(productW) / float64(posterW)
	}
	startX := (posterW - productW*len(valid)) / 2
	for slot, idx := range valid {
		p := products[idx]
		h := int(float64(p.Height) * float64(productW) / float64(p.Width))
		if maxH := posterH - 2*margin; h > maxH && maxH > 0 {
			h = maxH
		}
		plan.Products = append(plan.Products, model.AssetPlacement{
			Kind:          model.AssetProduct,
			AssetIndex:    idx,
			X:             startX + slot*productW,
			Y:             posterH - h - margin,
			Anchor:        "top-left",
			Width:         productW,
			Height:        h,
			ScaleFactor:   scale,
			Justification: "Standard bottom-center product placement",
		})
	}
	return plan
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
