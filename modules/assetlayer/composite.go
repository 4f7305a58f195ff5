package assetlayer

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"poster-studio-server/modules/common/model"
	"poster-studio-server/modules/common/utils"
)

// CompositeOptions - 에셋 후처리 옵션
type CompositeOptions struct {
	Enhance bool // 제품: 대비 +10% + 약한 샤픈, 로고: 최소 샤픈
	Shadow  bool // 제품 그림자
}

// DefaultCompositeOptions - 후처리 + 그림자 모두 사용
func DefaultCompositeOptions() CompositeOptions {
	return CompositeOptions{Enhance: true, Shadow: true}
}

// Composite - 제품 먼저, 로고는 마지막(위)에 합성한 새 포스터
func Composite(poster model.PosterImage, logos, products []image.Image, plan model.PlacementPlan, opts CompositeOptions) (model.PosterImage, error) {
	base, err := utils.DecodeImage(poster.Data)
	if err != nil {
		return model.PosterImage{}, err
	}
	canvas := CompositeImage(base, logos, products, plan, opts)
	return utils.PosterFromImage(canvas, model.SourceOverlay)
}

// CompositeImage - Composite 의 image.Image 버전
func CompositeImage(base image.Image, logos, products []image.Image, plan model.PlacementPlan, opts CompositeOptions) *image.NRGBA {
	canvas := imaging.Clone(base)
	for _, p := range plan.Products {
		if p.AssetIndex < 0 || p.AssetIndex >= len(products) || products[p.AssetIndex] == nil {
			continue
		}
		canvas = place(canvas, products[p.AssetIndex], p, opts)
	}
	for _, p := range plan.Logos {
		if p.AssetIndex < 0 || p.AssetIndex >= len(logos) || logos[p.AssetIndex] == nil {
			continue
		}
		canvas = place(canvas, logos[p.AssetIndex], p, opts)
	}
	return canvas
}

// Placed - 실제로 그려질 좌상단 좌표와 크기 (앵커 해석 + 경계 보정 후)
func Placed(p model.AssetPlacement, posterW, posterH int) image.Rectangle {
	w, h := fitSize(p.Width, p.Height, posterW, posterH)
	x, y := ResolveAnchor(p.X, p.Y, w, h, p.Anchor)
	x, y = Clamp(x, y, w, h, posterW, posterH)
	return image.Rect(x, y, x+w, y+h)
}

func place(canvas *image.NRGBA, asset image.Image, p model.AssetPlacement, opts CompositeOptions) *image.NRGBA {
	bounds := canvas.Bounds()
	rect := Placed(p, bounds.Dx(), bounds.Dy())
	if rect.Empty() {
		return canvas
	}

	resized := imaging.Resize(asset, rect.Dx(), rect.Dy(), imaging.Lanczos)
	if opts.Enhance {
		switch p.Kind {
		case model.AssetProduct:
			resized = imaging.Sharpen(imaging.AdjustContrast(resized, 10), 0.5)
		case model.AssetLogo:
			resized = imaging.Sharpen(resized, 0.3)
		}
	}
	if opts.Shadow && p.Kind == model.AssetProduct {
		pad := shadowPad()
		offset := rect.Min.Add(image.Pt(shadowOffset-pad, shadowOffset-pad))
		canvas = imaging.Overlay(canvas, dropShadow(resized), offset, shadowOpacity)
	}

	log.Debug().Msgf("[AssetLayer] Placing %s #%d at (%d,%d) size %dx%d", p.Kind, p.AssetIndex, rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy())
	return imaging.Overlay(canvas, resized, rect.Min, 1.0)
}

const (
	shadowSigma   = 3.0
	shadowOffset  = 2
	shadowOpacity = 0.3
)

func shadowPad() int { return int(2 * shadowSigma) }

// dropShadow - 에셋 알파 모양의 검은 그림자 (blur 여백 포함)
func dropShadow(asset *image.NRGBA) *image.NRGBA {
	pad := shadowPad()
	b := asset.Bounds()
	shadow := imaging.New(b.Dx()+2*pad, b.Dy()+2*pad, color.NRGBA{})
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			a := asset.NRGBAAt(b.Min.X+x, b.Min.Y+y).A
			if a > 0 {
				shadow.SetNRGBA(x+pad, y+pad, color.NRGBA{A: a})
			}
		}
	}
	return imaging.Blur(shadow, shadowSigma)
}
