package prompt

import (
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"poster-studio-server/modules/common/utils"
)

// AssetHints - 업로드된 에셋에서 뽑은 가벼운 특징 (강화 프롬프트에 반영)
type AssetHints struct {
	LogoCount      int
	ProductCount   int
	ProductPalette []string // "#rrggbb"
}

// Snippet - 강화 요청에 붙일 짧은 지시문
func (h *AssetHints) Snippet() string {
	if h == nil || (h.LogoCount == 0 && h.ProductCount == 0) {
		return ""
	}
	var lines []string
	if h.ProductCount > 0 {
		lines = append(lines, fmt.Sprintf("Leave a clean, uncluttered lower-centre area where %d product image(s) will be composited later.", h.ProductCount))
	}
	if h.LogoCount > 0 {
		lines = append(lines, "Keep the top corners calm so a brand logo can be placed there later; do not draw any logo.")
	}
	if len(h.ProductPalette) > 0 {
		lines = append(lines, "Harmonise the colour scheme with the product palette: "+strings.Join(h.ProductPalette, ", ")+".")
	}
	return "Brand asset guidance:\n- " + strings.Join(lines, "\n- ")
}

// ExtractHints - 제품 이미지의 대표 색상 (최대 6개) + 개수
func ExtractHints(logos, products [][]byte) *AssetHints {
	hints := &AssetHints{LogoCount: len(logos), ProductCount: len(products)}
	seen := map[string]bool{}
	for _, data := range products {
		img, err := utils.DecodeImage(data)
		if err != nil {
			continue
		}
		for _, hex := range DominantColors(img, 4) {
			if !seen[hex] && len(hints.ProductPalette) < 6 {
				seen[hex] = true
				hints.ProductPalette = append(hints.ProductPalette, hex)
			}
		}
	}
	return hints
}

// DominantColors - 축소본을 4비트/채널로 양자화해 빈도순 상위 색상 반환
// 투명 픽셀은 제외
func DominantColors(img image.Image, max int) []string {
	small := imaging.Fit(img, 64, 64, imaging.Box)
	counts := map[[3]uint8]int{}
	b := small.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := small.NRGBAAt(x, y)
			if c.A < 128 {
				continue
			}
			key := [3]uint8{c.R >> 4, c.G >> 4, c.B >> 4}
			counts[key]++
		}
	}

	type bucket struct {
		key   [3]uint8
		count int
	}
	buckets := make([]bucket, 0, len(counts))
	for k, v := range counts {
		buckets = append(buckets, bucket{k, v})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].count != buckets[j].count {
			return buckets[i].count > buckets[j].count
		}
		return fmt.Sprint(buckets[i].key) < fmt.Sprint(buckets[j].key)
	})

	var out []string
	for _, bk := range buckets {
		if len(out) >= max {
			break
		}
		// 버킷 중앙값으로 복원
		out = append(out, fmt.Sprintf("#%02x%02x%02x", bk.key[0]<<4|8, bk.key[1]<<4|8, bk.key[2]<<4|8))
	}
	return out
}
