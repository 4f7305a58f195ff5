package assetlayer

import "strings"

// ResolveAnchor - 기준점(x, y) + 에셋 크기를 좌상단 좌표로 변환
// 지원: top-left(기본), top-right, top-center, center, center-left, center-right,
// bottom-left, bottom-right, bottom-center
func ResolveAnchor(x, y, w, h int, anchor string) (int, int) {
	anchor = strings.ToLower(strings.TrimSpace(anchor))

	fx, fy := x, y
	switch {
	case strings.Contains(anchor, "center"):
		fx, fy = x-w/2, y-h/2
	case strings.Contains(anchor, "right"):
		fx = x - w
	case strings.Contains(anchor, "bottom"):
		fy = y - h
	}

	switch anchor {
	case "top-right":
		fx, fy = x-w, y
	case "bottom-left":
		fx, fy = x, y-h
	case "bottom-right":
		fx, fy = x-w, y-h
	case "bottom-center":
		fx, fy = x-w/2, y-h
	case "top-center":
		fx, fy = x-w/2, y
	case "center-left":
		fx, fy = x, y-h/2
	case "center-right":
		fx, fy = x-w, y-h/2
	}
	return fx, fy
}

// Clamp - 에셋이 포스터 밖으로 나가지 않도록 좌상단 좌표 보정
func Clamp(x, y, w, h, posterW, posterH int) (int, int) {
	return clampAxis(x, w, posterW), clampAxis(y, h, posterH)
}

func clampAxis(v, size, limit int) int {
	maxV := limit - size
	if maxV < 0 {
		maxV = 0
	}
	if v > maxV {
		v = maxV
	}
	if v < 0 {
		v = 0
	}
	return v
}

// fitSize - 포스터보다 큰 에셋은 비율을 유지해 포스터 안에 맞춤
func fitSize(w, h, posterW, posterH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if w <= posterW && h <= posterH {
		return w, h
	}
	scale := minFloat(float64(posterW)/float64(w), float64(posterH)/float64(h))
	return maxInt(1, int(float64(w)*scale)), maxInt(1, int(float64(h)*scale))
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
