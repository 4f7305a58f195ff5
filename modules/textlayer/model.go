package textlayer

import (
	"poster-studio-server/modules/common/model"
)

// Config - 평가/수정 루프 설정
type Config struct {
	TargetScore   float64
	MaxIterations int
}

// DefaultConfig - 목표 9.0, 최대 3회
func DefaultConfig() Config {
	return Config{TargetScore: 9.0, MaxIterations: 3}
}

// Result - 텍스트 레이어 결과
// Applied=false 면 Image 는 입력 포스터 그대로
type Result struct {
	Applied     bool
	Image       model.PosterImage
	Script      model.RenderScript
	Evaluations []model.TextOverlayEvaluation
	Reason      string
}

// scriptResponse - Phase A 응답
type scriptResponse struct {
	Message string `json:"message"`
	Script  string `json:"script"`
}

// axisFields - 8개 평가 축 JSON 키
var axisFields = []string{
	"placement_score",
	"readability_score",
	"design_score",
	"fulfillment_score",
	"technical_score",
	"composition_score",
	"font_score",
	"color_score",
}
