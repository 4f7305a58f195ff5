package refine

import (
	"context"

	"poster-studio-server/modules/common/model"
)

// Outcome - 루프 종료 상태
type Outcome string

const (
	TargetReached     Outcome = "target_reached"
	NoImprovementStop Outcome = "no_improvement_stop"
	Exhausted         Outcome = "exhausted"
	EditFailed        Outcome = "edit_failed"
	// NoFurtherEdit - 평가 모델이 더 고칠 게 없다고 판단 (정상 종료)
	NoFurtherEdit Outcome = "no_further_edit"
	// Degraded - 루프 도중 에러. 그때까지 모은 결과로 마무리
	Degraded Outcome = "degraded"
)

// EvaluateScope - 편집 결과 중 어떤 이미지를 평가할지
type EvaluateScope string

const (
	ScopeAll   EvaluateScope = "all"
	ScopeFirst EvaluateScope = "first"
)

// Config - 루프 설정
type Config struct {
	TargetScore         float64
	MaxIterations       int
	NoImprovementWindow int
	EvaluateScope       EvaluateScope
}

// DefaultConfig - 기본값 9.5 / 6 / 2 / all
func DefaultConfig() Config {
	return Config{
		TargetScore:         9.5,
		MaxIterations:       6,
		NoImprovementWindow: 2,
		EvaluateScope:       ScopeAll,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TargetScore <= 0 {
		c.TargetScore = d.TargetScore
	}
	if c.MaxIterations < 0 {
		c.MaxIterations = 0
	}
	if c.NoImprovementWindow <= 0 {
		c.NoImprovementWindow = d.NoImprovementWindow
	}
	if c.EvaluateScope != ScopeFirst {
		c.EvaluateScope = ScopeAll
	}
	return c
}

// Evaluator - 이미지 평가기
type Evaluator interface {
	Evaluate(ctx context.Context, images []model.PosterImage, originalIntent, enhancedPrompt string) (model.EvaluationResult, error)
}

// Editor - 이미지 편집기
type Editor interface {
	Edit(ctx context.Context, image model.PosterImage, instruction string) ([]model.PosterImage, error)
}

// Result - 루프 결과. 에러가 나도 항상 쓸 수 있는 Best 를 담는다
type Result struct {
	Outcome    Outcome
	Iterations int
	Best       model.PosterImage
	BestScore  float64
	// Degraded - 에러로 중단됨. Err 에 원인, Best 는 그때까지의 최고
	Degraded bool
	Err      error
}
