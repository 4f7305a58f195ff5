package refine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"poster-studio-server/modules/common/model"
)

// Loop - 평가 → 편집 → 재평가를 목표 점수나 반복 한도까지 수행
type Loop struct {
	evaluator Evaluator
	editor    Editor
	cfg       Config

	// OnEvaluation - 평가가 기록될 때마다 호출 (진행 상황 전송용, 선택)
	OnEvaluation func(ev model.EvaluationResult)
}

// NewLoop - Loop 생성
func NewLoop(evaluator Evaluator, editor Editor, cfg Config) *Loop {
	return &Loop{evaluator: evaluator, editor: editor, cfg: cfg.withDefaults()}
}

// Run - images 는 이미 run 에 추가된 생성 이미지. 편집 결과와 평가 이력은 run 에 추가된다
// 에러를 반환하지 않는다: 실패(panic 포함)는 Result.Degraded / Result.Err 로 전달
func (l *Loop) Run(ctx context.Context, run *model.GenerationRun, images []model.PosterImage, intent, enhancedPrompt string) (out Result) {
	if len(images) == 0 {
		return Result{Outcome: Degraded, Degraded: true, Err: fmt.Errorf("refine: no images")}
	}

	// iteration 0 이 실패하면 첫 이미지를 점수 0 으로 돌려준다
	result := Result{Best: images[0]}
	completed := 0

	defer func() {
		if r := recover(); r != nil {
			out = l.degrade(result, completed, fmt.Errorf("panic: %v", r))
		}
	}()

	ev, err := l.evaluate(ctx, run, 0, images, intent, enhancedPrompt)
	if err != nil {
		return l.degrade(result, 0, err)
	}

	current := images[ev.PickedIndex]
	result.Best = current
	result.BestScore = ev.Score
	noImprove := 0

	for i := 1; i <= l.cfg.MaxIterations; i++ {
		if result.BestScore >= l.cfg.TargetScore {
			return l.finish(result, TargetReached, i-1)
		}
		if strings.TrimSpace(ev.EditInstructions) == "" {
			log.Info().Msgf("🛑 [Refine] No edit instructions after iteration %d", i-1)
			return l.finish(result, NoFurtherEdit, i-1)
		}
		if err := ctx.Err(); err != nil {
			return l.degrade(result, i-1, err)
		}

		edited, err := l.editor.Edit(ctx, current, ev.EditInstructions)
		if err != nil {
			return l.degrade(result, i-1, err)
		}
		if len(edited) == 0 {
			log.Warn().Msgf("⚠️ [Refine] Editor returned no images at iteration %d", i)
			return l.finish(result, EditFailed, i-1)
		}
		run.AppendImages(edited...)

		candidates := edited
		if l.cfg.EvaluateScope == ScopeFirst {
			candidates = edited[:1]
		}
		next, err := l.evaluate(ctx, run, i, candidates, intent, enhancedPrompt)
		if err != nil {
			return l.degrade(result, i, err)
		}
		ev = next
		current = candidates[ev.PickedIndex]
		completed = i

		if ev.Score <= result.BestScore {
			noImprove++
			log.Info().Msgf("📉 [Refine] Iteration %d: %.1f (best %.1f, no improvement %d/%d)",
				i, ev.Score, result.BestScore, noImprove, l.cfg.NoImprovementWindow)
		} else {
			result.Best = current
			result.BestScore = ev.Score
			noImprove = 0
			log.Info().Msgf("📈 [Refine] Iteration %d: new best %.1f", i, ev.Score)
		}

		if noImprove >= l.cfg.NoImprovementWindow {
			return l.finish(result, NoImprovementStop, i)
		}
	}

	if result.BestScore >= l.cfg.TargetScore {
		return l.finish(result, TargetReached, l.cfg.MaxIterations)
	}
	return l.finish(result, Exhausted, l.cfg.MaxIterations)
}

func (l *Loop) evaluate(ctx context.Context, run *model.GenerationRun, iteration int, images []model.PosterImage, intent, enhancedPrompt string) (model.EvaluationResult, error) {
	ev, err := l.evaluator.Evaluate(ctx, images, intent, enhancedPrompt)
	if err != nil {
		return model.EvaluationResult{}, fmt.Errorf("evaluate iteration %d: %w", iteration, err)
	}
	if ev.PickedIndex < 0 || ev.PickedIndex >= len(images) {
		log.Warn().Msgf("⚠️ [Refine] picked index %d out of range, using 0", ev.PickedIndex)
		ev.PickedIndex = 0
	}
	ev.Score = model.ClampScore(ev.Score)
	ev.Iteration = iteration
	run.AppendEvaluation(ev)
	if l.OnEvaluation != nil {
		l.OnEvaluation(ev)
	}
	return ev, nil
}

func (l *Loop) finish(result Result, outcome Outcome, iterations int) Result {
	result.Outcome = outcome
	result.Iterations = iterations
	log.Info().Msgf("✅ [Refine] %s after %d iteration(s), best score %.1f", outcome, iterations, result.BestScore)
	return result
}

func (l *Loop) degrade(result Result, iterations int, err error) Result {
	result.Outcome = Degraded
	result.Iterations = iterations
	result.Degraded = true
	result.Err = err
	log.Warn().Err(err).Msgf("⚠️ [Refine] Degraded after %d iteration(s), keeping best so far (%.1f)", iterations, result.BestScore)
	return result
}
