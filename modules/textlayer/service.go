package textlayer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"poster-studio-server/modules/common/apperr"
	"poster-studio-server/modules/common/fallback"
	"poster-studio-server/modules/common/llm"
	"poster-studio-server/modules/common/model"
	"poster-studio-server/modules/common/utils"
)

// Runner - 스크립트 실행기 (Executor)
type Runner interface {
	Run(ctx context.Context, script string, input []byte, prompt string) ExecResult
}

// Service - 텍스트 오버레이: 스크립트 생성(Phase A) + 평가/수정 루프(Phase B)
type Service struct {
	writer llm.Completer
	judge  llm.Completer
	runner Runner
	cfg    Config
}

// NewService - writer 는 스크립트 작성, judge 는 결과 평가 (같은 Completer 여도 됨)
func NewService(writer, judge llm.Completer, runner Runner, cfg Config) *Service {
	d := DefaultConfig()
	if cfg.TargetScore <= 0 {
		cfg.TargetScore = d.TargetScore
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = d.MaxIterations
	}
	log.Info().Msg("✅ [TextLayer] Service initialized")
	return &Service{writer: writer, judge: judge, runner: runner, cfg: cfg}
}

// Compose - poster 위에 짧은 문구를 렌더한다
// 실패해도 에러 대신 Applied=false 결과를 돌려주고 호출자는 원본 포스터를 쓴다
func (s *Service) Compose(ctx context.Context, poster model.PosterImage, intent string) Result {
	none := func(reason string) Result {
		log.Warn().Msgf("⚠️ [TextLayer] No text layer: %s", reason)
		return Result{Applied: false, Image: poster, Reason: reason}
	}

	// Phase A
	script, err := s.generateScript(ctx, poster, intent)
	if err != nil {
		return none("script generation: " + err.Error())
	}
	render := s.runner.Run(ctx, script.Source, poster.Data, intent)
	if !render.OK {
		return none("render: " + render.Reason)
	}
	current, err := utils.NewPosterImage(render.Output, "image/png", model.SourceOverlay)
	if err != nil {
		return none("render output: " + err.Error())
	}

	result := Result{Applied: true, Image: current, Script: script}
	log.Info().Msgf("✅ [TextLayer] Rendered %q", script.Message)

	// Phase B
	for i := 1; i <= s.cfg.MaxIterations; i++ {
		ev, err := s.evaluate(ctx, poster, result.Image, result.Script, intent)
		if err != nil {
			log.Warn().Err(err).Msgf("⚠️ [TextLayer] Evaluation %d failed, keeping current render", i)
			break
		}
		result.Evaluations = append(result.Evaluations, ev)
		log.Info().Msgf("📊 [TextLayer] Iteration %d: overall %.1f (needs correction: %v)", i, ev.OverallScore, ev.NeedsCorrection)

		if ev.OverallScore >= s.cfg.TargetScore || !ev.NeedsCorrection || ev.Corrected == nil {
			break
		}

		// 수정 스크립트는 항상 텍스트가 없는 원본 위에 실행
		corrected := *ev.Corrected
		rerun := s.runner.Run(ctx, corrected.Source, poster.Data, intent)
		if !rerun.OK {
			log.Warn().Msgf("⚠️ [TextLayer] Corrected script failed (%s), keeping last render", rerun.Reason)
			break
		}
		img, err := utils.NewPosterImage(rerun.Output, "image/png", model.SourceOverlay)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ [TextLayer] Corrected render unreadable, keeping last render")
			break
		}
		result.Image = img
		result.Script = corrected
	}
	return result
}

func (s *Service) generateScript(ctx context.Context, poster model.PosterImage, intent string) (model.RenderScript, error) {
	raw, err := s.writer.Complete(ctx, llm.Request{
		System:      scriptSystemPrompt,
		Parts:       []llm.Part{llm.Text(buildScriptRequest(intent)), llm.Image(poster.Data, poster.MIMEType)},
		Temperature: 0.7,
	})
	if err != nil {
		return model.RenderScript{}, err
	}

	var resp scriptResponse
	if err := llm.DecodeJSON(raw, &resp); err != nil || strings.TrimSpace(resp.Script) == "" {
		// JSON 이 아니면 응답 전체를 스크립트로 취급
		resp = scriptResponse{Script: raw}
	}
	source := Sanitize(resp.Script)
	if source == "" {
		return model.RenderScript{}, fmt.Errorf("empty script")
	}
	return model.RenderScript{Source: source, Prompt: intent, Message: strings.TrimSpace(resp.Message), Generation: 0}, nil
}

func (s *Service) evaluate(ctx context.Context, original, rendered model.PosterImage, script model.RenderScript, intent string) (model.TextOverlayEvaluation, error) {
	raw, err := s.judge.Complete(ctx, llm.Request{
		System: evaluateSystemPrompt,
		Parts: []llm.Part{
			llm.Text(buildEvaluateRequest(intent, script.Source)),
			llm.Text("Original image:"),
			llm.Image(original.Data, original.MIMEType),
			llm.Text("Result image with text overlay:"),
			llm.Image(rendered.Data, rendered.MIMEType),
		},
		JSON:        true,
		Temperature: 0.3,
	})
	if err != nil {
		return model.TextOverlayEvaluation{}, err
	}
	return ParseEvaluation(raw, script)
}

// ParseEvaluation - 8축 평가 JSON 파싱. overall 은 제공된 축의 평균
// 축이 하나도 없으면 overall_score 를 그대로 사용
func ParseEvaluation(raw string, previous model.RenderScript) (model.TextOverlayEvaluation, error) {
	var data map[string]any
	if err := llm.DecodeJSON(raw, &data); err != nil {
		return model.TextOverlayEvaluation{}, apperr.Malformed("text-evaluate", raw, err)
	}

	axes := make(map[string]float64, len(axisFields))
	sum := 0.0
	for _, key := range axisFields {
		if v, ok := data[key]; ok {
			score := fallback.SafeFloat(v, -1)
			if score < 0 {
				continue
			}
			axes[key] = model.ClampScore(score)
			sum += axes[key]
		}
	}

	var overall float64
	switch {
	case len(axes) > 0:
		overall = model.ClampScore(sum / float64(len(axes)))
	case data["overall_score"] != nil:
		overall = model.ClampScore(fallback.SafeFloat(data["overall_score"], 0))
	default:
		return model.TextOverlayEvaluation{}, apperr.Malformed("text-evaluate", raw, fmt.Errorf("no scores"))
	}

	ev := model.TextOverlayEvaluation{
		OverallScore:    overall,
		Placement:       axes["placement_score"],
		Readability:     axes["readability_score"],
		Design:          axes["design_score"],
		Fulfillment:     axes["fulfillment_score"],
		Technical:       axes["technical_score"],
		Composition:     axes["composition_score"],
		Font:            axes["font_score"],
		Color:           axes["color_score"],
		IssuesFound:     fallback.SafeStrings(data["issues_found"]),
		NeedsCorrection: fallback.SafeBool(data["needs_correction"], false),
	}
	if src := Sanitize(fallback.SafeString(data["corrected_script"], "")); src != "" && src != "null" {
		ev.Corrected = &model.RenderScript{
			Source:     src,
			Prompt:     previous.Prompt,
			Message:    previous.Message,
			Generation: previous.Generation + 1,
		}
	}
	return ev, nil
}
