package evaluate

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"poster-studio-server/modules/common/apperr"
	"poster-studio-server/modules/common/fallback"
	"poster-studio-server/modules/common/llm"
	"poster-studio-server/modules/common/model"
)

// Evaluator - 비전 모델로 이미지 세트를 채점하고 최선 1장을 고른다
type Evaluator struct {
	completer llm.Completer
}

// NewEvaluator - Evaluator 생성
func NewEvaluator(completer llm.Completer) *Evaluator {
	log.Info().Msg("✅ [Evaluate] Image evaluator initialized")
	return &Evaluator{completer: completer}
}

// Evaluate - 이미지 목록 평가. Iteration 은 호출자가 채운다
func (e *Evaluator) Evaluate(ctx context.Context, images []model.PosterImage, originalIntent, enhancedPrompt string) (model.EvaluationResult, error) {
	if len(images) == 0 {
		return model.EvaluationResult{}, apperr.ErrEmptyInput
	}

	parts := make([]llm.Part, 0, len(images)+1)
	parts = append(parts, llm.Text(buildUserInstruction(originalIntent, enhancedPrompt, len(images))))
	for _, img := range images {
		parts = append(parts, llm.Image(img.Data, img.MIMEType))
	}

	raw, err := e.completer.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Parts:       parts,
		JSON:        true,
		Temperature: 0.2,
	})
	if err != nil {
		return model.EvaluationResult{}, fmt.Errorf("evaluate images: %w", err)
	}

	result, err := Parse(raw, len(images))
	if err != nil {
		return model.EvaluationResult{}, err
	}
	log.Info().Msgf("📊 [Evaluate] picked=%d score=%.1f", result.PickedIndex, result.Score)
	return result, nil
}

// nestedKeys - 심사 모델이 스키마 껍데기째 돌려줄 때 실제 값이 들어 있는 위치
var nestedKeys = [][]string{
	{"json_schema", "schema"},
	{"schema"},
	{"properties"},
	{"result"},
	{"ImageEval"},
}

// Parse - 평면/중첩 두 형태의 평가 JSON 을 EvaluationResult 로 변환
// 범위 밖 picked_index 는 0 으로 보정
func Parse(raw string, imageCount int) (model.EvaluationResult, error) {
	var data map[string]any
	if err := llm.DecodeJSON(raw, &data); err != nil {
		return model.EvaluationResult{}, apperr.Malformed("evaluate", raw, err)
	}

	fields := locateFields(data)
	if fields == nil {
		return model.EvaluationResult{}, apperr.Malformed("evaluate", raw, fmt.Errorf("no score field"))
	}

	score := fallback.SafeFloat(fields["score"], math.NaN())
	if math.IsNaN(score) {
		return model.EvaluationResult{}, apperr.Malformed("evaluate", raw, fmt.Errorf("score is not numeric"))
	}

	picked := fallback.SafeInt(fields["picked_index"], 0)
	if picked < 0 || picked >= imageCount {
		log.Warn().Msgf("⚠️ [Evaluate] picked_index %d out of range for %d image(s), using 0", picked, imageCount)
		picked = 0
	}

	payload, _ := json.Marshal(data)
	return model.EvaluationResult{
		PickedIndex:      picked,
		Score:            model.ClampScore(score),
		Rationale:        fallback.SafeString(fields["rationale"], ""),
		EditInstructions: fallback.SafeString(fields["edit_instructions"], ""),
		RawPayload:       payload,
	}, nil
}

// locateFields - score 필드가 있는 객체를 찾음 (평면 → 중첩 경로 순)
func locateFields(data map[string]any) map[string]any {
	if flat := unwrapValues(data); flat != nil {
		return flat
	}
	for _, path := range nestedKeys {
		cur := data
		for _, key := range path {
			cur = fallback.SafeMap(cur[key])
			if cur == nil {
				break
			}
		}
		if cur == nil {
			continue
		}
		if flat := unwrapValues(cur); flat != nil {
			return flat
		}
		if flat := unwrapValues(fallback.SafeMap(cur["properties"])); flat != nil {
			return flat
		}
	}
	return nil
}

// unwrapValues - {"score": {"value": 8}} 같은 값 래핑을 벗김
func unwrapValues(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	if _, ok := m["score"]; !ok {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if inner := fallback.SafeMap(v); inner != nil {
			if value, ok := inner["value"]; ok {
				out[k] = value
				continue
			}
		}
		out[k] = v
	}
	return out
}
