package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"poster-studio-server/modules/common/apperr"
	"poster-studio-server/modules/common/fallback"
	"poster-studio-server/modules/common/llm"
	"poster-studio-server/modules/common/model"
)

// Ranker - 외부 심사 모델로 강화 프롬프트 후보를 점수화
type Ranker struct {
	completer llm.Completer
}

// NewRanker - Ranker 생성
func NewRanker(completer llm.Completer) *Ranker {
	log.Info().Msg("✅ [Prompt] Ranker initialized")
	return &Ranker{completer: completer}
}

// Rank - 후보 점수화 후 best 선택
// best 는 반드시 입력 후보 중 하나이며, 맞출 수 없으면 RankingIntegrityError
func (r *Ranker) Rank(ctx context.Context, originalIntent string, candidates []model.PromptCandidate) (Ranking, error) {
	if len(candidates) == 0 {
		return Ranking{}, apperr.ErrNoCandidates
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	raw, err := r.completer.Complete(ctx, llm.Request{
		System:      rankSystemPrompt,
		Parts:       []llm.Part{llm.Text(buildRankUserText(originalIntent, texts))},
		JSON:        true,
		Temperature: 0.2,
	})
	if err != nil {
		return Ranking{}, fmt.Errorf("rank prompts: %w", err)
	}

	var resp rankResponse
	if err := llm.DecodeJSON(raw, &resp); err != nil {
		return Ranking{}, apperr.Malformed("rank", raw, err)
	}

	ranking := Ranking{}
	for _, s := range resp.Scores {
		idx := matchCandidate(candidates, s.Prompt)
		if idx < 0 {
			log.Warn().Msgf("⚠️ [Prompt] Judge scored an unknown prompt, ignoring: %.60q", s.Prompt)
			continue
		}
		ranking.Scored = append(ranking.Scored, ScoredCandidate{
			Candidate:  candidates[idx],
			Score:      model.ClampScore(fallback.SafeFloat(s.Score, 0)),
			Rationale:  strings.TrimSpace(s.Rationale),
			Violations: fallback.SafeStrings(s.Violations),
		})
	}

	if idx := matchCandidate(candidates, resp.Best); idx >= 0 {
		ranking.Best = candidates[idx]
		return ranking, nil
	}

	// best 가 후보와 맞지 않으면 점수가 가장 높은 (후보 집합 안의) 항목으로 대체
	if top, ok := highestScored(ranking.Scored); ok {
		log.Warn().Msgf("⚠️ [Prompt] Judge best not in candidates, using highest scored (%.1f)", top.Score)
		ranking.Best = top.Candidate
		return ranking, nil
	}

	return Ranking{}, &apperr.RankingIntegrityError{Judged: resp.Best}
}

// matchCandidate - 정확히 일치 → 공백 정규화 일치 순서로 후보 인덱스 검색
func matchCandidate(candidates []model.PromptCandidate, text string) int {
	if text == "" {
		return -1
	}
	for i, c := range candidates {
		if c.Text == text {
			return i
		}
	}
	folded := foldSpace(text)
	for i, c := range candidates {
		if foldSpace(c.Text) == folded {
			return i
		}
	}
	return -1
}

func highestScored(scored []ScoredCandidate) (ScoredCandidate, bool) {
	if len(scored) == 0 {
		return ScoredCandidate{}, false
	}
	best := scored[0]
	for _, s := range scored[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	return best, true
}

func foldSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
