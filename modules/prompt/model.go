package prompt

import "poster-studio-server/modules/common/model"

// ScoredCandidate - 심사 점수가 붙은 후보
type ScoredCandidate struct {
	Candidate  model.PromptCandidate `json:"candidate"`
	Score      float64               `json:"score"`
	Rationale  string                `json:"rationale"`
	Violations []string              `json:"violations,omitempty"`
}

// Ranking - 랭킹 결과. Best 는 항상 입력 후보 중 하나
type Ranking struct {
	Scored []ScoredCandidate     `json:"scored"`
	Best   model.PromptCandidate `json:"best"`
}

// variantsResponse - {"variants": [...]} 응답
type variantsResponse struct {
	Variants []string `json:"variants"`
}

// rankResponse - 심사 모델 응답
type rankResponse struct {
	Scores []struct {
		Prompt     string `json:"prompt"`
		Score      any    `json:"score"`
		Rationale  string `json:"rationale"`
		Violations any    `json:"violations"`
	} `json:"scores"`
	Best string `json:"best"`
}
