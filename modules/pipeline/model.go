package pipeline

import (
	"errors"

	"poster-studio-server/modules/common/model"
	"poster-studio-server/modules/prompt"
)

// UserFailureMessage - 전체 실패 시 사용자에게 보여주는 문구
const UserFailureMessage = "Poster generation failed. Please try again."

var (
	// ErrEmptyPrompt - 프롬프트 없음
	ErrEmptyPrompt = errors.New("prompt is required")
	// ErrGenerationFailed - 이미지를 한 장도 얻지 못함 (사용자 노출 실패)
	ErrGenerationFailed = errors.New("poster generation failed")
)

// Request - 포스터 생성 요청 1건
type Request struct {
	Prompt       string   `json:"prompt"`
	AspectRatio  string   `json:"aspect_ratio"`
	Variants     int      `json:"variants"`
	ImageCount   int      `json:"image_count"`
	TextOverlay  bool     `json:"text_overlay"`
	AssetOverlay bool     `json:"asset_overlay"`
	Logos        [][]byte `json:"logos,omitempty"`
	Products     [][]byte `json:"products,omitempty"`
	// JobID - 진행 이벤트 채널 식별자 (동기 요청이면 비어 있음)
	JobID string `json:"job_id,omitempty"`
}

// Response - 실행 결과. Final 은 항상 사용 가능한 최종 포스터
type Response struct {
	RunID          string                   `json:"run_id"`
	Prompt         string                   `json:"prompt"`
	EnhancedPrompt string                   `json:"enhanced_prompt"`
	AspectRatio    string                   `json:"aspect_ratio"`
	Outcome        string                   `json:"outcome"`
	Score          float64                  `json:"score"`
	Iterations     int                      `json:"iterations"`
	Degraded       bool                     `json:"degraded"`
	Final          model.PosterImage        `json:"final"`
	Images         []model.PosterImage      `json:"images"`
	Evaluations    []model.EvaluationResult `json:"evaluations"`
	Ranking        *prompt.Ranking          `json:"ranking,omitempty"`
	Placement      *model.PlacementPlan     `json:"placement,omitempty"`
	TextApplied    bool                     `json:"text_applied"`
	UploadPath     string                   `json:"upload_path,omitempty"`
	Warnings       []string                 `json:"warnings,omitempty"`
}

// EnhanceResult - /api/enhance 결과
type EnhanceResult struct {
	Candidates []model.PromptCandidate `json:"candidates"`
	Ranking    *prompt.Ranking         `json:"ranking,omitempty"`
	Best       model.PromptCandidate   `json:"best"`
	Warnings   []string                `json:"warnings,omitempty"`
}

// Stage - 진행 단계 이름
type Stage string

const (
	StageEnhance  Stage = "enhance"
	StageRank     Stage = "rank"
	StageGenerate Stage = "generate"
	StageRefine   Stage = "refine"
	StageAssets   Stage = "assets"
	StageText     Stage = "text"
	StageUpload   Stage = "upload"
	StageDone     Stage = "done"
	StageFailed   Stage = "failed"
)

// Event - 진행 이벤트
type Event struct {
	JobID   string  `json:"job_id"`
	RunID   string  `json:"run_id"`
	Stage   Stage   `json:"stage"`
	Message string  `json:"message"`
	Percent int     `json:"percent"`
	Score   float64 `json:"score,omitempty"`
}
