package model

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Provenance - 프롬프트 후보 출처
type Provenance string

const (
	ProvenanceOriginal Provenance = "original"
	ProvenanceEnhanced Provenance = "enhanced"
	ProvenanceVariant  Provenance = "variant"
)

// PromptCandidate - 프롬프트 후보 (생성 후 불변)
type PromptCandidate struct {
	Text         string     `json:"text"`
	Provenance   Provenance `json:"provenance"`
	VariantIndex int        `json:"variantIndex"`
}

// ImageSource - 이미지 생성 경로
type ImageSource string

const (
	SourceGenerated ImageSource = "generated"
	SourceEdited    ImageSource = "edited"
	SourceOverlay   ImageSource = "overlay"
)

// PosterImage - 래스터 이미지 (생성 후 불변, 편집은 새 인스턴스를 만든다)
type PosterImage struct {
	ID       string      `json:"id"`
	Data     []byte      `json:"-"`
	MIMEType string      `json:"mimeType"`
	Path     string      `json:"path,omitempty"`
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	Source   ImageSource `json:"source"`
}

// NewPosterImage - 새 ID 를 가진 PosterImage 생성
func NewPosterImage(data []byte, mime string, width, height int, source ImageSource) PosterImage {
	return PosterImage{
		ID:       uuid.NewString(),
		Data:     data,
		MIMEType: mime,
		Width:    width,
		Height:   height,
		Source:   source,
	}
}

// EvaluationResult - 이미지 평가 1회 결과 (불변, 반복마다 새로 생성)
type EvaluationResult struct {
	Iteration        int             `json:"iteration"`
	PickedIndex      int             `json:"pickedIndex"`
	Score            float64         `json:"score"`
	Rationale        string          `json:"rationale"`
	EditInstructions string          `json:"editInstructions"`
	RawPayload       json.RawMessage `json:"rawPayload,omitempty"`
}

// ClampScore - [0,10] 범위로 자르고 소수점 한 자리 반올림
func ClampScore(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return math.Round(s*10) / 10
}

// GenerationRun - 요청 1건의 생성 기록
// images / evaluations 는 Append 로만 늘어남
type GenerationRun struct {
	ID             string
	Prompt         string
	EnhancedPrompt string
	AspectRatio    string
	Outcome        string
	Timestamp      time.Time

	mu          sync.Mutex
	images      []PosterImage
	evaluations []EvaluationResult
}

// NewGenerationRun - 새 실행 기록 생성
func NewGenerationRun(prompt, aspectRatio string) *GenerationRun {
	return &GenerationRun{
		ID:          uuid.NewString(),
		Prompt:      prompt,
		AspectRatio: aspectRatio,
		Timestamp:   time.Now().UTC(),
	}
}

// AppendImages - 표시용 이미지 목록에 추가
func (r *GenerationRun) AppendImages(images ...PosterImage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images = append(r.images, images...)
}

// AppendEvaluation - 평가 이력 추가. 반복 번호는 이전 항목보다 작을 수 없음
func (r *GenerationRun) AppendEvaluation(ev EvaluationResult) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.evaluations); n > 0 && ev.Iteration < r.evaluations[n-1].Iteration {
		return false
	}
	r.evaluations = append(r.evaluations, ev)
	return true
}

// AttachPath - 이미 추가된 이미지에 저장 경로 기록. 순서와 내용은 그대로 유지
func (r *GenerationRun) AttachPath(id, path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i := range r.images {
		if r.images[i].ID == id && r.images[i].Path == "" {
			r.images[i].Path = path
			n++
		}
	}
	return n
}

// Images - 이미지 목록 복사본
func (r *GenerationRun) Images() []PosterImage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PosterImage, len(r.images))
	copy(out, r.images)
	return out
}

// Evaluations - 평가 이력 복사본
func (r *GenerationRun) Evaluations() []EvaluationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EvaluationResult, len(r.evaluations))
	copy(out, r.evaluations)
	return out
}

// IterationState - Refinement Loop 1회 실행 동안만 유지되는 상태
type IterationState struct {
	Iteration          int
	BestScore          float64
	NoImprovementCount int
	Current            PosterImage
}

// RenderScript - 텍스트 오버레이 렌더 스크립트 (수정 시 새 값 생성)
type RenderScript struct {
	Source     string `json:"source"`
	Prompt     string `json:"prompt"`
	Message    string `json:"message,omitempty"`
	Generation int    `json:"generation"`
}

// TextOverlayEvaluation - 8개 축 텍스트 오버레이 평가
type TextOverlayEvaluation struct {
	OverallScore    float64       `json:"overallScore"`
	Placement       float64       `json:"placement"`
	Readability     float64       `json:"readability"`
	Design          float64       `json:"design"`
	Fulfillment     float64       `json:"fulfillment"`
	Technical       float64       `json:"technical"`
	Composition     float64       `json:"composition"`
	Font            float64       `json:"font"`
	Color           float64       `json:"color"`
	IssuesFound     []string      `json:"issuesFound"`
	NeedsCorrection bool          `json:"needsCorrection"`
	Corrected       *RenderScript `json:"corrected,omitempty"`
}

// AssetKind - 에셋 종류
type AssetKind string

const (
	AssetLogo    AssetKind = "logo"
	AssetProduct AssetKind = "product"
)

// AssetPlacement - 에셋 1개 배치 정보
type AssetPlacement struct {
	Kind          AssetKind `json:"kind"`
	AssetIndex    int       `json:"assetIndex"`
	X             int       `json:"x"`
	Y             int       `json:"y"`
	Anchor        string    `json:"anchor"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	ScaleFactor   float64   `json:"scaleFactor"`
	Justification string    `json:"justification"`
}

// PlacementPlan - 포스터 1장에 대한 전체 배치
type PlacementPlan struct {
	Logos      []AssetPlacement `json:"logos"`
	Products   []AssetPlacement `json:"products"`
	Confidence float64          `json:"confidence"`
	Fallback   bool             `json:"fallback"`
}

// Job 상태
const (
	StatusPending       = "pending"
	StatusProcessing    = "processing"
	StatusCompleted     = "completed"
	StatusFailed        = "failed"
	StatusUserCancelled = "user_cancelled"
)
