package history

import (
	"time"

	"poster-studio-server/modules/common/model"
)

// PosterRef - 기록에 남기는 포스터 메타데이터 (바이너리는 저장하지 않음)
type PosterRef struct {
	ID       string            `json:"id"`
	Path     string            `json:"path,omitempty"`
	MIMEType string            `json:"mime_type"`
	Width    int               `json:"width"`
	Height   int               `json:"height"`
	Source   model.ImageSource `json:"source"`
}

// Record - 생성 실행 1건의 영구 기록
type Record struct {
	ID             string                   `json:"id"`
	Prompt         string                   `json:"prompt"`
	EnhancedPrompt string                   `json:"enhanced_prompt"`
	AspectRatio    string                   `json:"aspect_ratio"`
	Outcome        string                   `json:"outcome"`
	Posters        []PosterRef              `json:"posters"`
	Final          *PosterRef               `json:"final,omitempty"`
	Evaluations    []model.EvaluationResult `json:"evaluations"`
	Timestamp      time.Time                `json:"timestamp"`
}

// FromRun - GenerationRun 스냅샷으로 Record 생성. final 이 있으면 함께 기록
func FromRun(run *model.GenerationRun, final *model.PosterImage) Record {
	images := run.Images()
	rec := Record{
		ID:             run.ID,
		Prompt:         run.Prompt,
		EnhancedPrompt: run.EnhancedPrompt,
		AspectRatio:    run.AspectRatio,
		Outcome:        run.Outcome,
		Posters:        make([]PosterRef, 0, len(images)),
		Evaluations:    run.Evaluations(),
		Timestamp:      run.Timestamp,
	}
	for _, img := range images {
		rec.Posters = append(rec.Posters, refOf(img))
	}
	if final != nil {
		ref := refOf(*final)
		rec.Final = &ref
	}
	return rec
}

func refOf(img model.PosterImage) PosterRef {
	return PosterRef{
		ID:       img.ID,
		Path:     img.Path,
		MIMEType: img.MIMEType,
		Width:    img.Width,
		Height:   img.Height,
		Source:   img.Source,
	}
}

// clone - 호출자가 내부 슬라이스를 건드리지 못하도록 깊은 복사
func (r Record) clone() Record {
	out := r
	out.Posters = append([]PosterRef(nil), r.Posters...)
	out.Evaluations = append([]model.EvaluationResult(nil), r.Evaluations...)
	if r.Final != nil {
		f := *r.Final
		out.Final = &f
	}
	return out
}
