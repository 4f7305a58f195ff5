package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"poster-studio-server/modules/common/apperr"
	"poster-studio-server/modules/common/fallback"
	"poster-studio-server/modules/common/model"
	"poster-studio-server/modules/common/utils"
	"poster-studio-server/modules/engine"
	"poster-studio-server/modules/history"
	"poster-studio-server/modules/prompt"
	"poster-studio-server/modules/refine"
	"poster-studio-server/modules/textlayer"
)

// Enhancer - 프롬프트 변형 생성
type Enhancer interface {
	EnhanceVariants(ctx context.Context, userPrompt string, hints *prompt.AssetHints, n int) ([]model.PromptCandidate, error)
}

// Ranker - 프롬프트 후보 심사
type Ranker interface {
	Rank(ctx context.Context, originalIntent string, candidates []model.PromptCandidate) (prompt.Ranking, error)
}

// Refiner - 평가/편집 반복
type Refiner interface {
	Run(ctx context.Context, run *model.GenerationRun, images []model.PosterImage, intent, enhancedPrompt string) refine.Result
}

// AssetOverlay - 로고/제품 합성
type AssetOverlay interface {
	Apply(ctx context.Context, poster model.PosterImage, logos, products [][]byte, intent string) (model.PosterImage, model.PlacementPlan, error)
}

// TextOverlay - 텍스트 레이어
type TextOverlay interface {
	Compose(ctx context.Context, poster model.PosterImage, intent string) textlayer.Result
}

// Uploader - 최종 포스터 원격 업로드
type Uploader interface {
	UploadPoster(ctx context.Context, imageData []byte, runID string) (string, int64, error)
}

// FileStore - 생성 이미지 로컬 보관
type FileStore interface {
	Save(kind, filename string, data []byte) (string, error)
}

// HistoryAppender - 실행 기록 저장
type HistoryAppender interface {
	Append(ctx context.Context, rec history.Record) error
}

// Deps - Service 구성 요소. Enhancer/Ranker/Engine/Refiner 외에는 nil 가능
type Deps struct {
	Enhancer Enhancer
	Ranker   Ranker
	Engine   engine.Engine
	Refiner  Refiner
	Assets   AssetOverlay
	Text     TextOverlay
	Uploader Uploader
	Files    FileStore
	History  HistoryAppender
	Progress Progress
}

// Options - 요청에 값이 없을 때 쓰는 기본값
type Options struct {
	Variants   int
	ImageCount int
}

// Service - 요청 1건을 enhance → rank → generate → refine → overlay → 기록까지 동기 실행
type Service struct {
	deps Deps
	opts Options
}

// NewService - Service 생성
func NewService(deps Deps, opts Options) *Service {
	if deps.Progress == nil {
		deps.Progress = NopProgress{}
	}
	if opts.Variants <= 0 {
		opts.Variants = 3
	}
	log.Info().Msgf("✅ [Pipeline] Initialized (engine: %s, variants: %d, assets: %v, text: %v, upload: %v)",
		deps.Engine.Name(), opts.Variants, deps.Assets != nil, deps.Text != nil, deps.Uploader != nil)
	return &Service{deps: deps, opts: opts}
}

// Enhance - 변형 생성 + 심사. 심사 무결성 오류만 에러로 반환
func (s *Service) Enhance(ctx context.Context, userPrompt string, variants int, hints *prompt.AssetHints) (EnhanceResult, error) {
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return EnhanceResult{}, ErrEmptyPrompt
	}
	if variants <= 0 {
		variants = s.opts.Variants
	}

	var out EnhanceResult
	candidates, err := s.deps.Enhancer.EnhanceVariants(ctx, userPrompt, hints, variants)
	if err != nil || len(candidates) == 0 {
		log.Warn().Err(err).Msg("⚠️ [Pipeline] Enhancement failed, using the original prompt")
		out.Warnings = append(out.Warnings, "prompt enhancement unavailable, using the original prompt")
		candidates = []model.PromptCandidate{{Text: userPrompt, Provenance: model.ProvenanceOriginal}}
	}
	out.Candidates = candidates
	out.Best = candidates[0]
	if len(candidates) == 1 {
		return out, nil
	}

	ranking, err := s.deps.Ranker.Rank(ctx, userPrompt, candidates)
	if err != nil {
		var integrity *apperr.RankingIntegrityError
		if errors.As(err, &integrity) {
			return out, err
		}
		log.Warn().Err(err).Msg("⚠️ [Pipeline] Ranking failed, using the first variant")
		out.Warnings = append(out.Warnings, "prompt ranking unavailable, using the first variant")
		return out, nil
	}
	out.Ranking = &ranking
	out.Best = ranking.Best
	return out, nil
}

// Run - 전체 파이프라인. 이미지를 한 장도 못 얻은 경우와 심사 무결성 오류만 에러
// 그 외 단계 실패는 Warnings 에 남기고 지금까지의 결과로 진행
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	userPrompt := strings.TrimSpace(req.Prompt)
	if userPrompt == "" {
		return nil, ErrEmptyPrompt
	}
	aspect := fallback.SafeAspectRatio(req.AspectRatio)
	run := model.NewGenerationRun(userPrompt, aspect)
	resp := &Response{RunID: run.ID, Prompt: userPrompt, AspectRatio: aspect}
	emit := func(stage Stage, percent int, msg string) {
		s.deps.Progress.Publish(ctx, Event{JobID: req.JobID, RunID: run.ID, Stage: stage, Percent: percent, Message: msg, Score: resp.Score})
	}

	log.Info().Msgf("🎨 [Pipeline] Run %s started (aspect %s, variants %d, text %v, assets %v)",
		run.ID, aspect, req.Variants, req.TextOverlay, req.AssetOverlay)

	// 1-2. 프롬프트 보강 + 심사
	emit(StageEnhance, 5, "enhancing prompt")
	var hints *prompt.AssetHints
	if len(req.Logos)+len(req.Products) > 0 {
		hints = prompt.ExtractHints(req.Logos, req.Products)
	}
	enhanced, err := s.Enhance(ctx, userPrompt, req.Variants, hints)
	if err != nil {
		return nil, s.fail(ctx, run, emit, fmt.Errorf("ranking: %w", err))
	}
	emit(StageRank, 15, "prompt selected")
	run.EnhancedPrompt = enhanced.Best.Text
	resp.EnhancedPrompt = enhanced.Best.Text
	resp.Ranking = enhanced.Ranking
	resp.Warnings = append(resp.Warnings, enhanced.Warnings...)

	// 3. 생성
	emit(StageGenerate, 25, "generating images")
	count := req.ImageCount
	if count <= 0 {
		count = s.opts.ImageCount
	}
	images, err := s.deps.Engine.Generate(ctx, engine.GenerateRequest{
		Prompt:      run.EnhancedPrompt,
		AspectRatio: aspect,
		Count:       count,
		Assets:      referenceAssets(req),
	})
	if err != nil {
		return nil, s.fail(ctx, run, emit, err)
	}
	if len(images) == 0 {
		return nil, s.fail(ctx, run, emit, apperr.ErrEmptyResult)
	}
	images = s.keepFiles("generated", images)
	run.AppendImages(images...)
	log.Info().Msgf("✅ [Pipeline] %d image(s) generated with %s", len(images), s.deps.Engine.Name())

	// 4. 평가/편집 반복 (실패해도 Best 는 항상 있음)
	emit(StageRefine, 40, "refining")
	refined := s.deps.Refiner.Run(ctx, run, images, userPrompt, run.EnhancedPrompt)
	final := s.keepEdited(run, refined.Best)
	resp.Outcome = string(refined.Outcome)
	resp.Score = refined.BestScore
	resp.Iterations = refined.Iterations
	resp.Degraded = refined.Degraded
	if refined.Degraded {
		log.Warn().Err(refined.Err).Msgf("⚠️ [Pipeline] Refinement degraded after %d iteration(s)", refined.Iterations)
	}

	// 5. 로고/제품 합성
	if req.AssetOverlay && s.deps.Assets != nil && len(req.Logos)+len(req.Products) > 0 {
		emit(StageAssets, 70, "placing brand assets")
		out, plan, err := s.deps.Assets.Apply(ctx, final, req.Logos, req.Products, userPrompt)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ [Pipeline] Asset overlay failed, keeping the refined poster")
			resp.Warnings = append(resp.Warnings, "asset overlay failed")
		} else {
			final = s.keepFiles("overlay", []model.PosterImage{out})[0]
			resp.Placement = &plan
			run.AppendImages(final)
		}
	}

	// 6. 텍스트 레이어
	if req.TextOverlay && s.deps.Text != nil {
		emit(StageText, 80, "rendering text")
		text := s.deps.Text.Compose(ctx, final, userPrompt)
		if text.Applied {
			final = s.keepFiles("text", []model.PosterImage{text.Image})[0]
			resp.TextApplied = true
			run.AppendImages(final)
		} else {
			resp.Warnings = append(resp.Warnings, "text overlay skipped: "+text.Reason)
		}
	}

	// 7. 업로드
	if s.deps.Uploader != nil {
		emit(StageUpload, 90, "uploading")
		path, _, err := s.deps.Uploader.UploadPoster(ctx, final.Data, run.ID)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ [Pipeline] Upload failed")
			resp.Warnings = append(resp.Warnings, "upload failed")
		} else {
			resp.UploadPath = path
		}
	}

	run.Outcome = resp.Outcome
	s.record(ctx, run, &final)

	resp.Final = final
	resp.Images = run.Images()
	resp.Evaluations = run.Evaluations()
	emit(StageDone, 100, "done")
	log.Info().Msgf("✅ [Pipeline] Run %s finished: %s (score %.1f, %d image(s))", run.ID, resp.Outcome, resp.Score, len(resp.Images))
	return resp, nil
}

// fail - 사용자 노출 실패. 기록은 남긴다
func (s *Service) fail(ctx context.Context, run *model.GenerationRun, emit func(Stage, int, string), cause error) error {
	log.Error().Err(cause).Msgf("❌ [Pipeline] Run %s failed", run.ID)
	run.Outcome = "failed"
	s.record(ctx, run, nil)
	emit(StageFailed, 100, UserFailureMessage)

	var integrity *apperr.RankingIntegrityError
	if errors.As(cause, &integrity) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrGenerationFailed, cause)
}

// record - 실행당 정확히 한 번 호출
func (s *Service) record(ctx context.Context, run *model.GenerationRun, final *model.PosterImage) {
	if s.deps.History == nil {
		return
	}
	if err := s.deps.History.Append(context.WithoutCancel(ctx), history.FromRun(run, final)); err != nil {
		log.Warn().Err(err).Msgf("⚠️ [Pipeline] Failed to record run %s", run.ID)
	}
}

// keepFiles - FileStore 가 있으면 이미지를 저장하고 Path 를 채운 복사본 반환
func (s *Service) keepFiles(kind string, images []model.PosterImage) []model.PosterImage {
	if s.deps.Files == nil {
		return images
	}
	out := make([]model.PosterImage, len(images))
	for i, img := range images {
		out[i] = img
		path, err := s.deps.Files.Save(kind, img.ID+extensionOf(img.MIMEType), img.Data)
		if err != nil {
			log.Warn().Err(err).Msgf("⚠️ [Pipeline] Failed to keep %s image %s", kind, img.ID)
			continue
		}
		out[i].Path = path
	}
	return out
}

// keepEdited - 반복 중 run 에 추가된 편집 이미지도 파일로 남기고 경로를 연결
func (s *Service) keepEdited(run *model.GenerationRun, final model.PosterImage) model.PosterImage {
	if s.deps.Files == nil {
		return final
	}
	var edited []model.PosterImage
	seen := make(map[string]bool)
	for _, img := range run.Images() {
		if img.Source == model.SourceEdited && img.Path == "" && !seen[img.ID] {
			seen[img.ID] = true
			edited = append(edited, img)
		}
	}
	for _, img := range s.keepFiles("edited", edited) {
		if img.Path == "" {
			continue
		}
		run.AttachPath(img.ID, img.Path)
		if img.ID == final.ID {
			final.Path = img.Path
		}
	}
	return final
}

func referenceAssets(req Request) []engine.Asset {
	var assets []engine.Asset
	for _, data := range req.Logos {
		assets = append(assets, engine.Asset{Data: data, MIMEType: utils.DetectMIME(data), Kind: model.AssetLogo})
	}
	for _, data := range req.Products {
		assets = append(assets, engine.Asset{Data: data, MIMEType: utils.DetectMIME(data), Kind: model.AssetProduct})
	}
	return assets
}

func extensionOf(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
