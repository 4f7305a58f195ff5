package prompt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"poster-studio-server/modules/common/apperr"
	"poster-studio-server/modules/common/llm"
	"poster-studio-server/modules/common/model"
)

const (
	minVariants = 1
	maxVariants = 5
)

// Enhancer - 사용자 아이디어를 이미지 모델용 상세 프롬프트로 확장
type Enhancer struct {
	completer   llm.Completer
	temperature float32
}

// NewEnhancer - Enhancer 생성
func NewEnhancer(completer llm.Completer) *Enhancer {
	log.Info().Msg("✅ [Prompt] Enhancer initialized")
	return &Enhancer{completer: completer, temperature: 0.9}
}

// Enhance - 단일 강화 프롬프트 생성
func (e *Enhancer) Enhance(ctx context.Context, userPrompt string, hints *AssetHints) (model.PromptCandidate, error) {
	text, err := e.enhanceOnce(ctx, userPrompt, hints)
	if err != nil {
		return model.PromptCandidate{}, &apperr.EnhancementFailure{Err: err}
	}
	return model.PromptCandidate{Text: text, Provenance: model.ProvenanceEnhanced}, nil
}

// EnhanceVariants - 서로 다른 강화 프롬프트 n개 생성 (n 은 [1,5] 로 보정)
// 한 번의 호출로 배열을 받고, 모자라면 단일 강화 호출로 채운다
func (e *Enhancer) EnhanceVariants(ctx context.Context, userPrompt string, hints *AssetHints, n int) ([]model.PromptCandidate, error) {
	n = clampVariants(n)
	if n == 1 {
		c, err := e.Enhance(ctx, userPrompt, hints)
		if err != nil {
			return nil, err
		}
		c.Provenance = model.ProvenanceVariant
		return []model.PromptCandidate{c}, nil
	}

	texts, batchErr := e.enhanceBatch(ctx, userPrompt, hints, n)
	if batchErr != nil {
		log.Warn().Err(batchErr).Msg("⚠️ [Prompt] Variant batch failed, filling with single enhancements")
	}

	if missing := n - len(texts); missing > 0 {
		var (
			mu    sync.Mutex
			extra []string
		)
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < missing; i++ {
			g.Go(func() error {
				text, err := e.enhanceOnce(gctx, userPrompt, hints)
				if err != nil {
					return err
				}
				mu.Lock()
				extra = append(extra, text)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil && len(texts)+len(extra) == 0 {
			return nil, &apperr.EnhancementFailure{Err: err}
		}
		texts = append(texts, extra...)
	}

	if len(texts) == 0 {
		return nil, &apperr.EnhancementFailure{Err: fmt.Errorf("no variants returned")}
	}
	if len(texts) > n {
		texts = texts[:n]
	}

	out := make([]model.PromptCandidate, 0, len(texts))
	for i, text := range texts {
		out = append(out, model.PromptCandidate{Text: text, Provenance: model.ProvenanceVariant, VariantIndex: i})
	}
	log.Info().Msgf("✅ [Prompt] %d variant(s) ready", len(out))
	return out, nil
}

func (e *Enhancer) enhanceOnce(ctx context.Context, userPrompt string, hints *AssetHints) (string, error) {
	raw, err := e.completer.Complete(ctx, llm.Request{
		System:      enhanceSystemPrompt,
		Parts:       []llm.Part{llm.Text(buildEnhanceUserText(userPrompt, hints))},
		Temperature: e.temperature,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(llm.StripFences(raw))
	if text == "" {
		return "", fmt.Errorf("enhancer returned empty text")
	}
	return text, nil
}

func (e *Enhancer) enhanceBatch(ctx context.Context, userPrompt string, hints *AssetHints, n int) ([]string, error) {
	raw, err := e.completer.Complete(ctx, llm.Request{
		System:      fmt.Sprintf(variantsSystemPrompt, n),
		Parts:       []llm.Part{llm.Text(buildEnhanceUserText(userPrompt, hints))},
		JSON:        true,
		Temperature: e.temperature,
	})
	if err != nil {
		return nil, err
	}
	return parseVariants(raw)
}

// parseVariants - {"variants":[...]} 또는 [...] 모두 허용, 빈 문자열과 중복은 버림
func parseVariants(raw string) ([]string, error) {
	var items []string
	var wrapped variantsResponse
	if err := llm.DecodeJSON(raw, &wrapped); err == nil && len(wrapped.Variants) > 0 {
		items = wrapped.Variants
	} else if err := llm.DecodeJSON(raw, &items); err != nil {
		return nil, apperr.Malformed("enhance-variants", raw, err)
	}

	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out, nil
}

func clampVariants(n int) int {
	if n < minVariants {
		return minVariants
	}
	if n > maxVariants {
		return maxVariants
	}
	return n
}
