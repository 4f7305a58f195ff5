package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"poster-studio-server/modules/common/llm"
)

// ContentGenerator - GenerateContent 만 필요로 하는 호출자용 인터페이스
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ImageGenerator - Imagen GenerateImages 호출 인터페이스
type ImageGenerator interface {
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// InlineImage - 응답에서 꺼낸 이미지 바이너리
type InlineImage struct {
	Data     []byte
	MIMEType string
}

// ExtractImages - 응답의 모든 InlineData 이미지 파트 추출
func ExtractImages(resp *genai.GenerateContentResponse) []InlineImage {
	var out []InlineImage
	if resp == nil {
		return out
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			out = append(out, InlineImage{Data: part.InlineData.Data, MIMEType: mime})
		}
	}
	return out
}

// ExtractText - 첫 후보의 텍스트 파트를 이어 붙임
func ExtractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// ToParts - llm.Part 목록을 genai 파트로 변환
func ToParts(parts []llm.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.IsImage() {
			out = append(out, &genai.Part{InlineData: &genai.Blob{MIMEType: p.MIMEType, Data: p.Image}})
			continue
		}
		if p.Text != "" {
			out = append(out, genai.NewPartFromText(p.Text))
		}
	}
	return out
}

// Completer - Gemini 텍스트 모델 기반 llm.Completer
type Completer struct {
	gen   ContentGenerator
	model string
}

// NewCompleter - 텍스트/비전 완성용 Completer
func NewCompleter(gen ContentGenerator, model string) *Completer {
	return &Completer{gen: gen, model: model}
}

// Complete - 시스템 지시문 + 사용자 파트로 텍스트 응답 생성
func (c *Completer) Complete(ctx context.Context, req llm.Request) (string, error) {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}
	if req.Temperature > 0 {
		config.Temperature = floatPtr(req.Temperature)
	}

	contents := []*genai.Content{genai.NewContentFromParts(ToParts(req.Parts), genai.RoleUser)}
	resp, err := c.gen.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(ExtractText(resp))
	if text == "" {
		return "", fmt.Errorf("gemini %s returned no text", c.model)
	}
	return text, nil
}

func floatPtr(f float32) *float32 {
	return &f
}
