package engine

import (
	"context"
	"fmt"

	"poster-studio-server/modules/common/gemini"
	"poster-studio-server/modules/common/model"
)

// Kind - 이미지 생성 백엔드 종류
type Kind string

const (
	KindGemini Kind = "gemini"
	KindImagen Kind = "imagen"
)

const (
	defaultCount = 2
	maxCount     = 4
)

// Asset - 참조용 브랜드 에셋 (Gemini 백엔드만 사용)
type Asset struct {
	Data     []byte
	MIMEType string
	Kind     model.AssetKind
}

// GenerateRequest - 생성 요청
type GenerateRequest struct {
	Prompt      string
	AspectRatio string
	Count       int
	Assets      []Asset
}

// Engine - 이미지 생성기. 이미지 0장은 에러가 아닌 정상 결과 (nil, nil)
type Engine interface {
	Generate(ctx context.Context, req GenerateRequest) ([]model.PosterImage, error)
	Name() string
}

// GeminiOptions - Gemini 이미지 모델 설정
type GeminiOptions struct {
	Model              string
	Temperature        float32
	UseReferenceAssets bool
}

// ImagenOptions - Imagen 설정
type ImagenOptions struct {
	Model      string
	MIMEType   string
	AllowAdult bool
}

// Options - 설정으로 고르는 백엔드 (Kind 에 맞는 필드만 채움)
type Options struct {
	Kind   Kind
	Gemini *GeminiOptions
	Imagen *ImagenOptions
}

// Client - 두 백엔드가 필요로 하는 genai 호출
type Client interface {
	gemini.ContentGenerator
	gemini.ImageGenerator
}

// New - Options 에 맞는 Engine 생성
func New(opts Options, client Client) (Engine, error) {
	switch opts.Kind {
	case KindImagen:
		if opts.Imagen == nil || opts.Imagen.Model == "" {
			return nil, fmt.Errorf("imagen engine requires a model")
		}
		return newImagenEngine(*opts.Imagen, client), nil
	case KindGemini:
		if opts.Gemini == nil || opts.Gemini.Model == "" {
			return nil, fmt.Errorf("gemini engine requires a model")
		}
		return newGeminiEngine(*opts.Gemini, client), nil
	default:
		return nil, fmt.Errorf("unknown image engine %q", opts.Kind)
	}
}

// normalizeCount - 기본 2장, [1,4] 범위
func normalizeCount(n int) int {
	if n <= 0 {
		return defaultCount
	}
	if n > maxCount {
		return maxCount
	}
	return n
}
