package gemini

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"poster-studio-server/modules/common/apperr"
	"poster-studio-server/modules/common/retry"
)

// Client - 여러 API 키를 돌려 쓰는 genai 클라이언트 묶음
// 429 등 일시적 에러가 나면 다음 키로 재시도
type Client struct {
	keys    []string
	clients []*genai.Client
	policy  retry.Policy
	next    atomic.Uint32
}

// NewClient - API 키마다 genai 클라이언트 생성
func NewClient(ctx context.Context, apiKeys []string, policy retry.Policy) (*Client, error) {
	if len(apiKeys) == 0 {
		return nil, fmt.Errorf("no API keys provided")
	}

	clients := make([]*genai.Client, 0, len(apiKeys))
	for i, key := range apiKeys {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client for key #%d: %w", i+1, err)
		}
		clients = append(clients, client)
	}

	log.Info().Msgf("✅ [Gemini] Client ready with %d API key(s)", len(clients))
	return &Client{keys: apiKeys, clients: clients, policy: policy}, nil
}

// NewClientFrom - 이미 만든 genai 클라이언트들로 구성 (Vertex AI 백엔드 등)
func NewClientFrom(clients []*genai.Client, policy retry.Policy) (*Client, error) {
	if len(clients) == 0 {
		return nil, fmt.Errorf("no genai clients provided")
	}
	return &Client{clients: clients, policy: policy}, nil
}

// pick - attempt 마다 다음 키 선택 (라운드 로빈 시작점 + 시도 횟수)
func (c *Client) pick(start uint32, attempt int) (int, *genai.Client) {
	idx := int(start+uint32(attempt-1)) % len(c.clients)
	return idx, c.clients[idx]
}

// GenerateContent - 재시도/키 로테이션 포함 GenerateContent
func (c *Client) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	start := c.next.Add(1)
	return retry.Do(ctx, c.policy, "gemini:"+model, func(ctx context.Context, attempt int) (*genai.GenerateContentResponse, error) {
		idx, client := c.pick(start, attempt)
		if attempt > 1 {
			log.Debug().Msgf("🔑 [Gemini Retry] Using API key #%d/%d", idx+1, len(c.clients))
		}
		result, err := client.Models.GenerateContent(ctx, model, contents, config)
		if err != nil {
			return nil, classify(model, err)
		}
		return result, nil
	})
}

// GenerateImages - 재시도/키 로테이션 포함 Imagen 호출
func (c *Client) GenerateImages(
	ctx context.Context,
	model string,
	prompt string,
	config *genai.GenerateImagesConfig,
) (*genai.GenerateImagesResponse, error) {
	start := c.next.Add(1)
	return retry.Do(ctx, c.policy, "imagen:"+model, func(ctx context.Context, attempt int) (*genai.GenerateImagesResponse, error) {
		_, client := c.pick(start, attempt)
		result, err := client.Models.GenerateImages(ctx, model, prompt, config)
		if err != nil {
			return nil, classify(model, err)
		}
		return result, nil
	})
}

// classify - genai 에러를 TransientServiceError 로 변환 (재시도 대상만)
func classify(model string, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apperr.IsTransientStatus(apiErr.Code) {
			return &apperr.TransientServiceError{Service: "gemini:" + model, StatusCode: apiErr.Code, Err: err}
		}
		return err
	}
	if apperr.IsTransient(err) {
		return &apperr.TransientServiceError{Service: "gemini:" + model, Err: err}
	}
	return err
}
