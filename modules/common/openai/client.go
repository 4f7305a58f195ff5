package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rs/zerolog/log"

	"poster-studio-server/modules/common/apperr"
	"poster-studio-server/modules/common/llm"
	"poster-studio-server/modules/common/retry"
)

// Completer - OpenAI Chat Completions 기반 llm.Completer (심사/스크립트 생성용)
type Completer struct {
	client openai.Client
	model  string
	policy retry.Policy
}

// NewCompleter - API 키/베이스 URL 로 Completer 생성. SDK 자체 재시도는 끄고 retry.Policy 사용
func NewCompleter(apiKey, baseURL, model string, policy retry.Policy) *Completer {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	log.Info().Msgf("✅ [OpenAI] Completer ready (model: %s)", model)
	return &Completer{
		client: openai.NewClient(opts...),
		model:  model,
		policy: policy,
	}
}

// Complete - 시스템 메시지 + 사용자 텍스트/이미지 파트
func (c *Completer) Complete(ctx context.Context, req llm.Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: buildMessages(req),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	return retry.Do(ctx, c.policy, "openai:"+c.model, func(ctx context.Context, attempt int) (string, error) {
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", classify(c.model, err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("openai %s returned no choices", c.model)
		}
		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return "", fmt.Errorf("openai %s returned empty content", c.model)
		}
		return text, nil
	})
}

func buildMessages(req llm.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}

	hasImage := false
	for _, p := range req.Parts {
		if p.IsImage() {
			hasImage = true
			break
		}
	}
	if !hasImage {
		var texts []string
		for _, p := range req.Parts {
			texts = append(texts, p.Text)
		}
		return append(messages, openai.UserMessage(strings.Join(texts, "\n\n")))
	}

	content := make([]openai.ChatCompletionContentPartUnionParam, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.IsImage() {
			content = append(content, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: DataURL(p.MIMEType, p.Image),
			}))
			continue
		}
		if p.Text != "" {
			content = append(content, openai.TextContentPart(p.Text))
		}
	}
	return append(messages, openai.UserMessage(content))
}

// DataURL - 이미지 바이너리를 data URL 로 인코딩
func DataURL(mime string, data []byte) string {
	if mime == "" {
		mime = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}

func classify(model string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apperr.IsTransientStatus(apiErr.StatusCode) {
			return &apperr.TransientServiceError{Service: "openai:" + model, StatusCode: apiErr.StatusCode, Err: err}
		}
		return err
	}
	if apperr.IsTransient(err) {
		return &apperr.TransientServiceError{Service: "openai:" + model, Err: err}
	}
	return err
}
