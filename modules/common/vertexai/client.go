package vertexai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// NewClient - Vertex AI 백엔드 genai 클라이언트 생성 (환경 변수 자동 처리)
func NewClient(ctx context.Context, project, location string) (*genai.Client, error) {
	creds, err := loadCredentials()
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend:     genai.BackendVertexAI,
		Project:     project,
		Location:    location,
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	log.Info().Msgf("✅ [VertexAI] Client initialized for project=%s, location=%s", project, location)
	return client, nil
}

// loadCredentials - JSON 환경 변수 > 파일 경로 > ADC 순서
// nil 이면 genai 가 ADC 를 직접 찾음
func loadCredentials() (*auth.Credentials, error) {
	// 1. VERTEXAI_CREDENTIALS_JSON (배포용)
	if credsJSON := os.Getenv("VERTEXAI_CREDENTIALS_JSON"); credsJSON != "" {
		log.Info().Msg("✅ [VertexAI] Using VERTEXAI_CREDENTIALS_JSON from environment")
		return fromJSON([]byte(credsJSON))
	}

	// 2. VERTEXAI_CREDENTIALS_PATH (로컬 테스트용)
	if credsPath := os.Getenv("VERTEXAI_CREDENTIALS_PATH"); credsPath != "" {
		log.Info().Msgf("✅ [VertexAI] Using credentials from file: %s", credsPath)
		data, err := os.ReadFile(credsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return fromJSON(data)
	}

	// 3. Application Default Credentials
	log.Warn().Msg("⚠️ [VertexAI] No explicit credentials found, using Application Default Credentials")
	return nil, nil
}

func fromJSON(data []byte) (*auth.Credentials, error) {
	var probe map[string]interface{}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON credentials: %w", err)
	}
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes:          []string{cloudPlatformScope},
		CredentialsJSON: data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load Vertex AI credentials: %w", err)
	}
	return creds, nil
}
