package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"poster-studio-server/modules/common/config"
	"poster-studio-server/modules/common/tempfile"
	"poster-studio-server/modules/common/utils"
)

const (
	bucket      = "attachments"
	webpQuality = 90.0
)

type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// NewClient - Storage 클라이언트 생성
func NewClient() *Client {
	cfg := config.GetConfig()
	return NewClientWith(cfg.SupabaseURL, cfg.SupabaseServiceKey, nil)
}

// NewClientWith - 주소/키를 직접 지정 (테스트용 httptest 서버 포함)
func NewClientWith(baseURL, serviceKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: baseURL, serviceKey: serviceKey, httpClient: httpClient}
}

// UploadPoster - Supabase Storage에 최종 포스터 업로드 (WebP 변환 포함)
func (c *Client) UploadPoster(ctx context.Context, imageData []byte, runID string) (string, int64, error) {
	webpData, err := utils.ConvertToWebP(imageData, webpQuality)
	if err != nil {
		return "", 0, fmt.Errorf("failed to convert poster to WebP: %w", err)
	}

	filePath := fmt.Sprintf("posters/run-%s/%s", runID, tempfile.Name("poster", "webp"))
	log.Info().Msgf("📤 [Storage] Uploading WebP poster: %s", filePath)

	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, bucket, filePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(webpData))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", "image/webp")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to upload poster: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	size := int64(len(webpData))
	log.Info().Msgf("✅ [Storage] Poster uploaded: %s (%d bytes)", filePath, size)
	return filePath, size, nil
}

// PublicURL - 업로드 경로의 공개 URL
func (c *Client) PublicURL(filePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, bucket, filePath)
}
