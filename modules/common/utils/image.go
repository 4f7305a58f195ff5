package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG 디코더 등록
	"image/png"
	"net/http"

	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/rs/zerolog/log"

	"poster-studio-server/modules/common/model"
)

// DecodeImage - PNG/JPEG/WebP 바이너리 디코드
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	if isWebP(data) {
		img, werr := webp.Decode(bytes.NewReader(data), &decoder.Options{})
		if werr != nil {
			return nil, fmt.Errorf("failed to decode WebP: %w", werr)
		}
		return img, nil
	}
	return nil, fmt.Errorf("failed to decode image: %w", err)
}

// EncodePNG - image.Image 를 PNG 바이너리로
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// ConvertToWebP - 이미지 바이너리(PNG/JPEG/WebP)를 WebP 로 변환
func ConvertToWebP(data []byte, quality float32) ([]byte, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}

	var webpBuffer bytes.Buffer
	if err := webp.Encode(&webpBuffer, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}

	webpData := webpBuffer.Bytes()
	log.Debug().Msgf("🔄 Image converted to WebP: %d bytes → %d bytes", len(data), len(webpData))
	return webpData, nil
}

// Dimensions - 디코드 없이 크기만 읽음
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		return cfg.Width, cfg.Height, nil
	}
	img, derr := DecodeImage(data)
	if derr != nil {
		return 0, 0, derr
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

// NewPosterImage - 바이너리로부터 크기/MIME 을 채운 PosterImage 생성
func NewPosterImage(data []byte, mime string, source model.ImageSource) (model.PosterImage, error) {
	w, h, err := Dimensions(data)
	if err != nil {
		return model.PosterImage{}, err
	}
	if mime == "" {
		mime = DetectMIME(data)
	}
	return model.NewPosterImage(data, mime, w, h, source), nil
}

// PosterFromImage - image.Image 를 PNG 로 인코딩해 PosterImage 생성
func PosterFromImage(img image.Image, source model.ImageSource) (model.PosterImage, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return model.PosterImage{}, err
	}
	b := img.Bounds()
	return model.NewPosterImage(data, "image/png", b.Dx(), b.Dy(), source), nil
}

// DetectMIME - 매직 바이트로 MIME 판별
func DetectMIME(data []byte) string {
	if isWebP(data) {
		return "image/webp"
	}
	return http.DetectContentType(data)
}

// ConvertImageToBase64 - 이미지 바이너리를 base64로 변환
func ConvertImageToBase64(imageData []byte) string {
	return base64.StdEncoding.EncodeToString(imageData)
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}
