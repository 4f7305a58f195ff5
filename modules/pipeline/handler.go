package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"poster-studio-server/modules/common/apperr"
	"poster-studio-server/modules/common/utils"
	"poster-studio-server/modules/history"
)

const maxUploadBytes = 32 << 20

// HistoryLister - 기록 조회
type HistoryLister interface {
	LoadAll(ctx context.Context) ([]history.Record, error)
}

// Handler - 포스터 생성 HTTP 핸들러
type Handler struct {
	service *Service
	history HistoryLister
	uploads FileStore
}

// NewHandler - history/uploads 는 nil 가능
func NewHandler(service *Service, historyStore HistoryLister, uploads FileStore) *Handler {
	return &Handler{service: service, history: historyStore, uploads: uploads}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/enhance", h.HandleEnhance).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/generate", h.HandleGenerate).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/history", h.HandleHistory).Methods("GET", "OPTIONS")
	log.Info().Msg("✅ [Pipeline] Routes registered: /api/enhance, /api/generate, /api/history")
}

// PosterPayload - 응답용 포스터 (base64)
type PosterPayload struct {
	ID       string `json:"id"`
	MIMEType string `json:"mimeType"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Base64   string `json:"base64"`
	Path     string `json:"path,omitempty"`
}

type enhanceRequest struct {
	Prompt   string `json:"prompt"`
	Variants int    `json:"variants"`
}

// HandleEnhance - POST /api/enhance
func (h *Handler) HandleEnhance(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req enhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "Invalid request body"})
		return
	}

	result, err := h.service.Enhance(r.Context(), req.Prompt, req.Variants, nil)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"candidates": result.Candidates,
		"ranking":    result.Ranking,
		"best":       result.Best,
		"warnings":   result.Warnings,
	})
}

// HandleGenerate - POST /api/generate (JSON 또는 multipart)
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	req, err := h.parseGenerateRequest(w, r)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ [Pipeline] Invalid generate request")
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": err.Error()})
		return
	}

	resp, err := h.service.Run(r.Context(), req)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"run":     resp,
		"poster": PosterPayload{
			ID:       resp.Final.ID,
			MIMEType: resp.Final.MIMEType,
			Width:    resp.Final.Width,
			Height:   resp.Final.Height,
			Base64:   utils.ConvertImageToBase64(resp.Final.Data),
			Path:     resp.Final.Path,
		},
	})
}

// HandleHistory - GET /api/history
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if h.history == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "runs": []history.Record{}})
		return
	}
	records, err := h.history.LoadAll(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("❌ [Pipeline] Failed to load history")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "Failed to load history"})
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "runs": records})
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrEmptyPrompt) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": err.Error()})
		return
	}
	var integrity *apperr.RankingIntegrityError
	status := http.StatusBadGateway
	if errors.As(err, &integrity) {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]interface{}{"success": false, "errorMessage": UserFailureMessage})
}

func (h *Handler) parseGenerateRequest(w http.ResponseWriter, r *http.Request) (Request, error) {
	var req Request
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid request body")
		}
		return req, h.validateAssets(req)
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return req, fmt.Errorf("invalid multipart form")
	}
	req.Prompt = r.FormValue("prompt")
	req.AspectRatio = r.FormValue("aspect_ratio")
	req.Variants, _ = strconv.Atoi(r.FormValue("variants"))
	req.ImageCount, _ = strconv.Atoi(r.FormValue("image_count"))
	req.TextOverlay, _ = strconv.ParseBool(r.FormValue("text_overlay"))
	req.AssetOverlay, _ = strconv.ParseBool(r.FormValue("asset_overlay"))

	var err error
	if req.Logos, err = h.readFiles(r.MultipartForm, "logo", "logos"); err != nil {
		return req, err
	}
	if req.Products, err = h.readFiles(r.MultipartForm, "product", "products"); err != nil {
		return req, err
	}
	if len(req.Logos)+len(req.Products) > 0 && r.FormValue("asset_overlay") == "" {
		req.AssetOverlay = true
	}
	return req, h.validateAssets(req)
}

// readFiles - 업로드 파일을 읽고 업로드 저장소에 보관
func (h *Handler) readFiles(form *multipart.Form, kind string, fields ...string) ([][]byte, error) {
	var out [][]byte
	for _, field := range fields {
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open %s upload", kind)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read %s upload", kind)
			}
			if h.uploads != nil {
				if _, err := h.uploads.Save(kind, fh.Filename, data); err != nil {
					log.Warn().Err(err).Msgf("⚠️ [Pipeline] Failed to store %s upload %s", kind, fh.Filename)
				}
			}
			out = append(out, data)
		}
	}
	return out, nil
}

func (h *Handler) validateAssets(req Request) error {
	for i, data := range req.Logos {
		if _, err := utils.DecodeImage(data); err != nil {
			return fmt.Errorf("logo #%d is not a supported image", i+1)
		}
	}
	for i, data := range req.Products {
		if _, err := utils.DecodeImage(data); err != nil {
			return fmt.Errorf("product #%d is not a supported image", i+1)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("❌ [Pipeline] Failed to encode response")
	}
}
