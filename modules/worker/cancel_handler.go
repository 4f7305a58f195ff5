package worker

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"poster-studio-server/modules/common/model"
	redisutil "poster-studio-server/modules/common/redis"
)

// CancelHandler - Job 취소 API 핸들러
type CancelHandler struct {
	rdb *redis.Client
}

// NewCancelHandler - 핸들러 생성
func NewCancelHandler(rdb *redis.Client) *CancelHandler {
	return &CancelHandler{rdb: rdb}
}

// RegisterRoutes - 라우트 등록
func (h *CancelHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/jobs/{jobId}/cancel", h.CancelJob).Methods("POST", "OPTIONS")
	log.Info().Msg("✅ [CancelHandler] Routes registered: POST /api/jobs/{jobId}/cancel")
}

// CancelJob - 취소 플래그만 세우고, 실제 중단은 worker 가 처리
func (h *CancelHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	jobID := mux.Vars(r)["jobId"]
	log.Info().Msgf("🛑 [CancelHandler] Cancel requested for job: %s", jobID)

	status, err := redisutil.GetJobStatus(r.Context(), h.rdb, jobID)
	if errors.Is(err, redisutil.ErrJobNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "error": "Job not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msgf("❌ [CancelHandler] Failed to read status of job %s", jobID)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "Failed to read job status"})
		return
	}

	// 이미 끝난 job 은 취소 불가
	switch status {
	case model.StatusCompleted, model.StatusFailed, model.StatusUserCancelled:
		log.Warn().Msgf("⚠️ [CancelHandler] Job already %s: %s", status, jobID)
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"success":    false,
			"message":    "Job already " + status,
			"job_id":     jobID,
			"job_status": status,
		})
		return
	}

	if err := redisutil.SetJobCancelled(h.rdb, jobID); err != nil {
		log.Error().Err(err).Msg("❌ [CancelHandler] Failed to set cancel flag")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "Failed to set cancel flag"})
		return
	}

	log.Info().Msgf("✅ [CancelHandler] Cancel flag set for job: %s (current status: %s)", jobID, status)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"message":        "Cancel request sent. Job will stop at the next stage boundary.",
		"job_id":         jobID,
		"current_status": status,
	})
}
