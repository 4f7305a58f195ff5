package worker

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisutil "poster-studio-server/modules/common/redis"
	"poster-studio-server/modules/pipeline"
)

// EnqueueHandler - 비동기 포스터 생성 요청을 Redis 큐에 넣음
type EnqueueHandler struct {
	rdb  *redis.Client
	jobs JobRecorder
}

// EnqueueResponse - Enqueue 응답
type EnqueueResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
	JobID         string `json:"job_id,omitempty"`
	Queue         string `json:"queue,omitempty"`
	QueuePosition int64  `json:"queuePosition,omitempty"`
}

// NewEnqueueHandler - jobs 는 nil 가능
func NewEnqueueHandler(rdb *redis.Client, jobs JobRecorder) *EnqueueHandler {
	return &EnqueueHandler{rdb: rdb, jobs: jobs}
}

// RegisterRoutes - 라우트 등록
func (h *EnqueueHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/enqueue", h.HandleEnqueue).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/jobs/{jobId}", h.HandleJobStatus).Methods("GET", "OPTIONS")
	log.Info().Msg("✅ [Enqueue] Routes registered: /api/enqueue, /api/jobs/{jobId}")
}

// HandleEnqueue - POST /api/enqueue (body 는 /api/generate 의 JSON 과 동일)
func (h *EnqueueHandler) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req pipeline.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 32<<20)).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("⚠️ [Enqueue] Invalid request")
		writeJSON(w, http.StatusBadRequest, EnqueueResponse{Success: false, Error: "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, EnqueueResponse{Success: false, Error: pipeline.ErrEmptyPrompt.Error()})
		return
	}

	jobID := uuid.NewString()
	req.JobID = jobID
	payload, err := json.Marshal(req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, EnqueueResponse{Success: false, Error: "Failed to encode job"})
		return
	}

	if h.jobs != nil {
		if err := h.jobs.CreateJob(r.Context(), jobID, req.Prompt); err != nil {
			log.Warn().Err(err).Msgf("⚠️ [Enqueue] Failed to create job row %s", jobID)
		}
	}

	queueLen, err := redisutil.EnqueueJob(r.Context(), h.rdb, jobID, payload)
	if err != nil {
		log.Error().Err(err).Msg("❌ [Enqueue] Redis LPUSH failed")
		writeJSON(w, http.StatusServiceUnavailable, EnqueueResponse{Success: false, Error: "Failed to enqueue job"})
		return
	}

	log.Info().Msgf("✅ [Enqueue] Job %s enqueued successfully (position: %d)", jobID, queueLen)
	writeJSON(w, http.StatusAccepted, EnqueueResponse{
		Success:       true,
		Message:       "Job enqueued successfully",
		JobID:         jobID,
		Queue:         redisutil.QueueKey,
		QueuePosition: queueLen,
	})
}

// HandleJobStatus - GET /api/jobs/{jobId}
func (h *EnqueueHandler) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	jobID := mux.Vars(r)["jobId"]
	status, err := redisutil.GetJobStatus(r.Context(), h.rdb, jobID)
	if errors.Is(err, redisutil.ErrJobNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "error": "Job not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msgf("❌ [Enqueue] Failed to read status of job %s", jobID)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "Failed to read job status"})
		return
	}

	body := map[string]interface{}{"success": true, "job_id": jobID, "status": status}
	if raw, err := redisutil.GetJobResult(r.Context(), h.rdb, jobID); err == nil {
		body["result"] = json.RawMessage(raw)
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("❌ [Worker] Failed to encode response")
	}
}
