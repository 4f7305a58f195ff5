package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"poster-studio-server/modules/common/cancel"
	"poster-studio-server/modules/common/model"
	redisutil "poster-studio-server/modules/common/redis"
	"poster-studio-server/modules/pipeline"
)

// Runner - 포스터 파이프라인 1회 실행
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Response, error)
}

// JobRecorder - job 상태를 DB 에도 남길 때 사용 (선택)
type JobRecorder interface {
	CreateJob(ctx context.Context, jobID, prompt string) error
	UpdateJobStatus(ctx context.Context, jobID, status string) error
	CompleteJob(ctx context.Context, jobID, runID, posterPath string, score float64) error
}

// JobResult - poster:job:<id>:result 에 저장되는 값
type JobResult struct {
	JobID        string             `json:"job_id"`
	Status       string             `json:"status"`
	Run          *pipeline.Response `json:"run,omitempty"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
}

// Options - worker 설정
type Options struct {
	Concurrency    int
	PollTimeout    time.Duration
	CancelInterval time.Duration
	RetryDelay     time.Duration
}

// DefaultOptions - 기본값
func DefaultOptions() Options {
	return Options{
		Concurrency:    2,
		PollTimeout:    5 * time.Second,
		CancelInterval: cancel.DefaultInterval,
		RetryDelay:     5 * time.Second,
	}
}

// Worker - Redis 큐를 감시하며 job 을 파이프라인으로 처리
type Worker struct {
	rdb    *redis.Client
	runner Runner
	jobs   JobRecorder
	opts   Options
}

// NewWorker - jobs 는 nil 가능
func NewWorker(rdb *redis.Client, runner Runner, jobs JobRecorder, opts Options) *Worker {
	def := DefaultOptions()
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = def.PollTimeout
	}
	if opts.CancelInterval <= 0 {
		opts.CancelInterval = def.CancelInterval
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = def.RetryDelay
	}
	return &Worker{rdb: rdb, runner: runner, jobs: jobs, opts: opts}
}

// Start - ctx 가 끝날 때까지 큐 감시. 진행 중인 job 이 끝나면 반환
func (w *Worker) Start(ctx context.Context) error {
	log.Info().Msgf("🔄 [Worker] Watching queue: %s (concurrency: %d)", redisutil.QueueKey, w.opts.Concurrency)

	g := new(errgroup.Group)
	g.SetLimit(w.opts.Concurrency)

	for ctx.Err() == nil {
		// BRPOP - Blocking Right Pop
		jobID, err := redisutil.DequeueJob(ctx, w.rdb, w.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error().Err(err).Msg("❌ [Worker] Redis BRPOP error")
			select {
			case <-ctx.Done():
			case <-time.After(w.opts.RetryDelay):
			}
			continue
		}
		if jobID == "" {
			continue
		}

		log.Info().Msgf("🎯 [Worker] Received new job: %s", jobID)
		// 동시 처리 한도에 걸리면 여기서 대기
		g.Go(func() error {
			if err := w.Process(ctx, jobID); err != nil {
				log.Error().Err(err).Msgf("❌ [Worker] Job %s failed", jobID)
			}
			return nil
		})
	}

	log.Info().Msg("🛑 [Worker] Stopping, waiting for running jobs")
	return g.Wait()
}

// Process - job 1건 처리. 상태/결과는 항상 Redis 에 기록됨
// panic 은 해당 job 만 failed 로 끝내고 다른 job 은 계속 처리
func (w *Worker) Process(ctx context.Context, jobID string) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("💥 [Worker] Job %s panicked: %v", jobID, r)
			w.finish(ctx, JobResult{JobID: jobID, Status: model.StatusFailed, ErrorMessage: pipeline.UserFailureMessage})
			retErr = fmt.Errorf("job %s panicked: %v", jobID, r)
		}
	}()

	payload, err := redisutil.LoadJob(ctx, w.rdb, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	var req pipeline.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		w.finish(ctx, JobResult{JobID: jobID, Status: model.StatusFailed, ErrorMessage: "invalid job payload"})
		return fmt.Errorf("invalid job payload %s: %w", jobID, err)
	}
	req.JobID = jobID

	log.Info().Msgf("🚀 [Worker] Processing job %s (aspect: %s, text: %v, assets: %d)",
		jobID, req.AspectRatio, req.TextOverlay, len(req.Logos)+len(req.Products))

	runCtx, stop := cancel.Watch(ctx, cancel.CheckerFunc(func(id string) bool {
		return redisutil.IsJobCancelled(w.rdb, id)
	}), jobID, w.opts.CancelInterval)
	defer stop()

	if cancel.Cancelled(runCtx) {
		w.finish(ctx, JobResult{JobID: jobID, Status: model.StatusUserCancelled})
		return nil
	}

	w.setStatus(ctx, jobID, model.StatusProcessing)

	resp, err := w.runner.Run(runCtx, req)
	switch {
	case cancel.Cancelled(runCtx):
		log.Info().Msgf("🛑 [Worker] Job %s was cancelled, keeping user_cancelled status", jobID)
		w.finish(ctx, JobResult{JobID: jobID, Status: model.StatusUserCancelled})
		return nil
	case err != nil:
		message := pipeline.UserFailureMessage
		if errors.Is(err, pipeline.ErrEmptyPrompt) {
			message = err.Error()
		}
		w.finish(ctx, JobResult{JobID: jobID, Status: model.StatusFailed, ErrorMessage: message})
		return err
	}

	w.finish(ctx, JobResult{JobID: jobID, Status: model.StatusCompleted, Run: resp})
	if w.jobs != nil {
		path := resp.UploadPath
		if path == "" {
			path = resp.Final.Path
		}
		if err := w.jobs.CompleteJob(context.WithoutCancel(ctx), jobID, resp.RunID, path, resp.Score); err != nil {
			log.Warn().Err(err).Msgf("⚠️ [Worker] Failed to complete job row %s", jobID)
		}
	}
	log.Info().Msgf("✅ [Worker] Job %s processing completed (outcome: %s, score: %.2f)", jobID, resp.Outcome, resp.Score)
	return nil
}

// finish - 결과 JSON 과 최종 상태 기록. 종료 중에도 기록되도록 취소를 무시
func (w *Worker) finish(ctx context.Context, result JobResult) {
	ctx = context.WithoutCancel(ctx)
	data, err := json.Marshal(result)
	if err != nil {
		log.Error().Err(err).Msgf("❌ [Worker] Failed to marshal result for job %s", result.JobID)
		return
	}
	if err := redisutil.SetJobResult(ctx, w.rdb, result.JobID, data); err != nil {
		log.Error().Err(err).Msgf("❌ [Worker] Failed to store result for job %s", result.JobID)
	}
	w.setStatus(ctx, result.JobID, result.Status)
}

func (w *Worker) setStatus(ctx context.Context, jobID, status string) {
	ctx = context.WithoutCancel(ctx)
	if err := redisutil.SetJobStatus(ctx, w.rdb, jobID, status); err != nil {
		log.Error().Err(err).Msgf("❌ [Worker] Failed to set status %s for job %s", status, jobID)
	}
	// completed 는 CompleteJob 에서 한 번에 기록
	if w.jobs != nil && status != model.StatusCompleted {
		if err := w.jobs.UpdateJobStatus(ctx, jobID, status); err != nil {
			log.Warn().Err(err).Msgf("⚠️ [Worker] Failed to update job row %s", jobID)
		}
	}
}
