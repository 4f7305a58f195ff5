package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/supabase-community/supabase-go"

	"poster-studio-server/modules/common/config"
	"poster-studio-server/modules/common/model"
)

const (
	// RunsTable - 생성 기록 테이블
	RunsTable = "poster_runs"
	// JobsTable - 비동기 작업 테이블
	JobsTable = "poster_jobs"
)

type Client struct {
	supabase *supabase.Client
}

// NewClient - Database 클라이언트 생성
func NewClient() *Client {
	cfg := config.GetConfig()

	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Error().Err(err).Msg("❌ [Database] Failed to create Supabase client")
		return nil
	}

	log.Info().Msg("✅ [Database] Supabase client initialized")
	return &Client{
		supabase: supabaseClient,
	}
}

// InsertRow - table 에 row 1건 삽입
func (c *Client) InsertRow(ctx context.Context, table string, row any) error {
	_, _, err := c.supabase.From(table).
		Insert(row, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

// SelectAll - table 전체를 out(슬라이스 포인터)으로 디코드
func (c *Client) SelectAll(ctx context.Context, table string, out any) error {
	data, _, err := c.supabase.From(table).
		Select("*", "exact", false).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", table, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", table, err)
	}
	return nil
}

// CreateJob - 대기 상태 작업 행 생성
func (c *Client) CreateJob(ctx context.Context, jobID, prompt string) error {
	log.Info().Msgf("💾 [Database] Creating job row %s", jobID)
	return c.InsertRow(ctx, JobsTable, map[string]interface{}{
		"job_id":     jobID,
		"prompt":     prompt,
		"job_status": model.StatusPending,
	})
}

// UpdateJobStatus - Job 상태 업데이트
func (c *Client) UpdateJobStatus(ctx context.Context, jobID string, status string) error {
	log.Info().Msgf("📝 [Database] Updating job %s status to: %s", jobID, status)

	updateData := map[string]interface{}{
		"job_status": status,
		"updated_at": "now()",
	}

	if status == model.StatusProcessing {
		updateData["started_at"] = "now()"
	} else if status == model.StatusCompleted || status == model.StatusFailed {
		updateData["completed_at"] = "now()"
	}

	_, _, err := c.supabase.From(JobsTable).
		Update(updateData, "", "").
		Eq("job_id", jobID).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

// CompleteJob - 완료 작업에 결과 경로/점수 기록
func (c *Client) CompleteJob(ctx context.Context, jobID, runID, posterPath string, score float64) error {
	updateData := map[string]interface{}{
		"job_status":   model.StatusCompleted,
		"run_id":       runID,
		"poster_path":  posterPath,
		"final_score":  score,
		"updated_at":   "now()",
		"completed_at": "now()",
	}
	_, _, err := c.supabase.From(JobsTable).
		Update(updateData, "", "").
		Eq("job_id", jobID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}
	log.Info().Msgf("✅ [Database] Job %s completed (run %s)", jobID, runID)
	return nil
}
