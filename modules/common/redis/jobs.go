package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"poster-studio-server/modules/common/model"
)

// QueueKey - 대기 중인 job id 리스트 (LPUSH / BRPOP)
const QueueKey = "poster:jobs:queue"

// jobTTL - job 요청/상태/결과 보관 기간
const jobTTL = 24 * time.Hour

// ErrJobNotFound - job 키가 없거나 만료됨
var ErrJobNotFound = errors.New("job not found")

func JobKey(jobID string) string          { return "poster:job:" + jobID }
func StatusKey(jobID string) string       { return "poster:job:" + jobID + ":status" }
func ResultKey(jobID string) string       { return "poster:job:" + jobID + ":result" }
func CancelKey(jobID string) string       { return "poster:job:" + jobID + ":cancel" }
func ProgressChannel(jobID string) string { return "poster:progress:" + jobID }

// EnqueueJob - 요청 JSON 저장 + pending 상태 + 큐 LPUSH. 큐 길이 반환
func EnqueueJob(ctx context.Context, rdb *redis.Client, jobID string, payload []byte) (int64, error) {
	pipe := rdb.TxPipeline()
	pipe.Set(ctx, JobKey(jobID), payload, jobTTL)
	pipe.Set(ctx, StatusKey(jobID), model.StatusPending, jobTTL)
	push := pipe.LPush(ctx, QueueKey, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}
	return push.Val(), nil
}

// DequeueJob - 큐에서 job id 하나 꺼냄 (timeout 0 이면 무한 대기)
// 대기 시간 초과는 "", nil
func DequeueJob(ctx context.Context, rdb *redis.Client, timeout time.Duration) (string, error) {
	result, err := rdb.BRPop(ctx, timeout, QueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	// result[0]은 큐 이름, result[1]이 job id
	return result[1], nil
}

// LoadJob - 저장된 요청 JSON
func LoadJob(ctx context.Context, rdb *redis.Client, jobID string) ([]byte, error) {
	data, err := rdb.Get(ctx, JobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	return data, err
}

// SetJobStatus - pending → processing → completed | failed
func SetJobStatus(ctx context.Context, rdb *redis.Client, jobID, status string) error {
	return rdb.Set(ctx, StatusKey(jobID), status, jobTTL).Err()
}

// GetJobStatus - 현재 상태
func GetJobStatus(ctx context.Context, rdb *redis.Client, jobID string) (string, error) {
	status, err := rdb.Get(ctx, StatusKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrJobNotFound
	}
	return status, err
}

// SetJobResult - 완료 결과 JSON 저장
func SetJobResult(ctx context.Context, rdb *redis.Client, jobID string, result []byte) error {
	return rdb.Set(ctx, ResultKey(jobID), result, jobTTL).Err()
}

// GetJobResult - 완료 결과 JSON
func GetJobResult(ctx context.Context, rdb *redis.Client, jobID string) ([]byte, error) {
	data, err := rdb.Get(ctx, ResultKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	return data, err
}

// PublishProgress - 진행 이벤트 발행
func PublishProgress(ctx context.Context, rdb *redis.Client, jobID string, payload []byte) error {
	return rdb.Publish(ctx, ProgressChannel(jobID), payload).Err()
}

// SubscribeProgress - 진행 이벤트 구독 (호출자가 Close)
func SubscribeProgress(ctx context.Context, rdb *redis.Client, jobID string) *redis.PubSub {
	return rdb.Subscribe(ctx, ProgressChannel(jobID))
}

// SetJobCancelled - 취소 플래그 설정
func SetJobCancelled(rdb *redis.Client, jobID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rdb.Set(ctx, CancelKey(jobID), "1", jobTTL).Err()
}

// IsJobCancelled - 취소 플래그 확인 (조회 실패는 취소 아님으로 처리)
func IsJobCancelled(rdb *redis.Client, jobID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := rdb.Exists(ctx, CancelKey(jobID)).Result()
	return err == nil && n > 0
}
