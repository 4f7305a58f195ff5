package pipeline

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisutil "poster-studio-server/modules/common/redis"
)

// Progress - 진행 이벤트 수신자
type Progress interface {
	Publish(ctx context.Context, ev Event)
}

// NopProgress - 아무것도 하지 않음
type NopProgress struct{}

func (NopProgress) Publish(ctx context.Context, ev Event) {}

// RedisProgress - poster:progress:<jobId> 채널로 발행
// JobID 가 없는 이벤트(동기 요청)는 무시
type RedisProgress struct {
	rdb *redis.Client
}

// NewRedisProgress - RedisProgress 생성
func NewRedisProgress(rdb *redis.Client) *RedisProgress {
	return &RedisProgress{rdb: rdb}
}

func (p *RedisProgress) Publish(ctx context.Context, ev Event) {
	if p == nil || p.rdb == nil || ev.JobID == "" {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := redisutil.PublishProgress(context.WithoutCancel(ctx), p.rdb, ev.JobID, payload); err != nil {
		log.Warn().Err(err).Msgf("⚠️ [Pipeline] Failed to publish progress for job %s", ev.JobID)
	}
}
