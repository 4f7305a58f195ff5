package cancel

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrCancelled - 사용자가 job 을 취소함 (context.Cause 로 확인)
var ErrCancelled = errors.New("job cancelled by user")

// DefaultInterval - 취소 플래그 확인 주기
const DefaultInterval = 2 * time.Second

// Checker - 취소 플래그 조회
type Checker interface {
	IsJobCancelled(jobID string) bool
}

// CheckerFunc - 함수를 Checker 로 사용
type CheckerFunc func(jobID string) bool

func (f CheckerFunc) IsJobCancelled(jobID string) bool { return f(jobID) }

// Watch - 취소 플래그가 서면 ErrCancelled 를 원인으로 ctx 를 취소
// 반환된 stop 을 반드시 호출해야 감시 goroutine 이 종료됨
func Watch(ctx context.Context, checker Checker, jobID string, interval time.Duration) (context.Context, context.CancelFunc) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	watched, cancelCause := context.WithCancelCause(ctx)

	// 시작 전에 이미 취소된 job
	if checker.IsJobCancelled(jobID) {
		log.Info().Msgf("🛑 [Cancel] Job %s was cancelled before start", jobID)
		cancelCause(ErrCancelled)
		return watched, func() { cancelCause(context.Canceled) }
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-watched.Done():
				return
			case <-ticker.C:
				if checker.IsJobCancelled(jobID) {
					log.Info().Msgf("🛑 [Cancel] Job %s cancelled, stopping pipeline", jobID)
					cancelCause(ErrCancelled)
					return
				}
			}
		}
	}()

	return watched, func() { cancelCause(context.Canceled) }
}

// Cancelled - ctx 가 사용자 취소로 끝났는지
func Cancelled(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrCancelled)
}
