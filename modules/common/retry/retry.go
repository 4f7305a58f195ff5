package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"poster-studio-server/modules/common/apperr"
)

// Policy - 외부 호출 재시도 정책 (지수 백오프)
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Limiter 가 있으면 매 시도 전에 토큰을 기다림
	Limiter *rate.Limiter
	// Sleep 은 테스트에서 교체 가능
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy - 최대 3회, 1s → 2s → 4s (상한 8s)
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    8 * time.Second,
	}
}

// NewPolicy - 설정값 기반 정책 생성. rps <= 0 이면 속도 제한 없음
func NewPolicy(maxAttempts int, baseDelay time.Duration, rps float64) Policy {
	p := DefaultPolicy()
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	if baseDelay > 0 {
		p.BaseDelay = baseDelay
		p.MaxDelay = 8 * baseDelay
	}
	if rps > 0 {
		p.Limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return p
}

// Do - fn 을 실행하고 TransientServiceError 류 에러일 때만 재시도
// 파싱 실패 같은 논리 에러는 즉시 반환
func Do[T any](ctx context.Context, p Policy, name string, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return zero, fmt.Errorf("%s: rate limiter: %w", name, err)
			}
		}

		result, err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				log.Info().Msgf("✅ [Retry] %s succeeded on attempt %d/%d", name, attempt, attempts)
			}
			return result, nil
		}
		lastErr = err

		if !apperr.IsTransient(err) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: %w", name, ctx.Err())
		}
		if attempt == attempts {
			break
		}

		delay := p.backoff(attempt)
		log.Warn().Msgf("⚠️  [Retry] %s attempt %d/%d failed: %v (retrying in %s)", name, attempt, attempts, err, delay)
		if err := sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%s: %w", name, err)
		}
	}

	return zero, fmt.Errorf("%s: exhausted %d attempts: %w", name, attempts, lastErr)
}

// backoff - BaseDelay * 2^(attempt-1), ±20% jitter, MaxDelay 상한
func (p Policy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	d := base << (attempt - 1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	jitter := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(d) * jitter)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
