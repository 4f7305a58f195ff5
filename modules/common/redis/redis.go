package redis

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"poster-studio-server/modules/common/config"
)

const pingTimeout = 10 * time.Second

// ClientOptions - 설정에서 go-redis 옵션 생성
// 관리형 Redis 는 대부분 자체 서명 인증서라 REDIS_TLS_VERIFY 를 켜야만 검증한다
func ClientOptions(cfg *config.Config) *redis.Options {
	opts := &redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		DialTimeout:  pingTimeout,
		ReadTimeout:  30 * time.Second, // BRPOP 대기(5s)보다 길어야 함
		WriteTimeout: 30 * time.Second,
	}
	if cfg.RedisUseTLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			ServerName:         cfg.RedisHost,
			InsecureSkipVerify: !cfg.RedisTLSVerify,
		}
	}
	return opts
}

// Connect - 연결 후 PING 확인. 실패하면 nil (호출 측에서 비동기 기능을 끔)
func Connect(cfg *config.Config) *redis.Client {
	opts := ClientOptions(cfg)
	log.Info().Msgf("🔌 [Redis] Connecting to %s (TLS: %v, verify: %v)", opts.Addr, cfg.RedisUseTLS, cfg.RedisTLSVerify)

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error().Err(err).Msg("❌ [Redis] Ping failed")
		rdb.Close()
		return nil
	}

	log.Info().Msg("✅ [Redis] Connected")
	return rdb
}
