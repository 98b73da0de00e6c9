package redis

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"

	"visionary-design-server/modules/common/config"
	"visionary-design-server/modules/common/logger"
)

// Connect - Redis 연결 생성. 설정이 없거나 ping 실패 시 nil
func Connect(cfg *config.Config) *redis.Client {
	if !cfg.RedisEnabled() {
		logger.Info("⚠️  REDIS_HOST not set, Redis disabled")
		return nil
	}

	logger.WithField("addr", cfg.GetRedisAddr()).Info("🔌 Connecting to Redis")

	var tlsConfig *tls.Config
	if cfg.RedisUseTLS {
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		TLSConfig:    tlsConfig,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// 연결 테스트
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Error("❌ Redis ping failed")
		_ = rdb.Close()
		return nil
	}

	logger.Info("✅ Redis connected successfully")
	return rdb
}
