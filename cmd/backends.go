package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/cache"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"go.uber.org/zap"
)

// backends holds the stores shared by the server and the commands.
type backends struct {
	pool        *postgres.Pool
	employees   *postgres.EmployeeRepository
	users       *postgres.UserRepository
	attendances *postgres.AttendanceRepository
	revoked     *postgres.RevokedTokenRepository

	redis  *cache.Redis
	memory *cache.Memory
}

// openBackends connects to PostgreSQL (running migrations) and, when configured, Redis.
func openBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backends, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	logger.Info("Connecting to PostgreSQL database")
	pool, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	b := &backends{
		pool:        pool,
		employees:   postgres.NewEmployeeRepository(pool),
		users:       postgres.NewUserRepository(pool),
		attendances: postgres.NewAttendanceRepository(pool),
		revoked:     postgres.NewRevokedTokenRepository(pool),
	}

	if cfg.Redis.URL == "" {
		logger.Info("REDIS_URL not set, using in-memory recognition cache and PostgreSQL token denylist")
		b.memory = cache.NewMemory()
		return b, nil
	}

	r, err := cache.NewRedis(ctx, cfg.Redis.URL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("Using Redis for recognition cache and token denylist")
	b.redis = r
	return b, nil
}

// recognitionCache returns Redis when configured, the in-memory cache otherwise.
func (b *backends) recognitionCache() cache.RecognitionCache {
	if b.redis != nil {
		return b.redis
	}
	return b.memory
}

// denylist returns Redis when configured, the revoked_tokens table otherwise.
func (b *backends) denylist() database.TokenDenylist {
	if b.redis != nil {
		return b.redis
	}
	return b.revoked
}

func (b *backends) healthChecks() map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"database": b.pool.Ping,
	}
	if b.redis != nil {
		checks["redis"] = b.redis.Ping
	}
	return checks
}

// runJanitor periodically drops expired cache entries and revoked tokens until ctx ends.
func (b *backends) runJanitor(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if b.memory != nil {
				if n := b.memory.Cleanup(); n > 0 {
					logger.Debug("Expired cache entries removed", zap.Int("count", n))
				}
			}
			if b.redis == nil {
				n, err := b.revoked.DeleteExpired(ctx)
				if err != nil {
					logger.Warn("Failed to delete expired revoked tokens", zap.Error(err))
				} else if n > 0 {
					logger.Debug("Expired revoked tokens removed", zap.Int64("count", n))
				}
			}
		}
	}
}

func (b *backends) Close() {
	if b.redis != nil {
		b.redis.Close()
	}
	b.pool.Close()
}
