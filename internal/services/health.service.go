package services

import (
	"context"
	"time"

	"github.com/alumniport/donation-gateway/pkg/pg"
	"github.com/alumniport/donation-gateway/pkg/redis"
)

// HealthService answers the liveness probe by pinging the write database and
// redis. Either dependency may be nil in stripped-down deployments.
type HealthService struct {
	db    *pg.DB
	redis redis.RedisAdapter
}

func NewHealthService(db *pg.DB, redis redis.RedisAdapter) *HealthService {
	return &HealthService{db: db, redis: redis}
}

func (s *HealthService) Get() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		sqlDB, err := s.db.Write(ctx).DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
	}
	if s.redis != nil {
		if err := s.redis.Client().Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}
