package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/AriMathi1/Fitness-app-server/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const classCachePrefix = "payments:class:"

// CachedClassRepository is a read-through Redis cache in front of a ClassRepository.
// Cache failures fall back to the underlying store.
type CachedClassRepository struct {
	next   ClassRepository
	client redis.Cmdable
	ttl    time.Duration
	log    *zap.Logger
}

func NewCachedClassRepository(next ClassRepository, client redis.Cmdable, ttl time.Duration, log *zap.Logger) *CachedClassRepository {
	return &CachedClassRepository{next: next, client: client, ttl: ttl, log: log}
}

func (r *CachedClassRepository) GetByID(ctx context.Context, id string) (*models.Class, error) {
	key := classCachePrefix + id

	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var class models.Class
		if jsonErr := json.Unmarshal(raw, &class); jsonErr == nil {
			return &class, nil
		}
		r.log.Warn("discarding undecodable cached class", zap.String("class_id", id))
	case !errors.Is(err, redis.Nil):
		r.log.Warn("class cache read failed", zap.String("class_id", id), zap.Error(err))
	}

	class, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(class); err == nil {
		if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
			r.log.Warn("class cache write failed", zap.String("class_id", id), zap.Error(err))
		}
	}
	return class, nil
}
