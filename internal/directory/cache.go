package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedClinicDirectory wraps a ClinicDirectory with a Redis read-through
// cache. Names change rarely; a bounded TTL keeps the worst-case staleness
// to a few minutes and the cache shared across processes.
//
// Cache failures never fail a lookup, they just fall through to the inner
// directory.
type CachedClinicDirectory struct {
	inner  ClinicDirectory
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedClinicDirectory(inner ClinicDirectory, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedClinicDirectory {
	return &CachedClinicDirectory{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (d *CachedClinicDirectory) GetName(ctx context.Context, id int) (string, error) {
	key := fmt.Sprintf("directory:clinic:%d", id)

	name, err := d.client.Get(ctx, key).Result()
	if err == nil {
		return name, nil
	}
	if err != redis.Nil {
		d.logger.Warn("clinic name cache read failed", zap.Int("clinic_id", id), zap.Error(err))
	}

	name, err = d.inner.GetName(ctx, id)
	if err != nil {
		return "", err
	}

	if err := d.client.Set(ctx, key, name, d.ttl).Err(); err != nil {
		d.logger.Warn("clinic name cache write failed", zap.Int("clinic_id", id), zap.Error(err))
	}
	return name, nil
}

// CachedDoctorDirectory is the doctor-name counterpart of
// CachedClinicDirectory.
type CachedDoctorDirectory struct {
	inner  DoctorDirectory
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedDoctorDirectory(inner DoctorDirectory, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedDoctorDirectory {
	return &CachedDoctorDirectory{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (d *CachedDoctorDirectory) GetName(ctx context.Context, id string) (string, error) {
	key := "directory:doctor:" + id

	name, err := d.client.Get(ctx, key).Result()
	if err == nil {
		return name, nil
	}
	if err != redis.Nil {
		d.logger.Warn("doctor name cache read failed", zap.String("doctor_id", id), zap.Error(err))
	}

	name, err = d.inner.GetName(ctx, id)
	if err != nil {
		return "", err
	}

	if err := d.client.Set(ctx, key, name, d.ttl).Err(); err != nil {
		d.logger.Warn("doctor name cache write failed", zap.String("doctor_id", id), zap.Error(err))
	}
	return name, nil
}
