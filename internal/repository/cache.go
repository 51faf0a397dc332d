package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
)

const (
	sessionKeyPrefix  = "pos_session:"
	defaultSessionTTL = 12 * time.Hour
)

// RedisSessionCache implements SessionCache using Redis.
type RedisSessionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewRedisSessionCache creates a session cache on an existing client.
func NewRedisSessionCache(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisSessionCache {
	if ttl == 0 {
		ttl = defaultSessionTTL
	}
	return &RedisSessionCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Get retrieves a session snapshot from cache.
func (c *RedisSessionCache) Get(ctx context.Context, id string) (*models.SessionSnapshot, error) {
	data, err := c.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("Cache miss", logging.Fields{"session_id": id})
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Cache get error", logging.Fields{
			"session_id": id,
			"error":      err.Error(),
		})
		return nil, err
	}

	var snap models.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}

	c.logger.Debug("Cache hit", logging.Fields{"session_id": id})
	return &snap, nil
}

// Set stores a session snapshot and refreshes its TTL.
func (c *RedisSessionCache) Set(ctx context.Context, snap *models.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, sessionKey(snap.ID), data, c.ttl).Err(); err != nil {
		c.logger.Error("Cache set error", logging.Fields{
			"session_id": snap.ID,
			"error":      err.Error(),
		})
		return err
	}

	c.logger.Debug("Session cached", logging.Fields{
		"session_id": snap.ID,
		"ttl":        c.ttl.String(),
	})
	return nil
}

// Delete removes a session snapshot.
func (c *RedisSessionCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		c.logger.Error("Cache delete error", logging.Fields{
			"session_id": id,
			"error":      err.Error(),
		})
		return err
	}
	return nil
}
