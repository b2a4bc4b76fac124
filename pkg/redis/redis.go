package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrCacheMiss is returned when a key is absent; callers fall through to the
// database read path.
var ErrCacheMiss = errors.New("cache miss")

type IRedis interface {
	SetCache(ctx context.Context, key string, payload []byte, expiration time.Duration) error
	GetCache(ctx context.Context, key string) ([]byte, error)
	InvalidateCache(ctx context.Context, key string) error
}

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

func (r *redisClient) SetCache(ctx context.Context, key string, payload []byte, expiration time.Duration) error {
	err := r.client.Set(ctx, key, payload, expiration).Err()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error setting cache for key %s: %v", key, err))
		return err
	}
	return nil
}

func (r *redisClient) GetCache(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error getting cache for key %s: %v", key, err))
		return nil, err
	}
	return val, nil
}

func (r *redisClient) InvalidateCache(ctx context.Context, key string) error {
	if _, err := r.client.Del(ctx, key).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Error invalidating cache for key %s: %v", key, err))
		return err
	}
	return nil
}
