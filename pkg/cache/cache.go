// Package cache 提供行情缓存，优先使用 Redis，故障时降级为本地内存缓存。
// 调用方永远不会从缓存读取中收到错误，只有命中或未命中。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wyfcoding/papertrading/pkg/logger"
)

// Config Redis 配置
type Config struct {
	Host         string
	Port         int
	Password     string
	DB           int
	MaxPoolSize  int
	ConnTimeout  int
	ReadTimeout  int
	WriteTimeout int
}

// Stats 缓存状态
type Stats struct {
	Count   int    `json:"count"`
	Backend string `json:"backend"`
}

// Store 两级缓存。Redis 可用时读写 Redis，任何 Redis 故障都就地降级到
// 本地内存，不向调用方传播。
type Store struct {
	client *redis.Client
	local  *memoryStore
}

// New 创建缓存实例。连接失败不是致命错误，返回仅使用内存后端的实例。
func New(cfg Config) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.MaxPoolSize,
		ConnMaxIdleTime: time.Duration(cfg.ConnTimeout) * time.Second,
		ReadTimeout:     time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(cfg.WriteTimeout) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := &Store{local: newMemoryStore(nil)}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn(ctx, "redis unreachable, cache degraded to in-memory", "addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), "error", err)
		return store
	}
	store.client = client
	logger.Info(ctx, "redis connected", "addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	return store
}

// NewMemory 创建仅内存后端的缓存实例，now 为空时使用系统时钟
func NewMemory(now func() time.Time) *Store {
	return &Store{local: newMemoryStore(now)}
}

// GetJSON 读取缓存并反序列化到 dest，返回是否命中
func (s *Store) GetJSON(ctx context.Context, key string, dest any) bool {
	data, ok := s.getBytes(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		logger.Warn(ctx, "cache entry unmarshal failed, dropping", "key", key, "error", err)
		s.Delete(ctx, key)
		return false
	}
	return true
}

// SetJSON 序列化并写入缓存，写入失败只记录日志
func (s *Store) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		logger.Error(ctx, "cache entry marshal failed", "key", key, "error", err)
		return
	}
	if s.client != nil {
		if err := s.client.Set(ctx, key, data, ttl).Err(); err == nil {
			return
		} else {
			logger.Warn(ctx, "redis set failed, falling back to memory", "key", key, "error", err)
		}
	}
	s.local.set(key, data, ttl)
}

// Delete 删除缓存条目
func (s *Store) Delete(ctx context.Context, key string) {
	if s.client != nil {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			logger.Warn(ctx, "redis delete failed", "key", key, "error", err)
		}
	}
	s.local.delete(key)
}

// Stats 返回条目数与当前后端
func (s *Store) Stats(ctx context.Context) Stats {
	if s.client != nil {
		if n, err := s.client.DBSize(ctx).Result(); err == nil {
			return Stats{Count: int(n), Backend: "redis"}
		}
	}
	return Stats{Count: s.local.count(), Backend: "memory"}
}

// Close 关闭 Redis 连接
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) getBytes(ctx context.Context, key string) ([]byte, bool) {
	if s.client != nil {
		data, err := s.client.Get(ctx, key).Bytes()
		if err == nil {
			return data, true
		}
		if err == redis.Nil {
			return nil, false
		}
		logger.Warn(ctx, "redis get failed, falling back to memory", "key", key, "error", err)
	}
	return s.local.get(key)
}
