package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// 不存在的记录也缓存（空值），TTL 取正常值的 1/10
var nullValue = []byte("null")

type Cache struct {
	RDB    *redis.Client
	Prefix string
	group  singleflight.Group
}

func New(addr, pass string, db int) *Cache {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}))
}

func NewWithClient(rdb *redis.Client) *Cache { return &Cache{RDB: rdb} }

// GetOrLoad 读 Redis，未命中时同 key 只回源一次；Redis 故障时直接回源
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	full := c.Prefix + key
	b, err := c.RDB.Get(ctx, full).Bytes()
	switch {
	case err == nil:
		return b, nil
	case !errors.Is(err, redis.Nil) && ctx.Err() != nil:
		return nil, ctx.Err()
	}

	v, err, _ := c.group.Do(full, func() (any, error) {
		// 回源不跟随首个调用方取消
		lctx := context.WithoutCancel(ctx)
		b, err := load(lctx)
		if err != nil {
			return nil, err
		}
		exp := ttl
		if bytes.Equal(b, nullValue) {
			exp = max(ttl/10, time.Second)
		}
		_ = c.RDB.Set(lctx, full, b, exp).Err()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// GetOrLoadJSON load 返回 (nil, nil) 表示记录不存在
func GetOrLoadJSON[T any](c *Cache, ctx context.Context, key string, ttl time.Duration, load func(context.Context) (*T, error)) (*T, error) {
	b, err := c.GetOrLoad(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil || v == nil {
			return nullValue, err
		}
		return json.Marshal(v)
	})
	if err != nil || bytes.Equal(b, nullValue) {
		return nil, err
	}
	out := new(T)
	if err := json.Unmarshal(b, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, c.Prefix+k)
	}
	return c.RDB.Del(ctx, full...).Err()
}

func (c *Cache) Ping(ctx context.Context) error { return c.RDB.Ping(ctx).Err() }

func (c *Cache) Close() error { return c.RDB.Close() }
