package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"whisperflow/backend/internal/domain"
)

// Cache Redis 缓存实现
//
// 缓存的是令牌到信箱的解析结果。令牌查询发生在每次投递和每次
// 收件箱刷新，是整个系统最热的读路径。
type Cache struct {
	client *redis.Client
	ctx    context.Context
}

// NewCache 创建 Redis 缓存实例
func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	ctx := context.Background()

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{
		client: client,
		ctx:    ctx,
	}, nil
}

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = fmt.Errorf("cache miss")

// ========== 信箱缓存 ==========

// 令牌解析缓存按令牌种类分 key 空间，避免两种令牌互相污染

// CacheLinkByPublicID 按公开令牌缓存信箱
func (c *Cache) CacheLinkByPublicID(link *domain.Link, ttl time.Duration) error {
	return c.cacheLink(fmt.Sprintf("link:public:%s", link.PublicID), link, ttl)
}

// CacheLinkByInboxID 按收件令牌缓存信箱
func (c *Cache) CacheLinkByInboxID(link *domain.Link, ttl time.Duration) error {
	return c.cacheLink(fmt.Sprintf("link:inbox:%s", link.InboxID), link, ttl)
}

// GetCachedLinkByPublicID 按公开令牌读取缓存的信箱
func (c *Cache) GetCachedLinkByPublicID(publicID string) (*domain.Link, error) {
	return c.getCachedLink(fmt.Sprintf("link:public:%s", publicID))
}

// GetCachedLinkByInboxID 按收件令牌读取缓存的信箱
func (c *Cache) GetCachedLinkByInboxID(inboxID string) (*domain.Link, error) {
	return c.getCachedLink(fmt.Sprintf("link:inbox:%s", inboxID))
}

// InvalidateLink 失效信箱的两个令牌缓存
//
// 启停切换后必须立即调用，否则公开路径会继续放行已封禁的信箱。
func (c *Cache) InvalidateLink(link *domain.Link) error {
	return c.client.Del(c.ctx,
		fmt.Sprintf("link:public:%s", link.PublicID),
		fmt.Sprintf("link:inbox:%s", link.InboxID),
	).Err()
}

func (c *Cache) cacheLink(key string, link *domain.Link, ttl time.Duration) error {
	data, err := json.Marshal(link)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

func (c *Cache) getCachedLink(key string) (*domain.Link, error) {
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var link domain.Link
	if err := json.Unmarshal([]byte(data), &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// ========== 统计缓存 ==========

// CacheStatistics 缓存系统统计数据
func (c *Cache) CacheStatistics(stats *domain.SystemStatistics, ttl time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, "statistics:system", data, ttl).Err()
}

// GetCachedStatistics 获取缓存的系统统计数据
func (c *Cache) GetCachedStatistics() (*domain.SystemStatistics, error) {
	data, err := c.client.Get(c.ctx, "statistics:system").Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var stats domain.SystemStatistics
	if err := json.Unmarshal([]byte(data), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ========== JWT 黑名单 ==========

// AddToBlacklist 将JWT ID加入黑名单（登出后使令牌失效）
func (c *Cache) AddToBlacklist(jti string, ttl time.Duration) error {
	key := fmt.Sprintf("blacklist:%s", jti)
	return c.client.Set(c.ctx, key, "1", ttl).Err()
}

// IsBlacklisted 检查JWT ID是否在黑名单中
func (c *Cache) IsBlacklisted(jti string) (bool, error) {
	key := fmt.Sprintf("blacklist:%s", jti)
	n, err := c.client.Exists(c.ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ========== 发布/订阅 ==========

// PublishNewMessage 发布新留言通知（跨实例的实时推送）
func (c *Cache) PublishNewMessage(linkID string, message *domain.Message) error {
	channel := fmt.Sprintf("newmessage:%s", linkID)
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return c.client.Publish(c.ctx, channel, data).Err()
}

// SubscribeNewMessage 订阅指定信箱的新留言通知
func (c *Cache) SubscribeNewMessage(linkID string) *redis.PubSub {
	channel := fmt.Sprintf("newmessage:%s", linkID)
	return c.client.Subscribe(c.ctx, channel)
}

// ========== 工具方法 ==========

// Health 检查 Redis 连接状态
func (c *Cache) Health() error {
	return c.client.Ping(c.ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Cache) Close() error {
	return c.client.Close()
}
