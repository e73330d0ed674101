package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"unkahi/backend/internal/config"
	"unkahi/backend/internal/domain"
	"unkahi/backend/internal/storage"
)

// 缓存键前缀
const (
	keyIdentity   = "identity:"    // identity:<handle>
	keyAccessCode = "accesscode:"  // accesscode:<code>
	keyInbox      = "inbox:"       // inbox:<handle> 消息列表
	keyRemembered = "remembered:"  // remembered:<clientID> 记住的凭证
	channelNewMsg = "newmessage:"  // newmessage:<handle> 新消息通知频道
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// Cache 基于 Redis 的缓存层
type Cache struct {
	rdb *goredis.Client
	ctx context.Context
}

// NewCache 创建 Redis 缓存实例
func NewCache(addr, password string, db int) (*Cache, error) {
	client, err := NewClient(&config.RedisConfig{
		Address:  addr,
		Password: password,
		DB:       db,
	}, nil)
	if err != nil {
		return nil, err
	}

	return &Cache{rdb: client.Client(), ctx: context.Background()}, nil
}

// ========== Identity 缓存 ==========

// CacheIdentity 缓存身份信息
func (c *Cache) CacheIdentity(identity *domain.Identity, ttl time.Duration) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	return c.rdb.Set(c.ctx, keyIdentity+identity.Handle, data, ttl).Err()
}

// GetCachedIdentity 获取缓存的身份信息
func (c *Cache) GetCachedIdentity(handle string) (*domain.Identity, error) {
	data, err := c.rdb.Get(c.ctx, keyIdentity+handle).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	var identity domain.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// DeleteCachedIdentity 删除缓存的身份信息
func (c *Cache) DeleteCachedIdentity(handle string) error {
	return c.rdb.Del(c.ctx, keyIdentity+handle).Err()
}

// ========== AccessCode 缓存 ==========

// CacheAccessCode 缓存访问凭证
func (c *Cache) CacheAccessCode(code *domain.AccessCode, ttl time.Duration) error {
	data, err := json.Marshal(code)
	if err != nil {
		return err
	}
	return c.rdb.Set(c.ctx, keyAccessCode+code.Code, data, ttl).Err()
}

// GetCachedAccessCode 获取缓存的访问凭证
func (c *Cache) GetCachedAccessCode(code string) (*domain.AccessCode, error) {
	data, err := c.rdb.Get(c.ctx, keyAccessCode+code).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	var accessCode domain.AccessCode
	if err := json.Unmarshal(data, &accessCode); err != nil {
		return nil, err
	}
	return &accessCode, nil
}

// DeleteCachedAccessCode 删除缓存的访问凭证
func (c *Cache) DeleteCachedAccessCode(code string) error {
	return c.rdb.Del(c.ctx, keyAccessCode+code).Err()
}

// ========== 收件箱消息列表缓存 ==========

// cachedMessage 是消息在缓存里的序列化形态。
// domain.Message 对外隐藏 SenderIP（json:"-"），缓存回源必须保留全部
// 持久化字段，所以这里单独映射。
type cachedMessage struct {
	ID                string    `json:"id"`
	RecipientHandle   string    `json:"recipientHandle"`
	Body              string    `json:"body"`
	SenderIP          string    `json:"senderIp"`
	SenderBrowser     string    `json:"senderBrowser"`
	SenderDevice      string    `json:"senderDevice"`
	SenderFingerprint string    `json:"senderFingerprint"`
	SenderCountry     string    `json:"senderCountry"`
	IsRead            bool      `json:"isRead"`
	CreatedAt         time.Time `json:"createdAt"`
}

func toCachedMessages(messages []domain.Message) []cachedMessage {
	out := make([]cachedMessage, len(messages))
	for i, m := range messages {
		out[i] = cachedMessage(m)
	}
	return out
}

func toDomainMessages(cached []cachedMessage) []domain.Message {
	out := make([]domain.Message, len(cached))
	for i, m := range cached {
		out[i] = domain.Message(m)
	}
	return out
}

// CacheMessageList 缓存某个 handle 的消息列表
func (c *Cache) CacheMessageList(handle string, messages []domain.Message, ttl time.Duration) error {
	data, err := json.Marshal(toCachedMessages(messages))
	if err != nil {
		return err
	}
	return c.rdb.Set(c.ctx, keyInbox+handle, data, ttl).Err()
}

// GetCachedMessageList 获取缓存的消息列表
func (c *Cache) GetCachedMessageList(handle string) ([]domain.Message, error) {
	data, err := c.rdb.Get(c.ctx, keyInbox+handle).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	var cached []cachedMessage
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return toDomainMessages(cached), nil
}

// DeleteCachedMessageList 删除缓存的消息列表
func (c *Cache) DeleteCachedMessageList(handle string) error {
	return c.rdb.Del(c.ctx, keyInbox+handle).Err()
}

// ========== 记住的凭证 ==========

// RememberCode 记录客户端最近一次使用的访问凭证
func (c *Cache) RememberCode(clientID, code string, ttl time.Duration) error {
	return c.rdb.Set(c.ctx, keyRemembered+clientID, code, ttl).Err()
}

// RecallCode 取回客户端记住的访问凭证
func (c *Cache) RecallCode(clientID string) (string, error) {
	code, err := c.rdb.Get(c.ctx, keyRemembered+clientID).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", storage.ErrRememberedCodeNotFound
		}
		return "", err
	}
	return code, nil
}

// ForgetCode 清除客户端记住的访问凭证
func (c *Cache) ForgetCode(clientID string) error {
	return c.rdb.Del(c.ctx, keyRemembered+clientID).Err()
}

// ========== 发布订阅 ==========

// PublishNewMessage 向订阅者广播新消息事件
func (c *Cache) PublishNewMessage(handle string, message *domain.Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return c.rdb.Publish(c.ctx, channelNewMsg+handle, data).Err()
}

// SubscribeNewMessages 订阅某个 handle 的新消息频道
func (c *Cache) SubscribeNewMessages(handle string) *goredis.PubSub {
	return c.rdb.Subscribe(c.ctx, channelNewMsg+handle)
}

// SubscribeAllNewMessages 按模式订阅所有 handle 的新消息频道。
// 多实例部署时每个实例靠它把别的实例落库的消息推给自己的在线客户端。
func (c *Cache) SubscribeAllNewMessages() *goredis.PubSub {
	return c.rdb.PSubscribe(c.ctx, channelNewMsg+"*")
}

// HandleFromChannel 从频道名还原 handle
func HandleFromChannel(channel string) string {
	return strings.TrimPrefix(channel, channelNewMsg)
}

// Close 关闭 Redis 连接
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Health 检查 Redis 健康状态
func (c *Cache) Health() error {
	return c.rdb.Ping(c.ctx).Err()
}
