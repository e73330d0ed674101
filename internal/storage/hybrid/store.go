package hybrid

import (
	"fmt"
	"time"

	"unkahi/backend/internal/domain"
	"unkahi/backend/internal/storage/postgres"
	"unkahi/backend/internal/storage/redis"
)

// 缓存过期时间
const (
	identityCacheTTL = 24 * time.Hour
	codeCacheTTL     = time.Hour
	inboxCacheTTL    = 5 * time.Minute
)

// Store 混合存储实现，数据库为准，Redis 作读穿透缓存。
// 缓存层的失败一律静默吞掉，不影响主路径。
type Store struct {
	db    *postgres.Store
	cache *redis.Cache
}

// NewStore 创建混合存储实例 (PostgreSQL)
func NewStore(postgresDSN, redisAddr, redisPassword string, redisDB int) (*Store, error) {
	return NewStoreWithType("postgres", postgresDSN, redisAddr, redisPassword, redisDB)
}

// NewStoreWithType 创建混合存储实例（指定数据库类型）
func NewStoreWithType(dbType, dsn, redisAddr, redisPassword string, redisDB int) (*Store, error) {
	var dbStore *postgres.Store
	var err error

	// 根据数据库类型创建存储
	switch dbType {
	case "mysql":
		dbStore, err = postgres.NewMySQLStore(dsn)
	case "postgres", "postgresql":
		dbStore, err = postgres.NewStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s (supported: mysql, postgres)", dbType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// 初始化 Redis
	cache, err := redis.NewCache(redisAddr, redisPassword, redisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	return &Store{db: dbStore, cache: cache}, nil
}

// Cache 返回底层的 Redis 缓存，供跨实例消息订阅使用
func (s *Store) Cache() *redis.Cache {
	return s.cache
}

// ========== Identity Repository ==========

// CreateIdentity 创建身份记录
func (s *Store) CreateIdentity(identity *domain.Identity) error {
	if err := s.db.CreateIdentity(identity); err != nil {
		return err
	}
	s.cache.CacheIdentity(identity, identityCacheTTL)
	return nil
}

// GetIdentityByHandle 根据 handle 获取身份
func (s *Store) GetIdentityByHandle(handle string) (*domain.Identity, error) {
	// 先尝试从 Redis 获取
	if identity, err := s.cache.GetCachedIdentity(handle); err == nil {
		return identity, nil
	}

	identity, err := s.db.GetIdentityByHandle(handle)
	if err != nil {
		return nil, err
	}

	s.cache.CacheIdentity(identity, identityCacheTTL)
	return identity, nil
}

// BumpMessageCount 累加消息计数并刷新最后活跃时间
func (s *Store) BumpMessageCount(handle string, at time.Time) error {
	if err := s.db.BumpMessageCount(handle, at); err != nil {
		return err
	}
	// 计数变了，缓存的身份快照作废
	s.cache.DeleteCachedIdentity(handle)
	return nil
}

// DeleteIdentity 删除身份及其全部消息
func (s *Store) DeleteIdentity(handle string) error {
	if err := s.db.DeleteIdentity(handle); err != nil {
		return err
	}
	s.cache.DeleteCachedIdentity(handle)
	s.cache.DeleteCachedMessageList(handle)
	return nil
}

// CountIdentities 返回身份总数
func (s *Store) CountIdentities() (int, error) {
	return s.db.CountIdentities()
}

// ========== AccessCode Repository ==========

// CreateAccessCode 保存访问凭证
func (s *Store) CreateAccessCode(code *domain.AccessCode) error {
	if err := s.db.CreateAccessCode(code); err != nil {
		return err
	}
	s.cache.CacheAccessCode(code, codeCacheTTL)
	return nil
}

// GetAccessCode 根据凭证值获取访问凭证
func (s *Store) GetAccessCode(code string) (*domain.AccessCode, error) {
	if cached, err := s.cache.GetCachedAccessCode(code); err == nil {
		return cached, nil
	}

	accessCode, err := s.db.GetAccessCode(code)
	if err != nil {
		return nil, err
	}

	s.cache.CacheAccessCode(accessCode, codeCacheTTL)
	return accessCode, nil
}

// DeleteExpiredAccessCodes 删除已过期凭证，返回删除数量
func (s *Store) DeleteExpiredAccessCodes(before time.Time) (int, error) {
	// 缓存条目 TTL 较短，等待自然过期即可
	return s.db.DeleteExpiredAccessCodes(before)
}

// CountActiveAccessCodes 返回尚未过期的凭证数量
func (s *Store) CountActiveAccessCodes(now time.Time) (int, error) {
	return s.db.CountActiveAccessCodes(now)
}

// ========== Message Repository ==========

// SaveMessage 保存消息
func (s *Store) SaveMessage(message *domain.Message) error {
	if err := s.db.SaveMessage(message); err != nil {
		return err
	}
	s.cache.DeleteCachedMessageList(message.RecipientHandle)
	return nil
}

// GetMessage 根据 ID 获取消息
func (s *Store) GetMessage(messageID string) (*domain.Message, error) {
	return s.db.GetMessage(messageID)
}

// ListMessagesByHandle 返回某个 handle 的全部消息，按创建时间倒序
func (s *Store) ListMessagesByHandle(handle string) ([]domain.Message, error) {
	if messages, err := s.cache.GetCachedMessageList(handle); err == nil {
		return messages, nil
	}

	messages, err := s.db.ListMessagesByHandle(handle)
	if err != nil {
		return nil, err
	}

	s.cache.CacheMessageList(handle, messages, inboxCacheTTL)
	return messages, nil
}

// MarkMessageRead 标记消息为已读
func (s *Store) MarkMessageRead(messageID string) error {
	message, err := s.db.GetMessage(messageID)
	if err != nil {
		return err
	}
	if err := s.db.MarkMessageRead(messageID); err != nil {
		return err
	}
	s.cache.DeleteCachedMessageList(message.RecipientHandle)
	return nil
}

// DeleteMessage 删除消息
func (s *Store) DeleteMessage(messageID string) error {
	message, err := s.db.GetMessage(messageID)
	if err != nil {
		return err
	}
	if err := s.db.DeleteMessage(messageID); err != nil {
		return err
	}
	s.cache.DeleteCachedMessageList(message.RecipientHandle)
	return nil
}

// CountMessages 返回消息总数
func (s *Store) CountMessages() (int, error) {
	return s.db.CountMessages()
}

// CountUnreadMessages 返回未读消息总数
func (s *Store) CountUnreadMessages() (int, error) {
	return s.db.CountUnreadMessages()
}

// ========== RememberedCode Repository ==========

// RememberCode 记录客户端最近一次使用的访问凭证
func (s *Store) RememberCode(clientID, code string, ttl time.Duration) error {
	return s.cache.RememberCode(clientID, code, ttl)
}

// RecallCode 取回客户端记住的访问凭证
func (s *Store) RecallCode(clientID string) (string, error) {
	return s.cache.RecallCode(clientID)
}

// ForgetCode 清除客户端记住的访问凭证
func (s *Store) ForgetCode(clientID string) error {
	return s.cache.ForgetCode(clientID)
}

// ========== PubSub Repository ==========

// PublishNewMessage 向订阅者广播新消息事件
func (s *Store) PublishNewMessage(handle string, message *domain.Message) error {
	return s.cache.PublishNewMessage(handle, message)
}

// Close 关闭存储
func (s *Store) Close() error {
	if err := s.cache.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

// Health 检查存储健康状态
func (s *Store) Health() error {
	if err := s.db.Health(); err != nil {
		return err
	}
	return s.cache.Health()
}
