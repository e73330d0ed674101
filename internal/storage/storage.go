package storage

import (
	"errors"
	"time"

	"unkahi/backend/internal/domain"
)

var (
	// ErrIdentityNotFound 身份未找到错误
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrHandleTaken handle 已被占用错误
	ErrHandleTaken = errors.New("handle already taken")
	// ErrAccessCodeNotFound 访问凭证未找到错误
	ErrAccessCodeNotFound = errors.New("access code not found")
	// ErrMessageNotFound 消息未找到错误
	ErrMessageNotFound = errors.New("message not found")
	// ErrRememberedCodeNotFound 记住的凭证未找到错误
	ErrRememberedCodeNotFound = errors.New("remembered code not found")
)

// IdentityRepository 定义身份数据存取操作。
type IdentityRepository interface {
	CreateIdentity(identity *domain.Identity) error
	GetIdentityByHandle(handle string) (*domain.Identity, error)
	BumpMessageCount(handle string, at time.Time) error // 收到消息后累加计数并刷新最后活跃时间
	DeleteIdentity(handle string) error
	CountIdentities() (int, error)
}

// AccessCodeRepository 定义访问凭证数据存取操作。
type AccessCodeRepository interface {
	CreateAccessCode(code *domain.AccessCode) error
	GetAccessCode(code string) (*domain.AccessCode, error)
	DeleteExpiredAccessCodes(before time.Time) (int, error) // 删除已过期凭证，返回删除数量
	CountActiveAccessCodes(now time.Time) (int, error)
}

// MessageRepository 定义消息数据存取操作。
type MessageRepository interface {
	SaveMessage(message *domain.Message) error
	GetMessage(messageID string) (*domain.Message, error)
	ListMessagesByHandle(handle string) ([]domain.Message, error) // 按创建时间倒序
	MarkMessageRead(messageID string) error
	DeleteMessage(messageID string) error
	CountMessages() (int, error)
	CountUnreadMessages() (int, error)
}

// RememberedCodeRepository 定义"记住的凭证"键值存取操作。
// 对应客户端本地缓存的服务端版本，按客户端 ID 存取最近一次使用的访问凭证。
type RememberedCodeRepository interface {
	RememberCode(clientID, code string, ttl time.Duration) error
	RecallCode(clientID string) (string, error)
	ForgetCode(clientID string) error
}

// PubSubRepository 定义发布订阅操作。
type PubSubRepository interface {
	PublishNewMessage(handle string, message *domain.Message) error
}

// Store 定义完整的存储接口。
type Store interface {
	IdentityRepository
	AccessCodeRepository
	MessageRepository
	RememberedCodeRepository
	PubSubRepository

	// 工具方法
	Close() error
	Health() error
}
