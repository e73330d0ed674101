package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"unkahi/backend/internal/domain"
	"unkahi/backend/internal/storage"
)

// Store PostgreSQL 存储实现
type Store struct {
	db *gorm.DB
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn))
}

// NewMySQLStore 创建 MySQL 存储实例
func NewMySQLStore(dsn string) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(dsn))
}

// NewStoreWithDialector 使用指定的GORM dialector创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector) (*Store, error) {
	// 配置 GORM
	config := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent), // 静默模式
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	// 连接数据库
	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	store := &Store{db: db}

	// 自动迁移数据库表
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移数据库表结构
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.Identity{},
		&domain.AccessCode{},
		&domain.Message{},
	)
}

// ========== Identity Repository ==========

// CreateIdentity 创建身份记录，handle 冲突时返回 ErrHandleTaken
func (s *Store) CreateIdentity(identity *domain.Identity) error {
	err := s.db.Create(identity).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrHandleTaken
	}
	return err
}

// GetIdentityByHandle 根据 handle 获取身份
func (s *Store) GetIdentityByHandle(handle string) (*domain.Identity, error) {
	var identity domain.Identity
	err := s.db.Where("handle = ?", handle).First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrIdentityNotFound
		}
		return nil, err
	}
	return &identity, nil
}

// BumpMessageCount 累加消息计数并刷新最后活跃时间
func (s *Store) BumpMessageCount(handle string, at time.Time) error {
	result := s.db.Model(&domain.Identity{}).
		Where("handle = ?", handle).
		Updates(map[string]interface{}{
			"message_count":   gorm.Expr("message_count + 1"),
			"last_message_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrIdentityNotFound
	}
	return nil
}

// DeleteIdentity 删除身份及其全部消息
func (s *Store) DeleteIdentity(handle string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("handle = ?", handle).Delete(&domain.Identity{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrIdentityNotFound
		}
		return tx.Where("recipient_handle = ?", handle).Delete(&domain.Message{}).Error
	})
}

// CountIdentities 返回身份总数
func (s *Store) CountIdentities() (int, error) {
	var count int64
	err := s.db.Model(&domain.Identity{}).Count(&count).Error
	return int(count), err
}

// ========== AccessCode Repository ==========

// CreateAccessCode 保存访问凭证
func (s *Store) CreateAccessCode(code *domain.AccessCode) error {
	return s.db.Create(code).Error
}

// GetAccessCode 根据凭证值获取访问凭证
func (s *Store) GetAccessCode(code string) (*domain.AccessCode, error) {
	var accessCode domain.AccessCode
	err := s.db.Where("code = ?", code).First(&accessCode).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAccessCodeNotFound
		}
		return nil, err
	}
	return &accessCode, nil
}

// DeleteExpiredAccessCodes 删除已过期凭证，返回删除数量
func (s *Store) DeleteExpiredAccessCodes(before time.Time) (int, error) {
	result := s.db.Where("expires_at <= ?", before).Delete(&domain.AccessCode{})
	return int(result.RowsAffected), result.Error
}

// CountActiveAccessCodes 返回尚未过期的凭证数量
func (s *Store) CountActiveAccessCodes(now time.Time) (int, error) {
	var count int64
	err := s.db.Model(&domain.AccessCode{}).Where("expires_at > ?", now).Count(&count).Error
	return int(count), err
}

// ========== Message Repository ==========

// SaveMessage 保存消息
func (s *Store) SaveMessage(message *domain.Message) error {
	return s.db.Save(message).Error
}

// GetMessage 根据 ID 获取消息
func (s *Store) GetMessage(messageID string) (*domain.Message, error) {
	var message domain.Message
	err := s.db.Where("id = ?", messageID).First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}

// ListMessagesByHandle 返回某个 handle 的全部消息，按创建时间倒序
func (s *Store) ListMessagesByHandle(handle string) ([]domain.Message, error) {
	var messages []domain.Message
	err := s.db.Where("recipient_handle = ?", handle).
		Order("created_at DESC").
		Find(&messages).Error
	return messages, err
}

// MarkMessageRead 标记消息为已读，重复标记视为成功
func (s *Store) MarkMessageRead(messageID string) error {
	result := s.db.Model(&domain.Message{}).
		Where("id = ?", messageID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// 零更新可能是重复标记，需要和消息不存在区分开
		var count int64
		if err := s.db.Model(&domain.Message{}).Where("id = ?", messageID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return storage.ErrMessageNotFound
		}
	}
	return nil
}

// DeleteMessage 删除消息
func (s *Store) DeleteMessage(messageID string) error {
	result := s.db.Where("id = ?", messageID).Delete(&domain.Message{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrMessageNotFound
	}
	return nil
}

// CountMessages 返回消息总数
func (s *Store) CountMessages() (int, error) {
	var count int64
	err := s.db.Model(&domain.Message{}).Count(&count).Error
	return int(count), err
}

// CountUnreadMessages 返回未读消息总数
func (s *Store) CountUnreadMessages() (int, error) {
	var count int64
	err := s.db.Model(&domain.Message{}).Where("is_read = ?", false).Count(&count).Error
	return int(count), err
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库健康状态
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
