package memory

import (
	"sort"
	"sync"
	"time"

	"unkahi/backend/internal/domain"
	"unkahi/backend/internal/storage"
)

var (
	ErrIdentityNotFound       = storage.ErrIdentityNotFound
	ErrHandleTaken            = storage.ErrHandleTaken
	ErrAccessCodeNotFound     = storage.ErrAccessCodeNotFound
	ErrMessageNotFound        = storage.ErrMessageNotFound
	ErrRememberedCodeNotFound = storage.ErrRememberedCodeNotFound
)

// Store 使用内存保存身份、凭证与消息数据，主要用于开发验证。
type Store struct {
	mu          sync.RWMutex
	identities  map[string]*domain.Identity   // handle -> identity
	accessCodes map[string]*domain.AccessCode // code -> accessCode
	messages    map[string]*domain.Message    // messageID -> message
	byHandle    map[string][]string           // handle -> messageIDs
	remembered  map[string]*rememberedEntry   // clientID -> entry
}

// rememberedEntry 记住的凭证条目
type rememberedEntry struct {
	Code      string
	ExpiresAt time.Time
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		identities:  make(map[string]*domain.Identity),
		accessCodes: make(map[string]*domain.AccessCode),
		messages:    make(map[string]*domain.Message),
		byHandle:    make(map[string][]string),
		remembered:  make(map[string]*rememberedEntry),
	}
}

// CreateIdentity 创建身份记录，handle 已存在时返回 ErrHandleTaken。
func (s *Store) CreateIdentity(identity *domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[identity.Handle]; ok {
		return ErrHandleTaken
	}
	copied := *identity
	s.identities[identity.Handle] = &copied
	return nil
}

// GetIdentityByHandle 根据 handle 获取身份。
func (s *Store) GetIdentityByHandle(handle string) (*domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[handle]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	copied := *identity
	return &copied, nil
}

// BumpMessageCount 累加消息计数并刷新最后活跃时间。
func (s *Store) BumpMessageCount(handle string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[handle]
	if !ok {
		return ErrIdentityNotFound
	}
	identity.MessageCount++
	identity.LastMessageAt = &at
	return nil
}

// DeleteIdentity 删除身份及其全部消息。
func (s *Store) DeleteIdentity(handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[handle]; !ok {
		return ErrIdentityNotFound
	}
	delete(s.identities, handle)
	for _, id := range s.byHandle[handle] {
		delete(s.messages, id)
	}
	delete(s.byHandle, handle)
	return nil
}

// CountIdentities 返回身份总数。
func (s *Store) CountIdentities() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities), nil
}

// CreateAccessCode 保存访问凭证。
func (s *Store) CreateAccessCode(code *domain.AccessCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *code
	s.accessCodes[code.Code] = &copied
	return nil
}

// GetAccessCode 根据凭证值获取访问凭证。
func (s *Store) GetAccessCode(code string) (*domain.AccessCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accessCode, ok := s.accessCodes[code]
	if !ok {
		return nil, ErrAccessCodeNotFound
	}
	copied := *accessCode
	return &copied, nil
}

// DeleteExpiredAccessCodes 删除已过期凭证，返回删除数量。
func (s *Store) DeleteExpiredAccessCodes(before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for code, accessCode := range s.accessCodes {
		if !accessCode.Valid(before) {
			delete(s.accessCodes, code)
			removed++
		}
	}
	return removed, nil
}

// CountActiveAccessCodes 返回尚未过期的凭证数量。
func (s *Store) CountActiveAccessCodes(now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, accessCode := range s.accessCodes {
		if accessCode.Valid(now) {
			count++
		}
	}
	return count, nil
}

// SaveMessage 保存消息。
func (s *Store) SaveMessage(message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *message
	s.messages[message.ID] = &copied
	s.byHandle[message.RecipientHandle] = append(s.byHandle[message.RecipientHandle], message.ID)
	return nil
}

// GetMessage 根据 ID 获取消息。
func (s *Store) GetMessage(messageID string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	message, ok := s.messages[messageID]
	if !ok {
		return nil, ErrMessageNotFound
	}
	copied := *message
	return &copied, nil
}

// ListMessagesByHandle 返回某个 handle 的全部消息，按创建时间倒序。
func (s *Store) ListMessagesByHandle(handle string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byHandle[handle]
	result := make([]domain.Message, 0, len(ids))
	for _, id := range ids {
		if message, ok := s.messages[id]; ok {
			result = append(result, *message)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// MarkMessageRead 标记消息为已读，重复标记视为成功。
func (s *Store) MarkMessageRead(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	message, ok := s.messages[messageID]
	if !ok {
		return ErrMessageNotFound
	}
	message.IsRead = true
	return nil
}

// DeleteMessage 删除消息。
func (s *Store) DeleteMessage(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	message, ok := s.messages[messageID]
	if !ok {
		return ErrMessageNotFound
	}
	delete(s.messages, messageID)

	ids := s.byHandle[message.RecipientHandle]
	for i, id := range ids {
		if id == messageID {
			s.byHandle[message.RecipientHandle] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// CountMessages 返回消息总数。
func (s *Store) CountMessages() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages), nil
}

// CountUnreadMessages 返回未读消息总数。
func (s *Store) CountUnreadMessages() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, message := range s.messages {
		if !message.IsRead {
			count++
		}
	}
	return count, nil
}

// RememberCode 记录客户端最近一次使用的访问凭证。
func (s *Store) RememberCode(clientID, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remembered[clientID] = &rememberedEntry{
		Code:      code,
		ExpiresAt: time.Now().Add(ttl),
	}
	return nil
}

// RecallCode 取回客户端记住的访问凭证。
func (s *Store) RecallCode(clientID string) (string, error) {
	s.mu.RLock()
	entry, ok := s.remembered[clientID]
	s.mu.RUnlock()
	if !ok {
		return "", ErrRememberedCodeNotFound
	}
	if !time.Now().Before(entry.ExpiresAt) {
		s.mu.Lock()
		delete(s.remembered, clientID)
		s.mu.Unlock()
		return "", ErrRememberedCodeNotFound
	}
	return entry.Code, nil
}

// ForgetCode 清除客户端记住的访问凭证。
func (s *Store) ForgetCode(clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.remembered, clientID)
	return nil
}

// PublishNewMessage 内存存储不做跨进程广播，发布为空操作。
func (s *Store) PublishNewMessage(handle string, message *domain.Message) error {
	return nil
}

// Close 关闭存储。
func (s *Store) Close() error {
	return nil
}

// Health 检查存储健康状态。
func (s *Store) Health() error {
	return nil
}
