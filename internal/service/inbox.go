package service

import (
	"errors"
	"time"

	"unkahi/backend/internal/domain"
	"unkahi/backend/internal/storage"
)

var (
	// ErrAccessDenied 统一表示凭证不存在或已过期，调用方无从区分两者。
	ErrAccessDenied = errors.New("access denied")
	// ErrNotMessageOwner 凭证有效但消息属于别的 handle。
	ErrNotMessageOwner = errors.New("not message owner")
	// ErrMessageNotFound 消息不存在。
	ErrMessageNotFound = errors.New("message not found")
)

// InboxService 封装收件箱访问逻辑，所有操作都由访问凭证把门。
type InboxService struct {
	identities storage.IdentityRepository
	codes      storage.AccessCodeRepository
	messages   storage.MessageRepository
}

// NewInboxService 创建收件箱业务服务。
func NewInboxService(identities storage.IdentityRepository, codes storage.AccessCodeRepository, messages storage.MessageRepository) *InboxService {
	return &InboxService{
		identities: identities,
		codes:      codes,
		messages:   messages,
	}
}

// Inbox 打开收件箱的结果。
type Inbox struct {
	Identity *domain.Identity `json:"identity"`
	Messages []domain.Message `json:"messages"`
}

// Resolve 校验访问凭证并返回其指向的 handle。
// 凭证不存在和凭证过期一律返回 ErrAccessDenied。
func (s *InboxService) Resolve(code string) (string, error) {
	if code == "" {
		return "", ErrAccessDenied
	}

	accessCode, err := s.codes.GetAccessCode(code)
	if errors.Is(err, storage.ErrAccessCodeNotFound) {
		return "", ErrAccessDenied
	}
	if err != nil {
		return "", err
	}
	if !accessCode.Valid(time.Now().UTC()) {
		return "", ErrAccessDenied
	}
	return accessCode.Handle, nil
}

// Open 用访问凭证打开收件箱，消息按创建时间倒序。
func (s *InboxService) Open(code string) (*Inbox, error) {
	handle, err := s.Resolve(code)
	if err != nil {
		return nil, err
	}

	identity, err := s.identities.GetIdentityByHandle(handle)
	if err != nil {
		if errors.Is(err, storage.ErrIdentityNotFound) {
			// 凭证指向的身份已被删除，等同于无权访问
			return nil, ErrAccessDenied
		}
		return nil, err
	}

	messages, err := s.messages.ListMessagesByHandle(handle)
	if err != nil {
		return nil, err
	}

	return &Inbox{
		Identity: identity,
		Messages: messages,
	}, nil
}

// MarkRead 标记一条消息为已读，重复标记视为成功。
func (s *InboxService) MarkRead(code, messageID string) error {
	message, err := s.authorizeMessage(code, messageID)
	if err != nil {
		return err
	}
	if message.IsRead {
		return nil
	}
	return s.translateMessageErr(s.messages.MarkMessageRead(messageID))
}

// Delete 永久删除一条消息。身份的消息计数保留累计值，不做递减。
func (s *InboxService) Delete(code, messageID string) error {
	if _, err := s.authorizeMessage(code, messageID); err != nil {
		return err
	}
	return s.translateMessageErr(s.messages.DeleteMessage(messageID))
}

// authorizeMessage 校验凭证并验证消息归属。
func (s *InboxService) authorizeMessage(code, messageID string) (*domain.Message, error) {
	handle, err := s.Resolve(code)
	if err != nil {
		return nil, err
	}

	message, err := s.messages.GetMessage(messageID)
	if errors.Is(err, storage.ErrMessageNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	if message.RecipientHandle != handle {
		return nil, ErrNotMessageOwner
	}
	return message, nil
}

func (s *InboxService) translateMessageErr(err error) error {
	if errors.Is(err, storage.ErrMessageNotFound) {
		return ErrMessageNotFound
	}
	return err
}
