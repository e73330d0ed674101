package service

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"unkahi/backend/internal/domain"
	"unkahi/backend/internal/storage"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message too long")
)

// MessageNotifier 把新消息推送给在线的收件人。
type MessageNotifier interface {
	NotifyNewMessage(handle string, message *domain.Message)
}

// MessageService 封装匿名消息投递逻辑。
type MessageService struct {
	identities storage.IdentityRepository
	messages   storage.MessageRepository
	pubsub     storage.PubSubRepository
	notifier   MessageNotifier
	log        *zap.Logger
}

// NewMessageService 创建消息业务服务。
func NewMessageService(identities storage.IdentityRepository, messages storage.MessageRepository, pubsub storage.PubSubRepository, log *zap.Logger) *MessageService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageService{
		identities: identities,
		messages:   messages,
		pubsub:     pubsub,
		log:        log,
	}
}

// SetNotifier 设置在线推送器（避免循环依赖）
func (s *MessageService) SetNotifier(notifier MessageNotifier) {
	s.notifier = notifier
}

// SendInput 定义投递匿名消息的输入。
type SendInput struct {
	RecipientHandle string
	Body            string
	Signature       domain.SenderSignature
}

// Send 向某个已认领的 handle 投递一条匿名消息。
// 消息落库后才更新收件人的计数，计数失败只记日志不回滚，
// 允许 MessageCount 与实际消息数出现轻微漂移。
func (s *MessageService) Send(input SendInput) (*domain.Message, error) {
	handle, err := domain.NormalizeHandle(input.RecipientHandle)
	if err != nil {
		return nil, err
	}

	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	if len([]rune(body)) > domain.MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	if _, err := s.identities.GetIdentityByHandle(handle); err != nil {
		if errors.Is(err, storage.ErrIdentityNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	message := &domain.Message{
		ID:                uuid.NewString(),
		RecipientHandle:   handle,
		Body:              body,
		SenderIP:          input.Signature.IP,
		SenderBrowser:     input.Signature.Browser,
		SenderDevice:      input.Signature.Device,
		SenderFingerprint: input.Signature.Fingerprint,
		SenderCountry:     input.Signature.Country,
		CreatedAt:         now,
	}

	if err := s.messages.SaveMessage(message); err != nil {
		return nil, err
	}

	// 计数更新尽力而为，消息已经落库
	if err := s.identities.BumpMessageCount(handle, now); err != nil {
		s.log.Warn("failed to bump message count",
			zap.String("handle", handle),
			zap.Error(err),
		)
	}

	if s.pubsub != nil {
		if err := s.pubsub.PublishNewMessage(handle, message); err != nil {
			s.log.Warn("failed to publish new message event",
				zap.String("handle", handle),
				zap.Error(err),
			)
		}
	}
	if s.notifier != nil {
		s.notifier.NotifyNewMessage(handle, message)
	}

	return message, nil
}
