package service

import (
	"errors"
	"time"

	"unkahi/backend/internal/storage"
)

// ErrNoRememberedCode 客户端没有记住的凭证。
var ErrNoRememberedCode = errors.New("no remembered code")

// rememberedTTL 记住的凭证保留时长，与凭证本身的最长有效期对齐。
const rememberedTTL = 365 * 24 * time.Hour

// RememberedCodeService 维护客户端"记住我的收件箱"状态。
// 客户端用一个自生成的不透明 ID 存取最近一次使用的访问凭证。
type RememberedCodeService struct {
	repo  storage.RememberedCodeRepository
	inbox *InboxService
}

// NewRememberedCodeService 创建记住凭证业务服务。
func NewRememberedCodeService(repo storage.RememberedCodeRepository, inbox *InboxService) *RememberedCodeService {
	return &RememberedCodeService{
		repo:  repo,
		inbox: inbox,
	}
}

// Remember 记录客户端最近一次使用的访问凭证。
// 凭证必须当前有效，防止把死凭证存给客户端。
func (s *RememberedCodeService) Remember(clientID, code string) error {
	if _, err := s.inbox.Resolve(code); err != nil {
		return err
	}
	return s.repo.RememberCode(clientID, code, rememberedTTL)
}

// Recall 取回客户端记住的访问凭证。
// 凭证已经失效时顺手清掉记录，避免客户端反复撞上死凭证。
func (s *RememberedCodeService) Recall(clientID string) (string, error) {
	code, err := s.repo.RecallCode(clientID)
	if errors.Is(err, storage.ErrRememberedCodeNotFound) {
		return "", ErrNoRememberedCode
	}
	if err != nil {
		return "", err
	}

	if _, err := s.inbox.Resolve(code); err != nil {
		if errors.Is(err, ErrAccessDenied) {
			s.repo.ForgetCode(clientID)
			return "", ErrNoRememberedCode
		}
		return "", err
	}
	return code, nil
}

// Forget 清除客户端记住的访问凭证。
func (s *RememberedCodeService) Forget(clientID string) error {
	return s.repo.ForgetCode(clientID)
}
