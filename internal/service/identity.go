package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"unkahi/backend/internal/config"
	"unkahi/backend/internal/domain"
	"unkahi/backend/internal/storage"
)

var (
	ErrIdentityNotFound = errors.New("identity not found")
)

// 访问凭证字符表，生成 16 位不可猜测的凭证。
const codeAlphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// codeLength 访问凭证长度
const codeLength = 16

// IdentityService 封装身份认领与凭证签发逻辑。
type IdentityService struct {
	identities storage.IdentityRepository
	codes      storage.AccessCodeRepository
	cfg        *config.Config
}

// NewIdentityService 创建身份业务服务。
func NewIdentityService(identities storage.IdentityRepository, codes storage.AccessCodeRepository, cfg *config.Config) *IdentityService {
	return &IdentityService{
		identities: identities,
		codes:      codes,
		cfg:        cfg,
	}
}

// ClaimResult 认领结果：身份、访问凭证与分享链接。
type ClaimResult struct {
	Identity   *domain.Identity
	AccessCode *domain.AccessCode
	ShareURL   string
}

// Claim 认领一个 Instagram handle。
// 认领是幂等的：handle 已被认领时返回既有身份，但每次都签发一个新凭证。
// 旧凭证在各自过期前始终有效。
func (s *IdentityService) Claim(rawHandle string) (*ClaimResult, error) {
	handle, err := domain.NormalizeHandle(rawHandle)
	if err != nil {
		return nil, err
	}

	identity, err := s.identities.GetIdentityByHandle(handle)
	if errors.Is(err, storage.ErrIdentityNotFound) {
		identity = &domain.Identity{
			ID:         uuid.NewString(),
			Handle:     handle,
			ProfileURL: domain.ProfileURL(handle),
			CreatedAt:  time.Now().UTC(),
		}
		err = s.identities.CreateIdentity(identity)
		if errors.Is(err, storage.ErrHandleTaken) {
			// 并发认领输掉了唯一索引竞争，改用先到者的记录
			identity, err = s.identities.GetIdentityByHandle(handle)
		}
	}
	if err != nil {
		return nil, err
	}

	accessCode, err := s.mintAccessCode(handle)
	if err != nil {
		return nil, err
	}

	return &ClaimResult{
		Identity:   identity,
		AccessCode: accessCode,
		ShareURL:   domain.ShareURL(s.cfg.Share.BaseURL, handle),
	}, nil
}

// Lookup 查询某个 handle 是否已被认领。
func (s *IdentityService) Lookup(rawHandle string) (*domain.Identity, error) {
	handle, err := domain.NormalizeHandle(rawHandle)
	if err != nil {
		return nil, err
	}

	identity, err := s.identities.GetIdentityByHandle(handle)
	if errors.Is(err, storage.ErrIdentityNotFound) {
		return nil, ErrIdentityNotFound
	}
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// IssueAccessCode 为已认领的 handle 签发一个新的访问凭证。
func (s *IdentityService) IssueAccessCode(rawHandle string) (*domain.AccessCode, error) {
	handle, err := domain.NormalizeHandle(rawHandle)
	if err != nil {
		return nil, err
	}

	if _, err := s.identities.GetIdentityByHandle(handle); err != nil {
		if errors.Is(err, storage.ErrIdentityNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	return s.mintAccessCode(handle)
}

// ShareURLFor 返回某个 handle 的分享链接。
func (s *IdentityService) ShareURLFor(handle string) string {
	return domain.ShareURL(s.cfg.Share.BaseURL, handle)
}

func (s *IdentityService) mintAccessCode(handle string) (*domain.AccessCode, error) {
	code, err := generateCode(codeLength)
	if err != nil {
		return nil, fmt.Errorf("generate access code: %w", err)
	}

	now := time.Now().UTC()
	accessCode := &domain.AccessCode{
		ID:        uuid.NewString(),
		Code:      code,
		Handle:    handle,
		ExpiresAt: now.Add(s.cfg.Share.CodeTTL),
		CreatedAt: now,
	}
	if err := s.codes.CreateAccessCode(accessCode); err != nil {
		return nil, err
	}
	return accessCode, nil
}

// generateCode 用密码学随机源生成凭证。
func generateCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}
