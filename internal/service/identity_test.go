package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unkahi/backend/internal/config"
	"unkahi/backend/internal/domain"
	"unkahi/backend/internal/storage/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		Share: config.ShareConfig{
			BaseURL: "https://unkahi.app",
			CodeTTL: 365 * 24 * time.Hour,
		},
	}
}

func TestIdentityClaim(t *testing.T) {
	store := memory.NewStore()
	svc := NewIdentityService(store, store, testConfig())

	t.Run("首次认领创建身份并签发凭证", func(t *testing.T) {
		result, err := svc.Claim("@Sam")
		require.NoError(t, err)

		assert.Equal(t, "Sam", result.Identity.Handle)
		assert.Equal(t, "https://instagram.com/Sam", result.Identity.ProfileURL)
		assert.Equal(t, 0, result.Identity.MessageCount)
		assert.Equal(t, "https://unkahi.app/Sam", result.ShareURL)

		assert.Len(t, result.AccessCode.Code, 16)
		assert.Equal(t, "Sam", result.AccessCode.Handle)
		assert.True(t, result.AccessCode.Valid(time.Now().UTC()))
	})

	t.Run("重复认领返回同一身份但签发新凭证", func(t *testing.T) {
		first, err := svc.Claim("sam")
		require.NoError(t, err)
		second, err := svc.Claim("https://instagram.com/sam")
		require.NoError(t, err)

		assert.Equal(t, first.Identity.ID, second.Identity.ID)
		assert.NotEqual(t, first.AccessCode.Code, second.AccessCode.Code)

		// 两个凭证都可用
		_, err = store.GetAccessCode(first.AccessCode.Code)
		assert.NoError(t, err)
		_, err = store.GetAccessCode(second.AccessCode.Code)
		assert.NoError(t, err)
	})

	t.Run("非法输入被拒绝", func(t *testing.T) {
		_, err := svc.Claim("not a handle!!")
		assert.ErrorIs(t, err, domain.ErrInvalidHandle)
	})
}

func TestIdentityLookup(t *testing.T) {
	store := memory.NewStore()
	svc := NewIdentityService(store, store, testConfig())

	_, err := svc.Claim("sam")
	require.NoError(t, err)

	t.Run("不同写法命中同一身份", func(t *testing.T) {
		forms := []string{"sam", "@sam", "https://instagram.com/sam", "instagram.com/sam/"}
		for _, form := range forms {
			identity, err := svc.Lookup(form)
			require.NoError(t, err)
			assert.Equal(t, "sam", identity.Handle)
		}
	})

	t.Run("大小写不同视为不同身份", func(t *testing.T) {
		_, err := svc.Lookup("Sam")
		assert.ErrorIs(t, err, ErrIdentityNotFound)
	})

	t.Run("未认领的 handle 返回未找到", func(t *testing.T) {
		_, err := svc.Lookup("nobody")
		assert.ErrorIs(t, err, ErrIdentityNotFound)
	})
}

func TestIssueAccessCode(t *testing.T) {
	store := memory.NewStore()
	svc := NewIdentityService(store, store, testConfig())

	t.Run("未认领的 handle 不能签发", func(t *testing.T) {
		_, err := svc.IssueAccessCode("sam")
		assert.ErrorIs(t, err, ErrIdentityNotFound)
	})

	t.Run("已认领的 handle 随时可补发凭证", func(t *testing.T) {
		_, err := svc.Claim("sam")
		require.NoError(t, err)

		code, err := svc.IssueAccessCode("sam")
		require.NoError(t, err)
		assert.Equal(t, "sam", code.Handle)
		assert.Len(t, code.Code, 16)
	})
}

func TestGenerateCodeUniqueness(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		code, err := generateCode(codeLength)
		require.NoError(t, err)
		require.Len(t, code, codeLength)
		_, dup := seen[code]
		require.False(t, dup, "generated duplicate code %q", code)
		seen[code] = struct{}{}
	}
}
