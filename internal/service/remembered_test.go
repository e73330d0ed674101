package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unkahi/backend/internal/domain"
	"unkahi/backend/internal/storage/memory"
)

func TestRememberedCode(t *testing.T) {
	store := memory.NewStore()
	identities := NewIdentityService(store, store, testConfig())
	inbox := NewInboxService(store, store, store)
	remembered := NewRememberedCodeService(store, inbox)

	claim, err := identities.Claim("sam")
	require.NoError(t, err)

	t.Run("记住并取回", func(t *testing.T) {
		require.NoError(t, remembered.Remember("client-1", claim.AccessCode.Code))

		code, err := remembered.Recall("client-1")
		require.NoError(t, err)
		assert.Equal(t, claim.AccessCode.Code, code)
	})

	t.Run("无效凭证不可记住", func(t *testing.T) {
		err := remembered.Remember("client-2", "bogus-code-12345")
		assert.ErrorIs(t, err, ErrAccessDenied)

		_, err = remembered.Recall("client-2")
		assert.ErrorIs(t, err, ErrNoRememberedCode)
	})

	t.Run("忘记后取不回", func(t *testing.T) {
		require.NoError(t, remembered.Remember("client-3", claim.AccessCode.Code))
		require.NoError(t, remembered.Forget("client-3"))

		_, err := remembered.Recall("client-3")
		assert.ErrorIs(t, err, ErrNoRememberedCode)
	})

	t.Run("记住的凭证过期后被清理", func(t *testing.T) {
		expired := &domain.AccessCode{
			ID:        uuid.NewString(),
			Code:      "soonexpired12345",
			Handle:    "sam",
			ExpiresAt: time.Now().UTC().Add(50 * time.Millisecond),
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, store.CreateAccessCode(expired))
		require.NoError(t, remembered.Remember("client-4", expired.Code))

		time.Sleep(60 * time.Millisecond)

		_, err := remembered.Recall("client-4")
		assert.ErrorIs(t, err, ErrNoRememberedCode)
	})
}

func TestStatsCollect(t *testing.T) {
	store := memory.NewStore()
	identities := NewIdentityService(store, store, testConfig())
	messages := NewMessageService(store, store, store, nil)
	inbox := NewInboxService(store, store, store)
	stats := NewStatsService(store)

	claim, err := identities.Claim("sam")
	require.NoError(t, err)
	_, err = identities.Claim("kim")
	require.NoError(t, err)

	first, err := messages.Send(SendInput{RecipientHandle: "sam", Body: "one"})
	require.NoError(t, err)
	_, err = messages.Send(SendInput{RecipientHandle: "sam", Body: "two"})
	require.NoError(t, err)
	require.NoError(t, inbox.MarkRead(claim.AccessCode.Code, first.ID))

	got, err := stats.Collect()
	require.NoError(t, err)

	assert.Equal(t, 2, got.TotalIdentities)
	assert.Equal(t, 2, got.TotalMessages)
	assert.Equal(t, 1, got.UnreadMessages)
	assert.Equal(t, 2, got.ActiveAccessCodes)
}
