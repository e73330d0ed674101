package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/google/uuid"

	"unkahi/backend/internal/domain"
)

func newIdentity(handle string) *domain.Identity {
	return &domain.Identity{
		ID:         uuid.NewString(),
		Handle:     handle,
		ProfileURL: domain.ProfileURL(handle),
		CreatedAt:  time.Now().UTC(),
	}
}

func newMessage(handle, body string) *domain.Message {
	return &domain.Message{
		ID:              uuid.NewString(),
		RecipientHandle: handle,
		Body:            body,
		CreatedAt:       time.Now().UTC(),
	}
}

func TestIdentityLifecycle(t *testing.T) {
	store := NewStore()

	identity := newIdentity("sam")
	require.NoError(t, store.CreateIdentity(identity))

	// 重复创建同一 handle 必须冲突
	assert.ErrorIs(t, store.CreateIdentity(newIdentity("sam")), ErrHandleTaken)

	got, err := store.GetIdentityByHandle("sam")
	require.NoError(t, err)
	assert.Equal(t, identity.ID, got.ID)
	assert.Equal(t, 0, got.MessageCount)

	_, err = store.GetIdentityByHandle("nobody")
	assert.ErrorIs(t, err, ErrIdentityNotFound)

	require.NoError(t, store.DeleteIdentity("sam"))
	_, err = store.GetIdentityByHandle("sam")
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}

func TestBumpMessageCount(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.CreateIdentity(newIdentity("sam")))

	at := time.Now().UTC()
	require.NoError(t, store.BumpMessageCount("sam", at))
	require.NoError(t, store.BumpMessageCount("sam", at.Add(time.Minute)))

	got, err := store.GetIdentityByHandle("sam")
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)
	require.NotNil(t, got.LastMessageAt)
	assert.Equal(t, at.Add(time.Minute), *got.LastMessageAt)

	assert.ErrorIs(t, store.BumpMessageCount("nobody", at), ErrIdentityNotFound)
}

func TestAccessCodeExpiry(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	live := &domain.AccessCode{
		ID: uuid.NewString(), Code: "livecode12345678", Handle: "sam",
		ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	}
	dead := &domain.AccessCode{
		ID: uuid.NewString(), Code: "deadcode12345678", Handle: "sam",
		ExpiresAt: now.Add(-time.Hour), CreatedAt: now.Add(-2 * time.Hour),
	}
	require.NoError(t, store.CreateAccessCode(live))
	require.NoError(t, store.CreateAccessCode(dead))

	count, err := store.CountActiveAccessCodes(now)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	removed, err := store.DeleteExpiredAccessCodes(now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.GetAccessCode("deadcode12345678")
	assert.ErrorIs(t, err, ErrAccessCodeNotFound)

	got, err := store.GetAccessCode("livecode12345678")
	require.NoError(t, err)
	assert.Equal(t, "sam", got.Handle)
}

func TestMessagesNewestFirst(t *testing.T) {
	store := NewStore()
	base := time.Now().UTC()

	for i := 0; i < 3; i++ {
		msg := newMessage("sam", "hello")
		msg.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveMessage(msg))
	}
	require.NoError(t, store.SaveMessage(newMessage("other", "hi")))

	messages, err := store.ListMessagesByHandle("sam")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.True(t, messages[0].CreatedAt.After(messages[1].CreatedAt))
	assert.True(t, messages[1].CreatedAt.After(messages[2].CreatedAt))
}

func TestMarkReadIdempotent(t *testing.T) {
	store := NewStore()
	msg := newMessage("sam", "hello")
	require.NoError(t, store.SaveMessage(msg))

	require.NoError(t, store.MarkMessageRead(msg.ID))
	require.NoError(t, store.MarkMessageRead(msg.ID))

	got, err := store.GetMessage(msg.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)

	assert.ErrorIs(t, store.MarkMessageRead("missing"), ErrMessageNotFound)
}

func TestDeleteMessage(t *testing.T) {
	store := NewStore()
	msg := newMessage("sam", "hello")
	require.NoError(t, store.SaveMessage(msg))

	require.NoError(t, store.DeleteMessage(msg.ID))
	_, err := store.GetMessage(msg.ID)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	messages, err := store.ListMessagesByHandle("sam")
	require.NoError(t, err)
	assert.Empty(t, messages)

	assert.ErrorIs(t, store.DeleteMessage(msg.ID), ErrMessageNotFound)
}

func TestRememberedCode(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.RememberCode("client-1", "somecode", time.Hour))

	code, err := store.RecallCode("client-1")
	require.NoError(t, err)
	assert.Equal(t, "somecode", code)

	_, err = store.RecallCode("client-2")
	assert.ErrorIs(t, err, ErrRememberedCodeNotFound)

	require.NoError(t, store.ForgetCode("client-1"))
	_, err = store.RecallCode("client-1")
	assert.ErrorIs(t, err, ErrRememberedCodeNotFound)

	// 过期条目取回时被清理
	require.NoError(t, store.RememberCode("client-3", "expired", -time.Second))
	_, err = store.RecallCode("client-3")
	assert.ErrorIs(t, err, ErrRememberedCodeNotFound)
}

func TestStatisticsCounts(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.CreateIdentity(newIdentity("sam")))
	require.NoError(t, store.CreateIdentity(newIdentity("kim")))

	read := newMessage("sam", "read me")
	require.NoError(t, store.SaveMessage(read))
	require.NoError(t, store.SaveMessage(newMessage("sam", "unread")))
	require.NoError(t, store.MarkMessageRead(read.ID))

	identities, err := store.CountIdentities()
	require.NoError(t, err)
	assert.Equal(t, 2, identities)

	total, err := store.CountMessages()
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	unread, err := store.CountUnreadMessages()
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}
