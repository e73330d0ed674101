package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unkahi/backend/internal/domain"
	"unkahi/backend/internal/storage/memory"
)

func TestMessageSend(t *testing.T) {
	store := memory.NewStore()
	identities := NewIdentityService(store, store, testConfig())
	messages := NewMessageService(store, store, store, nil)

	_, err := identities.Claim("sam")
	require.NoError(t, err)

	t.Run("投递成功并记录发送者指纹", func(t *testing.T) {
		message, err := messages.Send(SendInput{
			RecipientHandle: "sam",
			Body:            "  你在哪条街住来着？  ",
			Signature: domain.SenderSignature{
				IP:          "203.0.113.7",
				Browser:     "Chrome",
				Device:      "Mobile",
				Fingerprint: "TW96aWxsYS81LjAg",
				Country:     "IN",
			},
		})
		require.NoError(t, err)

		assert.Equal(t, "sam", message.RecipientHandle)
		assert.Equal(t, "你在哪条街住来着？", message.Body) // 首尾空白被裁剪
		assert.Equal(t, "Chrome", message.SenderBrowser)
		assert.Equal(t, "IN", message.SenderCountry)
		assert.False(t, message.IsRead)

		stored, err := store.GetMessage(message.ID)
		require.NoError(t, err)
		assert.Equal(t, message.Body, stored.Body)
	})

	t.Run("投递后计数与最后活跃时间更新", func(t *testing.T) {
		before, err := identities.Lookup("sam")
		require.NoError(t, err)

		_, err = messages.Send(SendInput{RecipientHandle: "sam", Body: "hello"})
		require.NoError(t, err)

		after, err := identities.Lookup("sam")
		require.NoError(t, err)
		assert.Equal(t, before.MessageCount+1, after.MessageCount)
		require.NotNil(t, after.LastMessageAt)
	})

	t.Run("收件人可用链接形式指定", func(t *testing.T) {
		_, err := messages.Send(SendInput{RecipientHandle: "https://instagram.com/sam", Body: "via url"})
		assert.NoError(t, err)
	})

	t.Run("收件人大小写不折叠", func(t *testing.T) {
		_, err := messages.Send(SendInput{RecipientHandle: "Sam", Body: "wrong case"})
		assert.ErrorIs(t, err, ErrIdentityNotFound)
	})

	t.Run("未认领的 handle 不可投递", func(t *testing.T) {
		_, err := messages.Send(SendInput{RecipientHandle: "nobody", Body: "hello"})
		assert.ErrorIs(t, err, ErrIdentityNotFound)
	})

	t.Run("空消息被拒绝", func(t *testing.T) {
		_, err := messages.Send(SendInput{RecipientHandle: "sam", Body: ""})
		assert.ErrorIs(t, err, ErrEmptyMessage)

		_, err = messages.Send(SendInput{RecipientHandle: "sam", Body: "   \n\t  "})
		assert.ErrorIs(t, err, ErrEmptyMessage)
	})

	t.Run("长度边界", func(t *testing.T) {
		_, err := messages.Send(SendInput{
			RecipientHandle: "sam",
			Body:            strings.Repeat("a", domain.MaxMessageLength),
		})
		assert.NoError(t, err)

		_, err = messages.Send(SendInput{
			RecipientHandle: "sam",
			Body:            strings.Repeat("a", domain.MaxMessageLength+1),
		})
		assert.ErrorIs(t, err, ErrMessageTooLong)
	})

	t.Run("长度按字符而非字节计算", func(t *testing.T) {
		_, err := messages.Send(SendInput{
			RecipientHandle: "sam",
			Body:            strings.Repeat("哈", domain.MaxMessageLength),
		})
		assert.NoError(t, err)
	})
}

type recordingNotifier struct {
	handles []string
}

func (n *recordingNotifier) NotifyNewMessage(handle string, message *domain.Message) {
	n.handles = append(n.handles, handle)
}

func TestMessageSendNotifies(t *testing.T) {
	store := memory.NewStore()
	identities := NewIdentityService(store, store, testConfig())
	messages := NewMessageService(store, store, store, nil)

	notifier := &recordingNotifier{}
	messages.SetNotifier(notifier)

	_, err := identities.Claim("sam")
	require.NoError(t, err)

	_, err = messages.Send(SendInput{RecipientHandle: "sam", Body: "ping"})
	require.NoError(t, err)

	assert.Equal(t, []string{"sam"}, notifier.handles)
}
