package redis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unkahi/backend/internal/domain"
)

// 收件箱缓存的序列化必须保留 domain.Message 对 API 隐藏的字段，
// 否则混合存储的缓存命中会返回残缺的消息。
func TestCachedMessageRoundTrip(t *testing.T) {
	messages := []domain.Message{{
		ID:                "m1",
		RecipientHandle:   "sam",
		Body:              "hello",
		SenderIP:          "203.0.113.7",
		SenderBrowser:     "Chrome",
		SenderDevice:      "Desktop",
		SenderFingerprint: "TW96aWxsYS81LjAg",
		SenderCountry:     "IN",
		IsRead:            true,
		CreatedAt:         time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}}

	data, err := json.Marshal(toCachedMessages(messages))
	require.NoError(t, err)

	var cached []cachedMessage
	require.NoError(t, json.Unmarshal(data, &cached))
	assert.Equal(t, messages, toDomainMessages(cached))
}

func TestHandleFromChannel(t *testing.T) {
	assert.Equal(t, "sam", HandleFromChannel("newmessage:sam"))
}
