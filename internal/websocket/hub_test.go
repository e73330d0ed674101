package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(hub *Hub, id, handle string) *Client {
	return &Client{
		ID:      id,
		send:    make(chan []byte, 16),
		hub:     hub,
		handles: make(map[string]bool),
		log:     zap.NewNop(),
		Handle:  handle,
	}
}

func recvMessage(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return &msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestSubscribeOwnHandleOnly(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	client := newTestClient(hub, "c1", "sam")

	t.Run("省略句柄时默认订阅自己的句柄", func(t *testing.T) {
		client.subscribeHandle("")
		msg := recvMessage(t, client)
		assert.Equal(t, MessageTypeSubscribed, msg.Type)
		assert.Equal(t, "sam", msg.Handle)
	})

	t.Run("订阅他人句柄被拒绝", func(t *testing.T) {
		client.subscribeHandle("kim")
		msg := recvMessage(t, client)
		assert.Equal(t, MessageTypeError, msg.Type)

		hub.mu.RLock()
		_, exists := hub.handles["kim"]
		hub.mu.RUnlock()
		assert.False(t, exists)
	})
}

func TestBroadcastToHandle(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	subscriber := newTestClient(hub, "c1", "sam")
	subscriber.subscribeHandle("sam")
	recvMessage(t, subscriber) // 消费订阅确认

	other := newTestClient(hub, "c2", "kim")
	other.subscribeHandle("kim")
	recvMessage(t, other)

	hub.broadcastToHandle("sam", &Message{
		Type:      MessageTypeNewMessage,
		Handle:    "sam",
		Timestamp: time.Now(),
	})

	msg := recvMessage(t, subscriber)
	assert.Equal(t, MessageTypeNewMessage, msg.Type)
	assert.Empty(t, other.send, "订阅其他句柄的客户端不应收到消息")
}

// 广播与订阅变更并发执行时不得触发数据竞争（交由 race 检测器验证）。
func TestBroadcastConcurrentWithSubscription(t *testing.T) {
	hub := NewHub(nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		client := newTestClient(hub, fmt.Sprintf("c%d", i), "sam")
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.subscribeHandle("sam")
				c.unsubscribeHandle("sam")
				// 排空确认消息，避免通道打满
				for len(c.send) > 0 {
					<-c.send
				}
			}
		}(client)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 200; j++ {
			hub.broadcastToHandle("sam", &Message{
				Type:      MessageTypeNewMessage,
				Handle:    "sam",
				Timestamp: time.Now(),
			})
		}
	}()

	wg.Wait()
}
