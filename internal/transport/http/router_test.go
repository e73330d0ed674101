package httptransport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"unkahi/backend/internal/config"
	"unkahi/backend/internal/service"
	"unkahi/backend/internal/storage/memory"
)

type routerFixture struct {
	router     *gin.Engine
	store      *memory.Store
	identities *service.IdentityService
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Share: config.ShareConfig{
			BaseURL: "https://unkahi.app",
			CodeTTL: 365 * 24 * time.Hour,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
	}

	store := memory.NewStore()
	log := zap.NewNop()
	identities := service.NewIdentityService(store, store, cfg)
	messages := service.NewMessageService(store, store, store, log)
	inbox := service.NewInboxService(store, store, store)
	remembered := service.NewRememberedCodeService(store, inbox)

	router := NewRouter(RouterDependencies{
		Config:            cfg,
		IdentityService:   identities,
		MessageService:    messages,
		InboxService:      inbox,
		RememberedService: remembered,
		StatsService:      service.NewStatsService(store),
		Logger:            log,
	})

	return &routerFixture{router: router, store: store, identities: identities}
}

func (f *routerFixture) postJSON(t *testing.T, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Code int             `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func TestSendMessageClientSignaturePassThrough(t *testing.T) {
	f := newRouterFixture(t)
	_, err := f.identities.Claim("sam")
	require.NoError(t, err)

	// 客户端上报的指纹字段原样入库，不被服务端推导覆盖
	w := f.postJSON(t, "/v1/identities/sam/messages", sendMessageRequest{
		Body:        "hello",
		Browser:     "Firefox",
		Device:      "Tablet",
		Fingerprint: "TW96aWxsYS81LjAg",
	}, map[string]string{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0 Safari/537.36",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp messageResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "Firefox", resp.Sender.Browser)
	assert.Equal(t, "Tablet", resp.Sender.Device)
	assert.Equal(t, "TW96aWxsYS81LjAg", resp.Sender.Fingerprint)

	stored, err := f.store.GetMessage(resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Firefox", stored.SenderBrowser)
	assert.Equal(t, "Tablet", stored.SenderDevice)
	assert.Equal(t, "TW96aWxsYS81LjAg", stored.SenderFingerprint)
}

func TestSendMessageDerivesSignatureWhenAbsent(t *testing.T) {
	f := newRouterFixture(t)
	_, err := f.identities.Claim("sam")
	require.NoError(t, err)

	w := f.postJSON(t, "/v1/identities/sam/messages", sendMessageRequest{
		Body: "hello",
	}, map[string]string{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0 Safari/537.36",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp messageResponse
	decodeData(t, w, &resp)
	assert.Equal(t, "Chrome", resp.Sender.Browser)
	assert.Equal(t, "Desktop", resp.Sender.Device)
	assert.NotEmpty(t, resp.Sender.Fingerprint)
	assert.Equal(t, "unknown", resp.Sender.Country)
}

func TestSendMessageSenderIP(t *testing.T) {
	f := newRouterFixture(t)
	_, err := f.identities.Claim("sam")
	require.NoError(t, err)

	t.Run("取 X-Forwarded-For 第一跳", func(t *testing.T) {
		w := f.postJSON(t, "/v1/identities/sam/messages", sendMessageRequest{Body: "hi"},
			map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp messageResponse
		decodeData(t, w, &resp)
		stored, err := f.store.GetMessage(resp.ID)
		require.NoError(t, err)
		assert.Equal(t, "203.0.113.7", stored.SenderIP)
	})

	t.Run("无代理头时记为 unknown", func(t *testing.T) {
		w := f.postJSON(t, "/v1/identities/sam/messages", sendMessageRequest{Body: "hi"}, nil)
		require.Equal(t, http.StatusCreated, w.Code)

		var resp messageResponse
		decodeData(t, w, &resp)
		stored, err := f.store.GetMessage(resp.ID)
		require.NoError(t, err)
		assert.Equal(t, "unknown", stored.SenderIP)
	})
}
