package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"varg.is/gatewall/internal/config"
)

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, IsPlaceholder(""))
	assert.True(t, IsPlaceholder("  "))
	assert.True(t, IsPlaceholder("<bot-token>"))
	assert.True(t, IsPlaceholder("<chat-id>"))
	assert.True(t, IsPlaceholder("CHANGEME"))
	assert.True(t, IsPlaceholder("change_me_please"))

	assert.False(t, IsPlaceholder("123456:AAHk-real-token"))
	assert.False(t, IsPlaceholder("987654321"))
}

func TestChannelConfigured(t *testing.T) {
	assert.False(t, ChannelConfigured(config.NotificationChannel{
		Type: "telegram", BotToken: "<bot-token>", ChatID: "123",
	}))
	assert.False(t, ChannelConfigured(config.NotificationChannel{
		Type: "telegram", BotToken: "123:abc", ChatID: "",
	}))
	assert.True(t, ChannelConfigured(config.NotificationChannel{
		Type: "telegram", BotToken: "123:abc", ChatID: "456",
	}))
	assert.True(t, ChannelConfigured(config.NotificationChannel{
		Type: "webhook", WebhookURL: "https://hooks.example.org/x",
	}))
	assert.False(t, ChannelConfigured(config.NotificationChannel{Type: "carrier-pigeon"}))
}

func TestShouldSend(t *testing.T) {
	assert.True(t, shouldSend(LevelCritical, ""))
	assert.True(t, shouldSend(LevelCritical, LevelWarning))
	assert.True(t, shouldSend(LevelWarning, LevelWarning))
	assert.False(t, shouldSend(LevelInfo, LevelCritical))
}

func TestSend_Telegram(t *testing.T) {
	var calls int32
	var gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	old := telegramAPIBase
	telegramAPIBase = srv.URL
	defer func() { telegramAPIBase = old }()

	d := NewDispatcher(&config.NotificationsConfig{
		Enabled: true,
		Channels: []config.NotificationChannel{{
			Name:     "tg",
			Type:     "telegram",
			Enabled:  true,
			BotToken: "123:abc",
			ChatID:   "9876",
		}},
	}, nil)

	d.SendSimple("Gatewall watchdog", "connectivity lost, shutting down", LevelCritical)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, "9876", gotBody["chat_id"])
	assert.Contains(t, gotBody["text"], "connectivity lost")
}

func TestSend_SkipsPlaceholderChannel(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	old := telegramAPIBase
	telegramAPIBase = srv.URL
	defer func() { telegramAPIBase = old }()

	d := NewDispatcher(&config.NotificationsConfig{
		Enabled: true,
		Channels: []config.NotificationChannel{{
			Name:     "tg",
			Type:     "telegram",
			Enabled:  true,
			BotToken: "<bot-token>",
			ChatID:   "<chat-id>",
		}},
	}, nil)

	d.SendSimple("title", "msg", LevelCritical)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "placeholder channel must not be called")
}

func TestSend_LevelFiltering(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	d := NewDispatcher(&config.NotificationsConfig{
		Enabled: true,
		Channels: []config.NotificationChannel{{
			Name:       "hook",
			Type:       "webhook",
			Level:      LevelCritical,
			Enabled:    true,
			WebhookURL: srv.URL,
		}},
	}, nil)

	d.SendSimple("info", "should be filtered", LevelInfo)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	d.SendSimple("crit", "should go through", LevelCritical)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSend_DisabledConfig(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	d := NewDispatcher(&config.NotificationsConfig{
		Enabled: false,
		Channels: []config.NotificationChannel{{
			Name: "hook", Type: "webhook", Enabled: true, WebhookURL: srv.URL,
		}},
	}, nil)

	d.SendSimple("x", "y", LevelCritical)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	d.Send(Notification{})
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestConfiguredChannels(t *testing.T) {
	d := NewDispatcher(&config.NotificationsConfig{
		Enabled: true,
		Channels: []config.NotificationChannel{
			{Name: "tg", Type: "telegram", Enabled: true, BotToken: "1:a", ChatID: "2"},
			{Name: "tg2", Type: "telegram", Enabled: true, BotToken: "<bot-token>", ChatID: "<chat-id>"},
			{Name: "hook", Type: "webhook", Enabled: false, WebhookURL: "https://x"},
			{Name: "info-only", Type: "ntfy", Enabled: true, Topic: "t", Level: LevelCritical},
		},
	}, nil)

	assert.Equal(t, 2, d.ConfiguredChannels(LevelCritical))
	assert.Equal(t, 1, d.ConfiguredChannels(LevelInfo))

	none := NewDispatcher(nil, nil)
	assert.Equal(t, 0, none.ConfiguredChannels(LevelCritical))
}

func TestSend_DeliveryFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDispatcher(&config.NotificationsConfig{
		Enabled: true,
		Channels: []config.NotificationChannel{{
			Name: "hook", Type: "webhook", Enabled: true, WebhookURL: srv.URL,
		}},
	}, nil)

	// Must not panic or propagate the error.
	d.SendSimple("x", "y", LevelCritical)
}
