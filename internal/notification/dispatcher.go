// Package notification delivers best-effort alerts. Delivery failures
// are logged and swallowed; nothing in the caller's control flow may
// depend on a notification going out.
package notification

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"varg.is/gatewall/internal/config"
	"varg.is/gatewall/internal/logging"
)

// Level constants
const (
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// Notification represents a notification event.
type Notification struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// Dispatcher manages notification channels and dispatching.
type Dispatcher struct {
	config *config.NotificationsConfig
	logger *logging.Logger
	client *http.Client
	mu     sync.RWMutex
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(cfg *config.NotificationsConfig, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default().WithComponent("notification")
	}
	return &Dispatcher{
		config: cfg,
		logger: logger,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// UpdateConfig updates the dispatcher configuration.
func (d *Dispatcher) UpdateConfig(cfg *config.NotificationsConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config = cfg
}

// ConfiguredChannels returns how many enabled channels with real (non
// placeholder) credentials would accept a message of the given level.
func (d *Dispatcher) ConfiguredChannels(level string) int {
	d.mu.RLock()
	cfg := d.config
	d.mu.RUnlock()

	if cfg == nil || !cfg.Enabled {
		return 0
	}

	n := 0
	for _, ch := range cfg.Channels {
		if ch.Enabled && shouldSend(level, ch.Level) && ChannelConfigured(ch) {
			n++
		}
	}
	return n
}

// Send dispatches a notification to all enabled and relevant channels.
// It blocks until every attempt finished; each channel gets exactly one
// try, no retries.
func (d *Dispatcher) Send(n Notification) {
	d.mu.RLock()
	cfg := d.config
	d.mu.RUnlock()

	if cfg == nil || !cfg.Enabled {
		return
	}

	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	var wg sync.WaitGroup

	for _, ch := range cfg.Channels {
		if !ch.Enabled {
			continue
		}
		if !shouldSend(n.Level, ch.Level) {
			continue
		}
		if !ChannelConfigured(ch) {
			d.logger.Info("channel not configured, skipping",
				"channel", ch.Name,
				"type", ch.Type)
			continue
		}

		wg.Add(1)
		go func(channel config.NotificationChannel) {
			defer wg.Done()
			if err := d.sendToChannel(channel, n); err != nil {
				d.logger.Info("failed to send notification",
					"channel", channel.Name,
					"type", channel.Type,
					"error", err)
				return
			}
			d.logger.Info("notification sent",
				"channel", channel.Name,
				"type", channel.Type)
		}(ch)
	}

	wg.Wait()
}

// SendSimple is a helper for simple messages.
func (d *Dispatcher) SendSimple(title, message, level string) {
	d.Send(Notification{
		Title:   title,
		Message: message,
		Level:   level,
	})
}

// ChannelConfigured reports whether a channel's required credentials are
// set to real values rather than left at install-time placeholders.
func ChannelConfigured(ch config.NotificationChannel) bool {
	switch strings.ToLower(ch.Type) {
	case "telegram":
		return !IsPlaceholder(ch.BotToken) && !IsPlaceholder(ch.ChatID)
	case "webhook":
		return !IsPlaceholder(ch.WebhookURL)
	case "ntfy":
		return !IsPlaceholder(ch.Topic)
	default:
		return false
	}
}

// IsPlaceholder reports whether a credential value looks unset: empty,
// an angle-bracket template like "<bot-token>", or a CHANGEME marker.
func IsPlaceholder(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		return true
	}
	upper := strings.ToUpper(s)
	return strings.Contains(upper, "CHANGEME") || strings.Contains(upper, "CHANGE_ME")
}

// shouldSend checks if a message level meets the channel's minimum level.
func shouldSend(msgLevel, chanLevel string) bool {
	if chanLevel == "" {
		return true
	}

	levels := map[string]int{
		LevelInfo:     1,
		LevelWarning:  2,
		LevelCritical: 3,
	}

	m := levels[strings.ToLower(msgLevel)]
	c := levels[strings.ToLower(chanLevel)]

	return m >= c
}

func (d *Dispatcher) sendToChannel(ch config.NotificationChannel, n Notification) error {
	switch strings.ToLower(ch.Type) {
	case "telegram":
		return d.sendTelegram(ch, n)
	case "webhook":
		return d.sendWebhook(ch, n)
	case "ntfy":
		return d.sendNtfy(ch, n)
	default:
		return fmt.Errorf("unknown channel type: %s", ch.Type)
	}
}
