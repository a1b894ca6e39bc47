package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"varg.is/gatewall/internal/config"
)

// telegramAPIBase is a variable so tests can point it at a local server.
var telegramAPIBase = "https://api.telegram.org"

func (d *Dispatcher) sendTelegram(ch config.NotificationChannel, n Notification) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, ch.BotToken)

	payload := map[string]any{
		"chat_id": ch.ChatID,
		"text":    fmt.Sprintf("%s\n%s", n.Title, n.Message),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp, err := d.client.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) sendWebhook(ch config.NotificationChannel, n Notification) error {
	payload := map[string]any{
		"text": fmt.Sprintf("*%s*\n%s\n_Level: %s_", n.Title, n.Message, n.Level),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, ch.WebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ch.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook failed with status: %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) sendNtfy(ch config.NotificationChannel, n Notification) error {
	url := ch.Server
	if url == "" {
		url = "https://ntfy.sh"
	}
	if !strings.HasSuffix(url, "/") {
		url += "/"
	}
	url += ch.Topic

	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(n.Message))
	if err != nil {
		return err
	}

	req.Header.Set("Title", n.Title)

	switch n.Level {
	case LevelCritical:
		req.Header.Set("Priority", "high")
		req.Header.Set("Tags", "rotating_light")
	case LevelWarning:
		req.Header.Set("Priority", "default")
		req.Header.Set("Tags", "warning")
	case LevelInfo:
		req.Header.Set("Priority", "low")
		req.Header.Set("Tags", "information_source")
	}

	for k, v := range ch.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("ntfy failed with status: %d", resp.StatusCode)
	}
	return nil
}
