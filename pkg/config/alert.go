package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// loadFromEnv reads TELEGRAM_BOT_TOKEN and ALERT_CHAT_ID. Alerts stay
// log-only unless both are present.
func (a *AlertSettings) loadFromEnv() error {
	if token := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")); token != "" {
		a.Token = token
	}
	raw := strings.TrimSpace(os.Getenv("ALERT_CHAT_ID"))
	if raw == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed == 0 {
		return fmt.Errorf("invalid ALERT_CHAT_ID: %q", raw)
	}
	a.ChatID = parsed
	return nil
}

// TelegramEnabled reports whether backlog alerts can be sent to Telegram.
func (a AlertSettings) TelegramEnabled() bool {
	return a.Token != "" && a.ChatID != 0
}
