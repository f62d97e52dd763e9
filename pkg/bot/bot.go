package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dkalashnik/kiosk-survey/pkg/log"
)

// Client is a thin Telegram Bot API client used for operator alerts.
type Client struct {
	api  *tgbotapi.BotAPI
	Self *tgbotapi.User
}

func NewClient(token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token cannot be empty")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api instance: %w", err)
	}

	api.Debug = false

	log.Printf("Verifying API token...")
	me, err := api.GetMe()
	if err != nil {
		return nil, fmt.Errorf("failed to verify bot token with GetMe(): %w", err)
	}
	log.Printf("Token verified successfully for @%s.", me.UserName)

	return &Client{
		api:  api,
		Self: &me,
	}, nil
}

// SendMessage sends plain text to chatID.
func (c *Client) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = ""
	msg.DisableWebPagePreview = true

	sentMsg, err := c.api.Send(msg)
	if err != nil {
		return tgbotapi.Message{}, fmt.Errorf("failed to send message: %w", err)
	}
	return sentMsg, nil
}
