package model

import "time"

const (
	ChannelWhatsAppCloud = "whatsapp_cloud"

	// TimestampLayout has a fixed width so ts strings sort in time order.
	TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"
)

// ChatEvent is one line of the chat log. BotText is stored untruncated.
type ChatEvent struct {
	Timestamp string `json:"ts"`
	UserID    string `json:"user_id"`
	Channel   string `json:"channel"`
	UserText  string `json:"user_text"`
	BotText   string `json:"bot_text"`
}

func NewChatEvent(at time.Time, userID, channel, userText, botText string) ChatEvent {
	return ChatEvent{
		Timestamp: at.UTC().Format(TimestampLayout),
		UserID:    userID,
		Channel:   channel,
		UserText:  userText,
		BotText:   botText,
	}
}
