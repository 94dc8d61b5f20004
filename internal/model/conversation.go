package model

type MessageSource string

const (
	MessageSourceSystem    = MessageSource("system")
	MessageSourceUser      = MessageSource("user")
	MessageSourceAssistant = MessageSource("assistant")
)

type Message struct {
	Source MessageSource
	Body   string
}

// NewConversation builds the two-turn context sent to the completion provider.
func NewConversation(systemPrompt, userText string) []Message {
	return []Message{
		{Source: MessageSourceSystem, Body: systemPrompt},
		{Source: MessageSourceUser, Body: userText},
	}
}
