// Package messenger is the bot's view of the chat transport: the capability interface the
// dispatcher, indexer and retention scheduler depend on, and its Telegram Bot API
// implementation.
package messenger

import (
	"context"
	"time"
)

// Post is an inbound or historical chat message reduced to what the bot uses.
// Text carries the message text, or the caption for media posts.
type Post struct {
	ChatID    int64
	MessageID int
	FromID    int64
	Text      string
	IsCommand bool
	Date      time.Time
}

// Callback is an inline-button press.
type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

// Button is one inline keyboard button carrying an opaque payload.
type Button struct {
	Label string
	Data  string
}

// Keyboard is a grid of inline buttons, row by row.
type Keyboard [][]Button

// Outgoing is a message the bot sends.
type Outgoing struct {
	Text     string
	ReplyTo  int
	Keyboard Keyboard
}

// Transport is the set of chat operations the bot needs.
type Transport interface {
	Send(ctx context.Context, chatID int64, msg Outgoing) (messageID int, err error)
	Forward(ctx context.Context, destChatID, srcChatID int64, messageID int) (forwardedID int, err error)
	Edit(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	History(ctx context.Context, chatID int64, limit int) ([]Post, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Handler receives routed updates.
type Handler interface {
	HandleText(ctx context.Context, p Post)
	HandleCallback(ctx context.Context, cb Callback)
	HandleSourcePost(ctx context.Context, p Post)
}
