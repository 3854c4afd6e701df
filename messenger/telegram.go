package messenger

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/onnwee/reelbot/telemetry"
)

// TelegramConfig configures the Bot API client.
type TelegramConfig struct {
	Token string
	// Endpoint overrides the Bot API URL template (tgbotapi.APIEndpoint), e.g. for a
	// local Bot API server or tests.
	Endpoint string
	// SourceChatID is the private channel whose posts feed the catalog.
	SourceChatID int64
	// HistorySize bounds the remembered posts per chat.
	HistorySize int
	// MaxConcurrent bounds concurrently handled updates (1 = sequential).
	MaxConcurrent int
	// PollTimeout is the long-poll timeout in seconds.
	PollTimeout int
	HTTPClient  *http.Client
}

// Telegram implements Transport over the Telegram Bot API.
type Telegram struct {
	api          *tgbotapi.BotAPI
	sourceChatID int64
	history      *historyRing
	slots        updateSlots
	pollTimeout  int
}

// NewTelegram authenticates against the Bot API (getMe) and returns a ready transport.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 60
	}
	slog.Info("telegram bot authorized", slog.String("username", api.Self.UserName), slog.String("component", "telegram"))
	return &Telegram{
		api:          api,
		sourceChatID: cfg.SourceChatID,
		history:      newHistoryRing(cfg.HistorySize),
		slots:        newUpdateSlots(cfg.MaxConcurrent),
		pollTimeout:  pollTimeout,
	}, nil
}

// Username returns the bot's username.
func (t *Telegram) Username() string { return t.api.Self.UserName }

// Send posts a text message, optionally as a reply and with an inline keyboard.
func (t *Telegram) Send(ctx context.Context, chatID int64, msg Outgoing) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m := tgbotapi.NewMessage(chatID, msg.Text)
	m.ReplyToMessageID = msg.ReplyTo
	if len(msg.Keyboard) > 0 {
		m.ReplyMarkup = toMarkup(msg.Keyboard)
	}
	sent, err := t.api.Send(m)
	if err != nil {
		return 0, fmt.Errorf("send to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

// Forward copies a message from srcChatID into destChatID.
func (t *Telegram) Forward(ctx context.Context, destChatID, srcChatID int64, messageID int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sent, err := t.api.Send(tgbotapi.NewForward(destChatID, srcChatID, messageID))
	if err != nil {
		return 0, fmt.Errorf("forward %d/%d to %d: %w", srcChatID, messageID, destChatID, err)
	}
	return sent.MessageID, nil
}

// Edit replaces the text of a bot message and keeps the given keyboard attached.
func (t *Telegram) Edit(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, toMarkup(kb))
	if _, err := t.api.Request(edit); err != nil {
		return fmt.Errorf("edit %d/%d: %w", chatID, messageID, err)
	}
	return nil
}

// Delete removes a message.
func (t *Telegram) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete %d/%d: %w", chatID, messageID, err)
	}
	return nil
}

// AnswerCallback acknowledges a button press so the client stops its spinner.
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// History returns up to limit of the most recent posts this transport has observed in
// chatID, newest first.
func (t *Telegram) History(ctx context.Context, chatID int64, limit int) ([]Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.history.recent(chatID, limit), nil
}

// Run long-polls updates and routes them to h until ctx is canceled. In-flight handlers
// are awaited before returning.
func (t *Telegram) Run(ctx context.Context, h Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout
	u.AllowedUpdates = []string{"message", "channel_post", "edited_channel_post", "callback_query"}
	updates := t.api.GetUpdatesChan(u)
	defer t.api.StopReceivingUpdates()

	slog.Info("telegram update loop started", slog.Int("max_concurrent", cap(t.slots)), slog.String("component", "telegram"))
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			slog.Info("telegram update loop stopped", slog.String("component", "telegram"))
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if !t.slots.acquire(ctx) {
				return nil
			}
			wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer wg.Done()
				defer t.slots.release()
				t.dispatch(ctx, h, upd)
			}(upd)
		}
	}
}

// dispatch routes one update. Source-channel posts are remembered for History before the
// handler sees them.
func (t *Telegram) dispatch(ctx context.Context, h Handler, upd tgbotapi.Update) {
	ctx = telemetry.WithCorrelation(ctx, uuid.New().String())
	telemetry.TimeFunc(telemetry.UpdateDuration, func() { t.route(ctx, h, upd) })
}

func (t *Telegram) route(ctx context.Context, h Handler, upd tgbotapi.Update) {
	switch {
	case upd.CallbackQuery != nil:
		telemetry.IncUpdate("callback")
		h.HandleCallback(ctx, callbackFromQuery(upd.CallbackQuery))
	case upd.EditedChannelPost != nil && upd.EditedChannelPost.Chat != nil && upd.EditedChannelPost.Chat.ID == t.sourceChatID:
		p := postFromMessage(upd.EditedChannelPost)
		t.history.add(p)
		telemetry.IncUpdate("source_post")
		h.HandleSourcePost(ctx, p)
	default:
		msg := upd.Message
		if msg == nil {
			msg = upd.ChannelPost
		}
		if msg == nil || msg.Chat == nil {
			telemetry.IncUpdate("ignored")
			return
		}
		p := postFromMessage(msg)
		if p.ChatID == t.sourceChatID {
			t.history.add(p)
			telemetry.IncUpdate("source_post")
			h.HandleSourcePost(ctx, p)
			return
		}
		telemetry.IncUpdate("text")
		h.HandleText(ctx, p)
	}
}

func postFromMessage(m *tgbotapi.Message) Post {
	p := Post{
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
		Text:      m.Text,
		IsCommand: m.IsCommand(),
		Date:      m.Time(),
	}
	if p.Text == "" {
		p.Text = m.Caption
	}
	if m.From != nil {
		p.FromID = m.From.ID
	}
	return p
}

func callbackFromQuery(q *tgbotapi.CallbackQuery) Callback {
	cb := Callback{ID: q.ID, Data: q.Data}
	if q.From != nil {
		cb.FromID = q.From.ID
	}
	if q.Message != nil {
		cb.MessageID = q.Message.MessageID
		if q.Message.Chat != nil {
			cb.ChatID = q.Message.Chat.ID
		}
	}
	return cb
}

func toMarkup(kb Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
