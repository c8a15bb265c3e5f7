// Package telegram adapts the Telegram Bot API to the message pipeline:
// it receives updates, routes commands, and chunks long replies.
package telegram

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/telence/telence-go/internal/agent"
	"github.com/telence/telence-go/internal/logger"
)

// maxMessageLength is Telegram's practical per-message text budget; longer
// replies are split into ordered parts.
const maxMessageLength = 4000

const greeting = "Hello! I'm your AI bot. Ask me anything!"

var log = logger.With("telegram")

// Bot runs the update loop. Each inbound message is handled in its own
// goroutine; chats are independent pipelines.
type Bot struct {
	api   *tgbotapi.BotAPI
	agent *agent.Agent
	wg    sync.WaitGroup
}

func New(token string, a *agent.Agent) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Info("telegram bot authorized", "username", api.Self.UserName)
	return &Bot{api: api, agent: a}, nil
}

// Run long-polls for updates until ctx is canceled, then stops accepting new
// work and waits for in-flight handlers to finish (best effort).
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			return
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return
			}
			msg := update.Message
			if msg == nil || msg.Text == "" {
				continue
			}
			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handle(ctx, msg)
			}(msg)
		}
	}
}

func (b *Bot) handle(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.send(chatID, greeting)
		case "reset":
			b.send(chatID, b.agent.Reset(ctx, chatID))
		case "summary":
			b.sendLong(chatID, b.agent.Summarize(ctx, chatID, strings.TrimSpace(msg.CommandArguments())))
		}
		return
	}

	var userID int64
	var username string
	if msg.From != nil {
		userID = msg.From.ID
		username = msg.From.UserName
	}
	b.agent.Record(ctx, chatID, userID, username, msg.Text)

	// In group chats the bot answers only when mentioned; the message is
	// still recorded above so it stays part of the context.
	if (msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()) &&
		!strings.Contains(msg.Text, "@"+b.api.Self.UserName) {
		return
	}

	b.sendLong(chatID, b.agent.Respond(ctx, chatID))
}

// sendLong delivers text as ordered parts, each suffixed "[i/total]" when
// more than one part is needed.
func (b *Bot) sendLong(chatID int64, text string) {
	if strings.TrimSpace(text) == "" {
		log.Warn("dropping empty reply", "chat_id", chatID)
		return
	}
	for _, part := range splitMessage(text, maxMessageLength) {
		b.send(chatID, part)
	}
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}
