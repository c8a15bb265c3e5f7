package prompt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/telence/telence-go/internal/history"
	"github.com/telence/telence-go/internal/llm"
)

// Selector validation failures. These are user input errors: the pipeline
// turns them into usage messages, and no storage call is made.
var (
	ErrBadDuration = errors.New("prompt: time period must be a positive number followed by 'h'")
	ErrBadCount    = errors.New("prompt: message count must be a positive number")
)

// Selector bounds a summary window either by message count or by elapsed
// time. Exactly one of the two fields is set.
type Selector struct {
	Count  int
	Period time.Duration
}

// ParseSelector parses a user-supplied summary argument: either a positive
// integer message count or a positive number of hours suffixed with 'h'.
func ParseSelector(arg string) (Selector, error) {
	arg = strings.TrimSpace(arg)
	if strings.HasSuffix(arg, "h") {
		hours, err := strconv.ParseFloat(strings.TrimSuffix(arg, "h"), 64)
		if err != nil || math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
			return Selector{}, ErrBadDuration
		}
		return Selector{Period: time.Duration(hours * float64(time.Hour))}, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return Selector{}, ErrBadCount
	}
	return Selector{Count: n}, nil
}

// HistorySource is the slice of the storage layer the builder consumes.
// Both queries return messages oldest-first and degrade to empty on failure.
type HistorySource interface {
	Recent(ctx context.Context, chatID int64, limit int) []history.Message
	RecentSince(ctx context.Context, chatID int64, since time.Time) []history.Message
}

// Config bounds every window the builder produces.
type Config struct {
	BotName     string
	ContextSize int
	MaxMessages int
	Threshold   time.Duration
}

// Builder assembles context windows. Conversation and summary windows share
// the same machinery and differ only in system content and annotation.
type Builder struct {
	source HistorySource
	cfg    Config
	now    func() time.Time
}

func NewBuilder(source HistorySource, cfg Config) *Builder {
	return &Builder{source: source, cfg: cfg, now: time.Now}
}

// Conversation builds the live-chat window: one persona system turn followed
// by the most recent ContextSize messages, annotated with time markers.
func (b *Builder) Conversation(ctx context.Context, chatID int64) []llm.Turn {
	limit := min(b.cfg.ContextSize, b.cfg.MaxMessages)
	msgs := b.source.Recent(ctx, chatID, limit)
	window := make([]llm.Turn, 0, len(msgs)+1)
	window = append(window, llm.Turn{Role: llm.RoleSystem, Content: b.personaPrompt()})
	return append(window, Annotate(msgs, b.cfg.Threshold)...)
}

// Summary builds the summarization window and reports how many history
// messages it holds. Zero means there is nothing to summarize; the caller
// must not issue a generation call for an empty window.
func (b *Builder) Summary(ctx context.Context, chatID int64, sel Selector) ([]llm.Turn, int) {
	var msgs []history.Message
	if sel.Period > 0 {
		msgs = b.source.RecentSince(ctx, chatID, b.now().Add(-sel.Period))
		if len(msgs) > b.cfg.MaxMessages {
			// Keep the most recent MaxMessages, dropping the oldest excess.
			msgs = msgs[len(msgs)-b.cfg.MaxMessages:]
		}
	} else {
		msgs = b.source.Recent(ctx, chatID, min(sel.Count, b.cfg.MaxMessages))
	}
	if len(msgs) == 0 {
		return nil, 0
	}
	window := make([]llm.Turn, 0, len(msgs)+1)
	window = append(window, llm.Turn{Role: llm.RoleSystem, Content: summaryPrompt})
	return append(window, Turns(msgs)...), len(msgs)
}

const summaryPrompt = "You are a brilliant premium assistant with attention to details. " +
	"Summarize the following Telegram conversation into bullet points. " +
	"Each bullet point should represent a key topic or decision, focusing on the most valuable information."

func (b *Builder) personaPrompt() string {
	return fmt.Sprintf("You are %[1]s, a friendly and intelligent Telegram bot integrated into group and private chats. "+
		"In group chats, you respond only when explicitly mentioned (e.g., '@%[1]s'). "+
		"You are powered by a PREMIUM large language model and have access to the last %[2]d messages of the conversation, "+
		"including both user messages and your own previous responses. "+
		"Use this context to generate helpful, accurate, and context-aware answers. "+
		"**To ensure clarity and direct communication, always tag users by their Telegram username (e.g., @username) when referring to them in your responses.** "+
		"Always keep the conversation natural and engaging, but keep it cool. "+
		"Don't add timestamps to the messages unless you're asked to do so (they are for your reference only).",
		b.cfg.BotName, b.cfg.ContextSize)
}
