// Package agent runs the per-message pipeline: persist the inbound message,
// assemble a bounded context window, dispatch it to the configured provider
// and shape the outcome into user-facing text. All fail-soft wording lives
// here, at the chat boundary; lower layers return typed errors.
package agent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/telence/telence-go/internal/history"
	"github.com/telence/telence-go/internal/llm"
	"github.com/telence/telence-go/internal/logger"
	"github.com/telence/telence-go/internal/prompt"
)

var log = logger.With("agent")

// User-facing replies for degraded outcomes.
const (
	TransportFailureText = "I'm having trouble processing that request."
	AuthFailureText      = "I'm having trouble authenticating with my language model right now."
	NothingToSummarize   = "No messages found to summarize."
	SummaryUsage         = "Usage: /summary <number of messages | time period (e.g., 1h)>"
	BadDurationText      = "Invalid time format. Use a positive number followed by 'h' (e.g., 1h)."
	BadCountText         = "Invalid number of messages. Use a positive number (e.g., /summary 20)."
	ResetOKText          = "Memory has been reset for this chat."
	ResetFailedText      = "Failed to reset memory. Please try again later."
)

// Store is the slice of the history layer the pipeline writes through.
type Store interface {
	Insert(ctx context.Context, m history.Message)
	DeleteAll(ctx context.Context, chatID int64) error
}

// Agent wires storage, window building and generation into one pipeline.
type Agent struct {
	store   Store
	builder *prompt.Builder
	gen     llm.Generator
	botName string
	now     func() time.Time
}

func New(store Store, builder *prompt.Builder, gen llm.Generator, botName string) *Agent {
	return &Agent{store: store, builder: builder, gen: gen, botName: botName, now: time.Now}
}

// Record persists an inbound message. It is called for every message seen,
// including group messages the bot will not answer.
func (a *Agent) Record(ctx context.Context, chatID, userID int64, username, text string) {
	a.store.Insert(ctx, history.Message{
		ChatID:    chatID,
		UserID:    userID,
		Username:  username,
		Text:      text,
		Timestamp: a.now(),
	})
}

// Respond builds the conversation window, generates a reply, persists it as
// an assistant message and returns the text to deliver.
//
// Concurrent messages in the same chat are not serialized here; insertion
// order at the store is the only ordering point.
func (a *Agent) Respond(ctx context.Context, chatID int64) string {
	reqID := uuid.NewString()
	window := a.builder.Conversation(ctx, chatID)
	log.Info("generating reply", "request_id", reqID, "chat_id", chatID, "turns", len(window))

	reply, err := a.gen.Generate(ctx, window)
	if err != nil {
		return failSoft(reqID, chatID, err)
	}
	a.store.Insert(ctx, history.Message{
		ChatID:    chatID,
		UserID:    history.AssistantUserID,
		Username:  a.botName,
		Text:      reply,
		Timestamp: a.now(),
	})
	return reply
}

// Summarize handles the /summary argument end to end: selector validation,
// window building, generation. Malformed input and empty history are
// user-visible outcomes, not failures.
func (a *Agent) Summarize(ctx context.Context, chatID int64, arg string) string {
	if arg == "" {
		return SummaryUsage
	}
	sel, err := prompt.ParseSelector(arg)
	switch {
	case errors.Is(err, prompt.ErrBadDuration):
		return BadDurationText
	case errors.Is(err, prompt.ErrBadCount):
		return BadCountText
	case err != nil:
		return SummaryUsage
	}

	window, count := a.builder.Summary(ctx, chatID, sel)
	if count == 0 {
		return NothingToSummarize
	}

	reqID := uuid.NewString()
	log.Info("generating summary", "request_id", reqID, "chat_id", chatID, "messages", count)
	reply, err := a.gen.Generate(ctx, window)
	if err != nil {
		return failSoft(reqID, chatID, err)
	}
	return reply
}

// Reset clears the conversation history for a chat.
func (a *Agent) Reset(ctx context.Context, chatID int64) string {
	if err := a.store.DeleteAll(ctx, chatID); err != nil {
		log.Error("failed to clear history", "chat_id", chatID, "error", err)
		return ResetFailedText
	}
	log.Info("cleared conversation history", "chat_id", chatID)
	return ResetOKText
}

// failSoft maps a gateway error onto reply text. No steady-state error is
// allowed past this point.
func failSoft(reqID string, chatID int64, err error) string {
	log.Error("generation failed", "request_id", reqID, "chat_id", chatID, "error", err)
	var gerr *llm.Error
	if errors.As(err, &gerr) && gerr.Kind == llm.KindAuth {
		return AuthFailureText
	}
	return TransportFailureText
}
