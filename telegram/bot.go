// Package telegram is the operator front end: it translates chat commands
// into engine commands and pushes engine notifications back to the chat.
//
// The bot never touches trading state directly. Every command goes over the
// controller's channel and is handled at a tick boundary, so a /cancel_orders
// can never race an in-flight entry.
package telegram

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gabrielgyns/trading-bot/engine"
)

const (
	cancelConfirmYes = "cancel_orders:yes"
	cancelConfirmNo  = "cancel_orders:no"
)

// Config for the bot.
type Config struct {
	Token  string
	ChatID int64 // only this chat is served; everything else is ignored
}

// Bot long-polls the Bot API and forwards commands to the engine.
type Bot struct {
	cfg      Config
	api      *client
	commands chan<- engine.Command
}

func New(cfg Config, commands chan<- engine.Command) *Bot {
	return &Bot{
		cfg:      cfg,
		api:      newClient(cfg.Token),
		commands: commands,
	}
}

// Notify implements engine.Notifier by pushing the text to the operator chat.
func (b *Bot) Notify(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.api.sendMessage(ctx, b.cfg.ChatID, text, nil); err != nil {
		log.Printf("[telegram] notify: %v", err)
	}
}

// Run long-polls until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	var offset int64
	for {
		if ctx.Err() != nil {
			return
		}

		updates, err := b.api.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[telegram] getUpdates: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.handleUpdate(ctx, u)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, u update) {
	switch {
	case u.Callback != nil:
		b.handleCallback(ctx, u.Callback)
	case u.Message != nil:
		if u.Message.Chat.ID != b.cfg.ChatID {
			log.Printf("[telegram] ignoring message from chat %d", u.Message.Chat.ID)
			return
		}
		b.handleMessage(ctx, u.Message.Text)
	}
}

func (b *Bot) handleMessage(ctx context.Context, text string) {
	kind, ok := parseCommand(text)
	if !ok {
		b.send(ctx, helpText(), nil)
		return
	}

	// Destructive command: ask first, act on the callback.
	if kind == engine.CmdCancelAll {
		b.send(ctx, "Cancel all orders and drop the position?", inlineKeyboard{
			InlineKeyboard: [][]inlineButton{{
				{Text: "Yes, cancel everything", CallbackData: cancelConfirmYes},
				{Text: "No", CallbackData: cancelConfirmNo},
			}},
		})
		return
	}

	var markup any
	if kind == engine.CmdStart {
		markup = commandKeyboard()
	}
	b.dispatch(ctx, kind, markup)
}

func (b *Bot) handleCallback(ctx context.Context, cb *callbackQuery) {
	if cb.Message == nil || cb.Message.Chat.ID != b.cfg.ChatID {
		return
	}
	if err := b.api.answerCallback(ctx, cb.ID); err != nil {
		log.Printf("[telegram] answerCallback: %v", err)
	}

	switch cb.Data {
	case cancelConfirmYes:
		b.edit(ctx, cb.Message, "Cancelling all orders…")
		b.dispatch(ctx, engine.CmdCancelAll, nil)
	case cancelConfirmNo:
		b.edit(ctx, cb.Message, "Kept everything as is.")
	}
}

// dispatch hands the command to the engine; the reply comes back on the next
// tick and is pushed as a fresh message.
func (b *Bot) dispatch(ctx context.Context, kind engine.CommandKind, markup any) {
	cmd := engine.Command{
		Kind: kind,
		Reply: func(text string) {
			b.send(context.Background(), text, markup)
		},
	}

	select {
	case b.commands <- cmd:
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		b.send(ctx, "Engine busy, try again.", nil)
	}
}

func (b *Bot) send(ctx context.Context, text string, markup any) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := b.api.sendMessage(ctx, b.cfg.ChatID, text, markup); err != nil {
		log.Printf("[telegram] send: %v", err)
	}
}

func (b *Bot) edit(ctx context.Context, msg *incomingMsg, text string) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := b.api.editMessageText(ctx, msg.Chat.ID, msg.MessageID, text); err != nil {
		log.Printf("[telegram] edit: %v", err)
	}
}

// parseCommand maps chat input (slash command or keyboard label) to an engine
// command.
func parseCommand(text string) (engine.CommandKind, bool) {
	cmd := strings.ToLower(strings.TrimSpace(text))
	if i := strings.IndexByte(cmd, '@'); i > 0 && strings.HasPrefix(cmd, "/") {
		cmd = cmd[:i] // strip bot mention: /status@MyBot
	}

	switch cmd {
	case "/start", "/start_bot", "▶️ start":
		return engine.CmdStart, true
	case "/stop", "/stop_bot", "⏸ stop":
		return engine.CmdStop, true
	case "/status", "🤖 status":
		return engine.CmdStatus, true
	case "/position", "📌 position":
		return engine.CmdPosition, true
	case "/daily", "📊 daily":
		return engine.CmdDaily, true
	case "/toggle_simulation", "/simulation", "🧪 simulation":
		return engine.CmdToggleSim, true
	case "/cancel_orders", "🚫 cancel orders":
		return engine.CmdCancelAll, true
	default:
		return 0, false
	}
}

func commandKeyboard() replyKeyboard {
	return replyKeyboard{
		Keyboard: [][]string{
			{"🤖 Status", "📌 Position", "📊 Daily"},
			{"▶️ Start", "⏸ Stop"},
			{"🧪 Simulation", "🚫 Cancel Orders"},
		},
		ResizeKeyboard: true,
	}
}

func helpText() string {
	return strings.Join([]string{
		"Commands:",
		"/start – start trading (shows the keyboard)",
		"/stop – stop entering new positions",
		"/status – loop state, price, balance",
		"/position – open position details",
		"/daily – daily P&L vs the risk budget",
		"/toggle_simulation – log entries instead of sending them",
		"/cancel_orders – cancel everything (asks to confirm)",
	}, "\n")
}
