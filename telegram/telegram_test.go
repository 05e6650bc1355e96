package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielgyns/trading-bot/engine"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want engine.CommandKind
		ok   bool
	}{
		{"/start", engine.CmdStart, true},
		{"/stop", engine.CmdStop, true},
		{"/status", engine.CmdStatus, true},
		{"/status@MomentumBot", engine.CmdStatus, true},
		{"/position", engine.CmdPosition, true},
		{"/daily", engine.CmdDaily, true},
		{"/start_bot", engine.CmdStart, true},
		{"/toggle_simulation", engine.CmdToggleSim, true},
		{"/simulation", engine.CmdToggleSim, true},
		{"/cancel_orders", engine.CmdCancelAll, true},
		{"  /Start  ", engine.CmdStart, true},
		{"🤖 Status", engine.CmdStatus, true},
		{"🚫 Cancel Orders", engine.CmdCancelAll, true},
		{"/unknown", 0, false},
		{"hello", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseCommand(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// apiRecorder fakes the Bot API and records every method call.
type apiRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

type recordedCall struct {
	method string
	params map[string]any
}

func (r *apiRecorder) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		var params map[string]any
		json.Unmarshal(body, &params)

		r.mu.Lock()
		r.calls = append(r.calls, recordedCall{method: path.Base(req.URL.Path), params: params})
		r.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":[]}`))
	})
}

func (r *apiRecorder) find(method string) (recordedCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c.method == method {
			return c, true
		}
	}
	return recordedCall{}, false
}

func newTestBot(t *testing.T) (*Bot, *apiRecorder, chan engine.Command) {
	t.Helper()

	rec := &apiRecorder{}
	srv := httptest.NewServer(rec.handler())
	t.Cleanup(srv.Close)

	commands := make(chan engine.Command, 4)
	b := New(Config{Token: "test-token", ChatID: 42}, commands)
	b.api.base = srv.URL
	return b, rec, commands
}

func TestStatusCommandDispatch(t *testing.T) {
	ctx := context.Background()
	b, rec, commands := newTestBot(t)

	b.handleMessage(ctx, "/status")

	var cmd engine.Command
	select {
	case cmd = <-commands:
	case <-time.After(time.Second):
		t.Fatal("no command dispatched")
	}
	assert.Equal(t, engine.CmdStatus, cmd.Kind)

	// The engine's reply lands back in the chat.
	cmd.Reply("🤖 all good")
	call, ok := rec.find("sendMessage")
	require.True(t, ok)
	assert.Equal(t, "🤖 all good", call.params["text"])
	assert.Equal(t, float64(42), call.params["chat_id"])
}

func TestUnknownCommandGetsHelp(t *testing.T) {
	ctx := context.Background()
	b, rec, commands := newTestBot(t)

	b.handleMessage(ctx, "what is this")

	assert.Empty(t, commands)
	call, ok := rec.find("sendMessage")
	require.True(t, ok)
	assert.Contains(t, call.params["text"], "/cancel_orders")
}

func TestCancelOrdersRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	b, rec, commands := newTestBot(t)

	b.handleMessage(ctx, "/cancel_orders")

	// Nothing dispatched yet: just the confirmation prompt with buttons.
	assert.Empty(t, commands)
	call, ok := rec.find("sendMessage")
	require.True(t, ok)
	assert.NotNil(t, call.params["reply_markup"])

	// Confirming via callback dispatches the command.
	b.handleCallback(ctx, &callbackQuery{
		ID:   "cb1",
		Data: cancelConfirmYes,
		Message: &incomingMsg{
			MessageID: 7,
			Chat:      chat{ID: 42},
		},
	})

	select {
	case cmd := <-commands:
		assert.Equal(t, engine.CmdCancelAll, cmd.Kind)
	case <-time.After(time.Second):
		t.Fatal("no command dispatched after confirmation")
	}

	_, answered := rec.find("answerCallbackQuery")
	assert.True(t, answered)
	edit, edited := rec.find("editMessageText")
	require.True(t, edited)
	assert.Equal(t, float64(7), edit.params["message_id"])
}

func TestDeclineKeepsOrders(t *testing.T) {
	ctx := context.Background()
	b, rec, commands := newTestBot(t)

	b.handleCallback(ctx, &callbackQuery{
		ID:   "cb2",
		Data: cancelConfirmNo,
		Message: &incomingMsg{
			MessageID: 8,
			Chat:      chat{ID: 42},
		},
	})

	assert.Empty(t, commands)
	edit, ok := rec.find("editMessageText")
	require.True(t, ok)
	assert.Contains(t, edit.params["text"], "Kept")
}

func TestMessagesFromOtherChatsIgnored(t *testing.T) {
	ctx := context.Background()
	b, _, commands := newTestBot(t)

	b.handleUpdate(ctx, update{Message: &incomingMsg{
		Chat: chat{ID: 999},
		Text: "/status",
	}})

	assert.Empty(t, commands)
}
