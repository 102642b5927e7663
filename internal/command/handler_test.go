package command

import (
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
)

type fakeClearer struct {
	calls [][2]string
}

func (f *fakeClearer) Clear(userID, taskID string) {
	f.calls = append(f.calls, [2]string{userID, taskID})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler() (*Handler, *fakeClearer) {
	clearer := &fakeClearer{}
	return NewHandler(clearer, discardLogger()), clearer
}

func TestProcess_Start(t *testing.T) {
	h, _ := newTestHandler()

	resp := h.Process("/start", "u1")

	if resp.Command != "/start" {
		t.Errorf("command = %q, want /start", resp.Command)
	}
	if !strings.Contains(resp.Message, "Welcome to Nuance!") {
		t.Errorf("message missing welcome: %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "Use /help for more commands") {
		t.Errorf("message missing help pointer: %q", resp.Message)
	}
	if resp.Data != nil {
		t.Errorf("data = %v, want none", resp.Data)
	}
}

func TestProcess_Help(t *testing.T) {
	h, _ := newTestHandler()

	resp := h.Process("/help", "u1")

	if resp.Command != "/help" {
		t.Errorf("command = %q, want /help", resp.Command)
	}
	for _, line := range []string{
		"/start - Start fresh or see welcome message",
		"/help - Show this help message",
		"/clear - Clear conversation history",
		"/status - Check your current status",
	} {
		if !strings.Contains(resp.Message, line) {
			t.Errorf("message missing %q", line)
		}
	}
}

func TestProcess_Clear(t *testing.T) {
	h, clearer := newTestHandler()

	resp := h.Process("/clear", "u1")

	if resp.Message != "Conversation cleared. What would you like to work on?" {
		t.Errorf("message = %q", resp.Message)
	}
	if len(clearer.calls) != 1 || clearer.calls[0] != [2]string{"u1", ""} {
		t.Errorf("clearer calls = %v, want one unscoped clear for u1", clearer.calls)
	}
}

func TestProcess_ClearWithoutClearer(t *testing.T) {
	h := NewHandler(nil, discardLogger())

	resp := h.Process("/clear", "u1")

	if resp.Command != "/clear" {
		t.Errorf("command = %q, want /clear", resp.Command)
	}
}

func TestProcess_Status(t *testing.T) {
	h, _ := newTestHandler()

	resp := h.Process("/status", "u7")

	if resp.Message != "Status check - all systems operational." {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Data["user_id"] != "u7" {
		t.Errorf("data.user_id = %v", resp.Data["user_id"])
	}
	services, ok := resp.Data["services"].([]string)
	if !ok || !reflect.DeepEqual(services, []string{"capture", "coaching", "commands"}) {
		t.Errorf("data.services = %v", resp.Data["services"])
	}
}

func TestProcess_Unknown(t *testing.T) {
	h, _ := newTestHandler()

	resp := h.Process("/frobnicate please", "u1")

	if resp.Command != "/frobnicate" {
		t.Errorf("command = %q", resp.Command)
	}
	want := "Unknown command: /frobnicate. Type /help for available commands."
	if resp.Message != want {
		t.Errorf("message = %q, want %q", resp.Message, want)
	}
}

func TestProcess_ParsesToken(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"uppercase is folded", "/START", "/start"},
		{"surrounding whitespace ignored", "  /help  ", "/help"},
		{"arguments dropped", "/status now please", "/status"},
		{"tab separated", "/clear\teverything", "/clear"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler()
			if resp := h.Process(tt.text, "u1"); resp.Command != tt.want {
				t.Errorf("Process(%q).Command = %q, want %q", tt.text, resp.Command, tt.want)
			}
		})
	}
}

func TestProcess_EmptyInput(t *testing.T) {
	h, clearer := newTestHandler()

	for _, text := range []string{"", "   ", "\n"} {
		resp := h.Process(text, "u1")
		if resp.Command != "" {
			t.Errorf("Process(%q).Command = %q, want empty", text, resp.Command)
		}
		if !strings.Contains(resp.Message, "Type /help for available commands.") {
			t.Errorf("Process(%q) message = %q", text, resp.Message)
		}
	}
	if len(clearer.calls) != 0 {
		t.Errorf("clearer calls = %v, want none", clearer.calls)
	}
}

func TestProcess_HelpAndStartAreIdempotent(t *testing.T) {
	h, clearer := newTestHandler()

	for _, cmd := range []string{"/help", "/start"} {
		first := h.Process(cmd, "u1")
		second := h.Process(cmd, "u1")
		if !reflect.DeepEqual(first, second) {
			t.Errorf("%s is not idempotent", cmd)
		}
	}
	if len(clearer.calls) != 0 {
		t.Errorf("clearer calls = %v, want none", clearer.calls)
	}
}
