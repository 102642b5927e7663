package command

import (
	"fmt"
	"log/slog"
	"strings"
)

// Response is the result of executing a system command.
type Response struct {
	Command string         `json:"command"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// ConversationClearer is the slice of the coaching service that /clear needs.
type ConversationClearer interface {
	Clear(userID, taskID string)
}

// Handler executes slash commands like /start and /help.
type Handler struct {
	clearer ConversationClearer
	logger  *slog.Logger
}

func NewHandler(clearer ConversationClearer, logger *slog.Logger) *Handler {
	return &Handler{clearer: clearer, logger: logger}
}

const startMessage = "Welcome to Nuance! I'm your executive function assistant.\n\n" +
	"You can:\n" +
	"- Tell me about tasks (e.g., 'Buy groceries and call mom')\n" +
	"- Talk when you're stuck (e.g., 'I can't focus today')\n" +
	"- Use /help for more commands\n\n" +
	"What would you like to capture or talk about?"

const helpMessage = "Available commands:\n\n" +
	"/start - Start fresh or see welcome message\n" +
	"/help - Show this help message\n" +
	"/clear - Clear conversation history\n" +
	"/status - Check your current status\n\n" +
	"Or just tell me:\n" +
	"- Tasks to capture: 'I need to call mom and buy groceries'\n" +
	"- When you're stuck: 'I can't focus' or 'I'm overwhelmed'"

// Process parses the first whitespace-separated token as the command name
// and dispatches it. Anything unrecognized, including empty input, gets the
// unknown-command reply.
func (h *Handler) Process(text, userID string) Response {
	cmd := commandToken(text)

	h.logger.Info("processing command", "command", cmd, "user_id", userID)

	switch cmd {
	case "/start":
		return Response{Command: "/start", Message: startMessage}
	case "/help":
		return Response{Command: "/help", Message: helpMessage}
	case "/clear":
		return h.clear(userID)
	case "/status":
		return Response{
			Command: "/status",
			Message: "Status check - all systems operational.",
			Data: map[string]any{
				"user_id":  userID,
				"services": []string{"capture", "coaching", "commands"},
			},
		}
	default:
		return Response{
			Command: cmd,
			Message: fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd),
		}
	}
}

func (h *Handler) clear(userID string) Response {
	if h.clearer != nil {
		h.clearer.Clear(userID, "")
	}
	return Response{Command: "/clear", Message: "Conversation cleared. What would you like to work on?"}
}

func commandToken(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
