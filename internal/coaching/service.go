package coaching

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MikeSquared-Agency/nuance/internal/anthropic"
	"github.com/MikeSquared-Agency/nuance/internal/prompts"
)

const fallbackResponse = "I hear you - this sounds really challenging. Sometimes our brains just need a moment. What if we take a tiny step together? Even just naming one small thing you could do in the next 2 minutes counts as progress."

// AI is the provider surface the coaching service needs.
type AI interface {
	Complete(ctx context.Context, system string, messages []anthropic.Message, maxTokens int) (anthropic.Completion, error)
	Stream(ctx context.Context, system string, messages []anthropic.Message, maxTokens int, onDelta func(string)) (anthropic.Completion, error)
}

// Service runs empathetic coaching conversations for users who are stuck.
// Conversations are keyed by user, or by user and task when task-scoped, and
// all access to one conversation is serialized so concurrent messages cannot
// interleave history.
type Service struct {
	ai        AI
	registry  *prompts.Registry
	store     ConversationStore
	history   int
	maxTokens int
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(ai AI, registry *prompts.Registry, store ConversationStore, historyLimit, maxTokens int, logger *slog.Logger) *Service {
	return &Service{
		ai:        ai,
		registry:  registry,
		store:     store,
		history:   historyLimit,
		maxTokens: maxTokens,
		logger:    logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Fallback is the canned response used when the provider is unavailable.
func Fallback() string {
	return fallbackResponse
}

func conversationKey(userID, taskID string) string {
	if taskID != "" {
		return userID + ":" + taskID
	}
	return userID
}

// Process appends the user's message, asks the provider for a reply, and
// records it. Provider failures return the fallback and leave no assistant
// turn in the history.
func (s *Service) Process(ctx context.Context, message, userID, taskID, taskTitle string) string {
	key := conversationKey(userID, taskID)
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	conv := s.conversation(key, userID, taskID, taskTitle)
	conv.AddUserMessage(message)
	s.store.Put(key, conv)

	comp, err := s.ai.Complete(ctx, s.systemPrompt(taskTitle), conv.History(s.history), s.maxTokens)
	if err != nil {
		s.logger.Error("coaching failed", "error", err, "user_id", userID)
		return fallbackResponse
	}

	conv.AddAssistantMessage(comp.Content)
	s.store.Put(key, conv)
	s.logger.Info("coaching response generated", "user_id", userID, "message_count", len(conv.Messages))
	return comp.Content
}

// Stream streams the reply through onDelta and returns the full text. On
// provider failure the fallback is emitted as a single chunk instead.
func (s *Service) Stream(ctx context.Context, message, userID, taskID, taskTitle string, onDelta func(string)) string {
	key := conversationKey(userID, taskID)
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	conv := s.conversation(key, userID, taskID, taskTitle)
	conv.AddUserMessage(message)
	s.store.Put(key, conv)

	comp, err := s.ai.Stream(ctx, s.systemPrompt(taskTitle), conv.History(s.history), s.maxTokens, onDelta)
	if err != nil {
		s.logger.Error("coaching stream failed", "error", err, "user_id", userID)
		if onDelta != nil {
			onDelta(fallbackResponse)
		}
		return fallbackResponse
	}

	conv.AddAssistantMessage(comp.Content)
	s.store.Put(key, conv)
	s.logger.Info("coaching stream complete", "user_id", userID, "response_length", len(comp.Content))
	return comp.Content
}

// Clear drops the conversation for the user, or for the user and task when
// task-scoped.
func (s *Service) Clear(userID, taskID string) {
	key := conversationKey(userID, taskID)
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	s.store.Delete(key)
	s.logger.Debug("cleared coaching conversation", "user_id", userID, "task_id", taskID)
}

func (s *Service) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// conversation loads the keyed conversation or starts a fresh one. Caller
// holds the key lock.
func (s *Service) conversation(key, userID, taskID, taskTitle string) *Conversation {
	conv, ok := s.store.Get(key)
	if !ok {
		conv = NewConversation(userID, taskID, taskTitle)
		s.logger.Debug("created coaching conversation", "user_id", userID, "task_id", taskID)
	}
	return conv
}

func (s *Service) systemPrompt(taskTitle string) string {
	system := ""
	if p, err := s.registry.Get("coaching"); err == nil {
		system = p.Content
	} else {
		s.logger.Error("coaching prompt missing", "error", err)
	}
	if taskTitle != "" {
		system += fmt.Sprintf("\n\nContext: The user is working on '%s'.", taskTitle)
	}
	return system
}
