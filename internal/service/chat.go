package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/yelpclone/directory/pkg/errors"
	"github.com/yelpclone/directory/pkg/validator"

	"github.com/yelpclone/directory/internal/domain"
	"github.com/yelpclone/directory/internal/repository"
	"github.com/yelpclone/directory/internal/session"
)

// DefaultSystemPrompt opens every conversation.
const DefaultSystemPrompt = "You are a helpful assistant for a local business directory. Answer questions about the listed businesses and their reviews."

// Completer sends a conversation to a language model and returns its answer.
type Completer interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// ChatConfig tunes the chat relay.
type ChatConfig struct {
	// Timeout bounds a single call to the model. Zero means no extra bound.
	Timeout time.Duration
	// HistoryLimit caps how many prior turns are sent with a prompt. Zero
	// sends the whole transcript.
	HistoryLimit int
	SystemPrompt string
}

// ChatService relays prompts to the chat model and keeps a transcript per
// session.
type ChatService struct {
	client     Completer
	sessions   session.Store
	businesses repository.BusinessRepository
	cfg        ChatConfig
	logger     *slog.Logger
}

// NewChatService creates a new chat service.
func NewChatService(client Completer, sessions session.Store, businesses repository.BusinessRepository, cfg ChatConfig, logger *slog.Logger) *ChatService {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	return &ChatService{
		client:     client,
		sessions:   sessions,
		businesses: businesses,
		cfg:        cfg,
		logger:     logger,
	}
}

// ChatInput is one prompt from a session.
type ChatInput struct {
	Prompt string `json:"prompt" validate:"required,max=4000"`
	// Context is free text added to the system turn.
	Context string `json:"context" validate:"max=8000"`
	// BusinessID optionally names a business, by ID or slug, whose summary is
	// added to the system turn.
	BusinessID string `json:"business_id" validate:"max=200"`
}

// Send forwards the prompt with the session's prior turns and returns the
// assistant's answer. The transcript is extended only when the model call
// succeeds.
func (s *ChatService) Send(ctx context.Context, sessionID string, input ChatInput) (string, error) {
	if sessionID == "" {
		return "", apperrors.InvalidInput("chat session is required")
	}
	input.Prompt = strings.TrimSpace(input.Prompt)
	input.Context = strings.TrimSpace(input.Context)
	input.BusinessID = strings.TrimSpace(input.BusinessID)
	if err := validator.Validate(&input); err != nil {
		return "", err
	}

	system, err := s.systemTurn(ctx, input)
	if err != nil {
		return "", err
	}

	history, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("load chat session: %w", err)
	}
	prior := domain.LastTurns(history, s.cfg.HistoryLimit)

	userTurn := domain.ChatMessage{Role: domain.RoleUser, Content: input.Prompt}
	messages := make([]domain.ChatMessage, 0, len(prior)+2)
	messages = append(messages, system)
	messages = append(messages, prior...)
	messages = append(messages, userTurn)

	callCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := s.client.Complete(callCtx, messages)
	if err != nil {
		s.logger.ErrorContext(ctx, "chat completion failed",
			slog.Int("prior_turns", len(prior)),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return "", apperrors.ExternalService("chat assistant", err)
	}

	assistantTurn := domain.ChatMessage{Role: domain.RoleAssistant, Content: answer}
	if err := s.sessions.Append(ctx, sessionID, userTurn, assistantTurn); err != nil {
		return "", fmt.Errorf("save chat transcript: %w", err)
	}

	s.logger.InfoContext(ctx, "chat completion relayed",
		slog.Int("prior_turns", len(prior)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return answer, nil
}

// History returns the session's transcript.
func (s *ChatService) History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	if sessionID == "" {
		return []domain.ChatMessage{}, nil
	}
	msgs, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load chat session: %w", err)
	}
	return msgs, nil
}

// Reset drops the session's transcript.
func (s *ChatService) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("reset chat session: %w", err)
	}
	return nil
}

func (s *ChatService) systemTurn(ctx context.Context, input ChatInput) (domain.ChatMessage, error) {
	parts := []string{s.cfg.SystemPrompt}
	if input.Context != "" {
		parts = append(parts, input.Context)
	}
	if input.BusinessID != "" {
		var (
			b   *domain.Business
			err error
		)
		if isUUID(input.BusinessID) {
			b, err = s.businesses.GetByID(ctx, input.BusinessID)
		} else {
			b, err = s.businesses.GetBySlug(ctx, input.BusinessID)
		}
		if err != nil {
			return domain.ChatMessage{}, fmt.Errorf("load chat business: %w", err)
		}
		parts = append(parts, b.Summary())
	}
	return domain.ChatMessage{Role: domain.RoleSystem, Content: strings.Join(parts, "\n\n")}, nil
}
