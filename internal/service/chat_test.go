package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yelpclone/directory/pkg/errors"

	"github.com/yelpclone/directory/internal/domain"
	"github.com/yelpclone/directory/internal/session"
)

func newChat(t *testing.T, client Completer, cfg ChatConfig) (*ChatService, *session.MemoryStore, *fixture) {
	t.Helper()
	f := newFixture(t)
	sessions := session.NewMemoryStore(time.Hour, 0)
	return NewChatService(client, sessions, f.store.Businesses, cfg, discardLogger()), sessions, f
}

func TestChatSend_TwoCallsBuildTranscript(t *testing.T) {
	client := new(mockCompleter)
	svc, sessions, _ := newChat(t, client, ChatConfig{Timeout: time.Second})

	client.On("Complete", mock.Anything, mock.MatchedBy(func(msgs []domain.ChatMessage) bool {
		return len(msgs) == 2
	})).Return("first answer", nil).Once()
	client.On("Complete", mock.Anything, mock.MatchedBy(func(msgs []domain.ChatMessage) bool {
		return len(msgs) == 4
	})).Return("second answer", nil).Once()

	got, err := svc.Send(context.Background(), "s1", ChatInput{Prompt: "first question", Context: "ctx"})
	require.NoError(t, err)
	assert.Equal(t, "first answer", got)

	got, err = svc.Send(context.Background(), "s1", ChatInput{Prompt: "second question", Context: "ctx"})
	require.NoError(t, err)
	assert.Equal(t, "second answer", got)

	transcript, err := sessions.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "first question"},
		{Role: domain.RoleAssistant, Content: "first answer"},
		{Role: domain.RoleUser, Content: "second question"},
		{Role: domain.RoleAssistant, Content: "second answer"},
	}, transcript)

	second := client.Calls[1].Arguments.Get(1).([]domain.ChatMessage)
	assert.Equal(t, domain.RoleSystem, second[0].Role)
	assert.Contains(t, second[0].Content, "ctx")
	assert.Equal(t, "first question", second[1].Content)
	assert.Equal(t, "first answer", second[2].Content)
	assert.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "second question"}, second[3])
	client.AssertExpectations(t)
}

func TestChatSend_FailureLeavesTranscriptUnchanged(t *testing.T) {
	client := new(mockCompleter)
	svc, sessions, _ := newChat(t, client, ChatConfig{})

	require.NoError(t, sessions.Append(context.Background(), "s1",
		domain.ChatMessage{Role: domain.RoleUser, Content: "hi"},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: "hello"},
	))
	client.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("upstream 503"))

	_, err := svc.Send(context.Background(), "s1", ChatInput{Prompt: "again?"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrExternal))
	assert.Equal(t, 502, apperrors.HTTPStatus(err))

	transcript, err := sessions.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, transcript, 2)
}

func TestChatSend_TimeoutIsServiceFailure(t *testing.T) {
	client := new(mockCompleter)
	svc, sessions, _ := newChat(t, client, ChatConfig{Timeout: 20 * time.Millisecond})

	client.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.DeadlineExceeded)

	_, err := svc.Send(context.Background(), "s1", ChatInput{Prompt: "slow"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrExternal))

	transcript, _ := sessions.Load(context.Background(), "s1")
	assert.Empty(t, transcript)
}

func TestChatSend_BusinessSummaryInSystemTurn(t *testing.T) {
	client := new(mockCompleter)
	svc, _, f := newChat(t, client, ChatConfig{})
	b := f.createBusiness(t, "Blue Door", 4, 5)

	client.On("Complete", mock.Anything, mock.Anything).Return("ok", nil)

	_, err := svc.Send(context.Background(), "s1", ChatInput{Prompt: "is it good?", BusinessID: b.ID})
	require.NoError(t, err)

	msgs := client.Calls[0].Arguments.Get(1).([]domain.ChatMessage)
	assert.Contains(t, msgs[0].Content, DefaultSystemPrompt)
	assert.Contains(t, msgs[0].Content, "Business: Blue Door")
	assert.Contains(t, msgs[0].Content, "Average rating: 4.50 from 2 reviews")
}

func TestChatSend_UnknownBusiness(t *testing.T) {
	client := new(mockCompleter)
	svc, _, _ := newChat(t, client, ChatConfig{})

	_, err := svc.Send(context.Background(), "s1", ChatInput{Prompt: "hi", BusinessID: "nowhere"})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	client.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestChatSend_HistoryLimit(t *testing.T) {
	client := new(mockCompleter)
	svc, sessions, _ := newChat(t, client, ChatConfig{HistoryLimit: 2})

	for i := 0; i < 3; i++ {
		require.NoError(t, sessions.Append(context.Background(), "s1",
			domain.ChatMessage{Role: domain.RoleUser, Content: "q"},
			domain.ChatMessage{Role: domain.RoleAssistant, Content: "a"},
		))
	}
	client.On("Complete", mock.Anything, mock.Anything).Return("ok", nil)

	_, err := svc.Send(context.Background(), "s1", ChatInput{Prompt: "latest"})
	require.NoError(t, err)

	msgs := client.Calls[0].Arguments.Get(1).([]domain.ChatMessage)
	assert.Len(t, msgs, 4)

	transcript, _ := sessions.Load(context.Background(), "s1")
	assert.Len(t, transcript, 8)
}

func TestChatSend_Validation(t *testing.T) {
	client := new(mockCompleter)
	svc, _, _ := newChat(t, client, ChatConfig{})

	_, err := svc.Send(context.Background(), "s1", ChatInput{Prompt: "   "})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, err = svc.Send(context.Background(), "s1", ChatInput{Prompt: strings.Repeat("x", domain.MaxPromptLength+1)})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, err = svc.Send(context.Background(), "", ChatInput{Prompt: "hi"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	client.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestChatHistoryAndReset(t *testing.T) {
	client := new(mockCompleter)
	svc, _, _ := newChat(t, client, ChatConfig{})
	client.On("Complete", mock.Anything, mock.Anything).Return("ok", nil)

	_, err := svc.Send(context.Background(), "s1", ChatInput{Prompt: "hi"})
	require.NoError(t, err)

	history, err := svc.History(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	require.NoError(t, svc.Reset(context.Background(), "s1"))
	history, err = svc.History(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, history)

	history, err = svc.History(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, history)
}
