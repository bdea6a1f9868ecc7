package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"pdf-chat-relay/internal/domain"
)

type capturingCompleter struct {
	reply     string
	err       error
	messages  []domain.ChatMessage
	cfg       domain.ModelConfig
	callCount int
}

func (c *capturingCompleter) Complete(_ context.Context, msgs []domain.ChatMessage, cfg domain.ModelConfig) (string, error) {
	c.callCount++
	c.messages = msgs
	c.cfg = cfg
	return c.reply, c.err
}

func testProfile() Profile {
	return Profile{
		System:      "You help with PDF templates.",
		Model:       "model-x",
		Temperature: 0.7,
		MaxTokens:   4000,
	}
}

func newTestService(t *testing.T, p Completer, opts ...Option) *RelayService {
	t.Helper()
	svc, err := NewRelayService(p, testProfile(), opts...)
	require.NoError(t, err)
	return svc
}

func expectRelayError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}

func user(s string) domain.ChatMessage {
	return domain.ChatMessage{Role: domain.RoleUser, Content: s}
}

func assistant(s string) domain.ChatMessage {
	return domain.ChatMessage{Role: domain.RoleAssistant, Content: s}
}

func TestNewRelayService_ValidatesDependencies(t *testing.T) {
	_, err := NewRelayService(nil, testProfile())
	require.Error(t, err)

	_, err = NewRelayService(&capturingCompleter{}, Profile{})
	require.Error(t, err)
}

func TestRelay_EmptyHistory_SendsSystemThenUser(t *testing.T) {
	p := &capturingCompleter{reply: "hi there"}
	svc := newTestService(t, p)

	out, err := svc.Relay(context.Background(), RelayInput{Message: "hello"})
	require.NoError(t, err)

	require.Equal(t, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "You help with PDF templates."},
		user("hello"),
	}, p.messages)
	require.Equal(t, "hi there", out.Reply)
	require.Equal(t, []domain.ChatMessage{user("hello"), assistant("hi there")}, out.History)
}

func TestRelay_WithHistory_PreservesOrder(t *testing.T) {
	history := []domain.ChatMessage{user("q1"), assistant("a1"), user("q2"), assistant("a2")}
	p := &capturingCompleter{reply: "a3"}
	svc := newTestService(t, p)

	out, err := svc.Relay(context.Background(), RelayInput{Message: "q3", History: history})
	require.NoError(t, err)

	require.Len(t, p.messages, len(history)+2)
	require.Equal(t, domain.RoleSystem, p.messages[0].Role)
	require.Equal(t, history, p.messages[1:len(history)+1])
	require.Equal(t, user("q3"), p.messages[len(p.messages)-1])

	require.Equal(t, append(append([]domain.ChatMessage{}, history...), user("q3"), assistant("a3")), out.History)
}

func TestRelay_DoesNotMutateCallerHistory(t *testing.T) {
	backing := make([]domain.ChatMessage, 2, 8)
	backing[0], backing[1] = user("q1"), assistant("a1")
	p := &capturingCompleter{reply: "a2"}
	svc := newTestService(t, p)

	out, err := svc.Relay(context.Background(), RelayInput{Message: "q2", History: backing})
	require.NoError(t, err)

	require.Len(t, backing, 2)
	spare := backing[:4]
	require.Equal(t, domain.ChatMessage{}, spare[2], "caller's spare capacity must stay untouched")
	require.Len(t, out.History, 4)

	out.History[0].Content = "changed"
	require.Equal(t, "q1", backing[0].Content)
}

func TestRelay_SendsProfileModelConfig(t *testing.T) {
	p := &capturingCompleter{reply: "ok"}
	svc := newTestService(t, p)

	_, err := svc.Relay(context.Background(), RelayInput{Message: "hello"})
	require.NoError(t, err)
	require.Equal(t, domain.ModelConfig{Model: "model-x", Temperature: 0.7, MaxTokens: 4000}, p.cfg)
}

func TestRelay_EmptyMessage(t *testing.T) {
	p := &capturingCompleter{reply: "unused"}
	svc := newTestService(t, p)

	_, err := svc.Relay(context.Background(), RelayInput{Message: ""})
	expectRelayError(t, err, ErrorInvalidInput, "empty_message")
	require.Zero(t, p.callCount)
}

func TestRelay_RejectsUnsupportedHistoryRole(t *testing.T) {
	cases := []string{domain.RoleSystem, "", "tool"}
	for _, role := range cases {
		t.Run("role="+role, func(t *testing.T) {
			p := &capturingCompleter{reply: "unused"}
			svc := newTestService(t, p)

			_, err := svc.Relay(context.Background(), RelayInput{
				Message: "hello",
				History: []domain.ChatMessage{user("q1"), {Role: role, Content: "x"}},
			})
			expectRelayError(t, err, ErrorInvalidHistory, "unsupported_role")
			require.Zero(t, p.callCount)
		})
	}
}

func TestRelay_MaxHistory(t *testing.T) {
	history := []domain.ChatMessage{user("q1"), assistant("a1"), user("q2")}

	p := &capturingCompleter{reply: "ok"}
	svc := newTestService(t, p, WithMaxHistory(2))
	_, err := svc.Relay(context.Background(), RelayInput{Message: "hello", History: history})
	expectRelayError(t, err, ErrorInvalidHistory, "history_too_long")
	require.Zero(t, p.callCount)

	svc = newTestService(t, p, WithMaxHistory(3))
	_, err = svc.Relay(context.Background(), RelayInput{Message: "hello", History: history})
	require.NoError(t, err)

	svc = newTestService(t, p, WithMaxHistory(0))
	_, err = svc.Relay(context.Background(), RelayInput{Message: "hello", History: history})
	require.NoError(t, err)
}

func TestRelay_ProviderFailure(t *testing.T) {
	p := &capturingCompleter{err: errors.New("connection reset")}
	svc := newTestService(t, p)

	_, err := svc.Relay(context.Background(), RelayInput{Message: "hello"})
	expectRelayError(t, err, ErrorProviderFailure, "provider_error")
	require.ErrorContains(t, err, "connection reset")

	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, "connection reset", usecaseErr.Description())
}

func TestRelay_ThaiRoundTrip(t *testing.T) {
	p := &capturingCompleter{reply: "สวัสดีครับ"}
	svc := newTestService(t, p)

	out, err := svc.Relay(context.Background(), RelayInput{Message: "สวัสดี"})
	require.NoError(t, err)
	require.Equal(t, "สวัสดีครับ", out.Reply)
	require.Equal(t, []domain.ChatMessage{user("สวัสดี"), assistant("สวัสดีครับ")}, out.History)
}

func TestError_Description(t *testing.T) {
	require.Equal(t, "empty_message", newError(ErrorInvalidInput, "empty_message", nil).Description())
	require.Equal(t, "boom", newError(ErrorProviderFailure, "provider_error", errors.New("boom")).Description())
	var nilErr *Error
	require.Equal(t, "", nilErr.Description())
	require.Equal(t, "", nilErr.Error())
}
