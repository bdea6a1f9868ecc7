package usecase

import (
	"pdf-chat-relay/internal/domain"
)

// buildPromptMessages returns [system] ++ history ++ [user]. The result never
// shares a backing array with history.
func buildPromptMessages(systemPrompt string, history []domain.ChatMessage, message string) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: message})
	return messages
}

// appendTurn returns history extended with the user message and the
// assistant reply, in that order.
func appendTurn(history []domain.ChatMessage, message, reply string) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(history)+2)
	out = append(out, history...)
	return append(out,
		domain.ChatMessage{Role: domain.RoleUser, Content: message},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: reply},
	)
}

func isHistoryRole(role string) bool {
	return role == domain.RoleUser || role == domain.RoleAssistant
}
