package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"pdf-chat-relay/internal/domain"
	"pdf-chat-relay/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	maxBodyBytes      = 6 << 20

	msgMethodNotAllowed = "Method not allowed"
	msgMissingMessage   = "กรุณาส่งข้อความมา"
	msgInvalidHistory   = "รูปแบบประวัติการสนทนาไม่ถูกต้อง"
	msgFailurePrefix    = "เกิดข้อผิดพลาด: "
)

type RelayUseCase interface {
	Relay(ctx context.Context, in usecase.RelayInput) (usecase.RelayOutput, error)
}

// chatRequest keeps both fields raw so a non-string message can be told
// apart from a malformed body.
type chatRequest struct {
	Message json.RawMessage `json:"message"`
	History json.RawMessage `json:"history"`
}

type chatResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	History []json.RawMessage `json:"history"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	uc     RelayUseCase
	logger *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHandler(uc RelayUseCase, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: relay use case must not be nil")
	}
	h := &Handler{uc: uc, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle serves one API Gateway proxy event. It never returns a non-nil
// error; every failure becomes an HTTP response.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(event.Headers)

	if event.HTTPMethod != http.MethodPost {
		return textResponse(http.StatusMethodNotAllowed, corrID, msgMethodNotAllowed), nil
	}

	body, err := requestBody(event)
	if err != nil {
		return h.failure(ctx, corrID, err), nil
	}
	req, err := decodeRequest(body)
	if err != nil {
		return h.failure(ctx, corrID, err), nil
	}

	message, ok := parseMessage(req.Message)
	if !ok {
		return jsonResponse(http.StatusBadRequest, corrID, errorResponse{Error: msgMissingMessage}), nil
	}
	history, rawHistory, err := parseHistory(req.History)
	if err != nil {
		return h.failure(ctx, corrID, err), nil
	}

	out, err := h.uc.Relay(ctx, usecase.RelayInput{Message: message, History: history})
	if err != nil {
		return h.relayError(ctx, corrID, err), nil
	}

	outHistory, err := echoHistory(rawHistory, out.History)
	if err != nil {
		return h.failure(ctx, corrID, err), nil
	}
	resp := jsonResponse(http.StatusOK, corrID, chatResponse{
		Success: true,
		Message: out.Reply,
		History: outHistory,
	})
	resp.Headers["Cache-Control"] = "no-cache"
	return resp, nil
}

func (h *Handler) relayError(ctx context.Context, corrID string, err error) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		switch ucErr.Code {
		case usecase.ErrorInvalidInput:
			return jsonResponse(http.StatusBadRequest, corrID, errorResponse{Error: msgMissingMessage})
		case usecase.ErrorInvalidHistory:
			return jsonResponse(http.StatusBadRequest, corrID, errorResponse{Error: msgInvalidHistory})
		}
		return h.failureWithDescription(ctx, corrID, err, ucErr.Description())
	}
	return h.failure(ctx, corrID, err)
}

func (h *Handler) failure(ctx context.Context, corrID string, err error) events.APIGatewayProxyResponse {
	return h.failureWithDescription(ctx, corrID, err, err.Error())
}

func (h *Handler) failureWithDescription(ctx context.Context, corrID string, err error, description string) events.APIGatewayProxyResponse {
	h.logger.ErrorContext(ctx, "chat relay failed", "correlation_id", corrID, "err", err)
	return jsonResponse(http.StatusInternalServerError, corrID, errorResponse{Error: msgFailurePrefix + description})
}

func requestBody(event events.APIGatewayProxyRequest) ([]byte, error) {
	if !event.IsBase64Encoded {
		return []byte(event.Body), nil
	}
	body, err := base64.StdEncoding.DecodeString(event.Body)
	if err != nil {
		return nil, fmt.Errorf("decode base64 body: %w", err)
	}
	return body, nil
}

// decodeRequest reads the top-level body. A JSON null is a failure; any
// other non-object value carries no message and is answered with 400.
func decodeRequest(body []byte) (chatRequest, error) {
	var req chatRequest
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return req, err
	}
	raw = bytes.TrimSpace(raw)
	switch {
	case bytes.Equal(raw, []byte("null")):
		return req, errors.New("request body is null")
	case raw[0] != '{':
		return req, nil
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, err
	}
	return req, nil
}

// parseMessage accepts only a non-empty JSON string.
func parseMessage(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, s != ""
}

// parseHistory returns the entries both as messages for the provider and
// verbatim, so fields other than role and content survive the round trip.
func parseHistory(raw json.RawMessage) ([]domain.ChatMessage, []json.RawMessage, error) {
	history := []domain.ChatMessage{}
	entries := []json.RawMessage{}
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return history, entries, nil
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil, fmt.Errorf("decode history: %w", err)
	}
	history = make([]domain.ChatMessage, len(entries))
	for i, entry := range entries {
		if err := json.Unmarshal(entry, &history[i]); err != nil {
			return nil, nil, fmt.Errorf("decode history entry %d: %w", i, err)
		}
	}
	return history, entries, nil
}

// echoHistory rebuilds the response history from the caller's entries
// followed by whatever the relay appended.
func echoHistory(entries []json.RawMessage, history []domain.ChatMessage) ([]json.RawMessage, error) {
	if len(history) < len(entries) {
		return nil, errors.New("relay returned a shorter history")
	}
	out := make([]json.RawMessage, 0, len(history))
	out = append(out, entries...)
	for _, m := range history[len(entries):] {
		b, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("encode history: %w", err)
		}
		out = append(out, b)
	}
	return out, nil
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return newUUID()
}

func jsonResponse(status int, corrID string, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"` + msgFailurePrefix + `encode response"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(body),
	}
}

func textResponse(status int, corrID, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "text/plain; charset=utf-8",
			correlationHeader: corrID,
		},
		Body: body,
	}
}

// ServeHTTP adapts the proxy handler to net/http for local development. The
// body is only read for POST requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	event := events.APIGatewayProxyRequest{
		HTTPMethod: r.Method,
		Path:       r.URL.Path,
		Headers:    make(map[string]string, len(r.Header)),
	}
	for k := range r.Header {
		event.Headers[k] = r.Header.Get(k)
	}
	if r.Method == http.MethodPost {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeProxyResponse(w, h.failure(r.Context(), correlationID(event.Headers), fmt.Errorf("read body: %w", err)))
			return
		}
		event.Body = string(body)
	}

	resp, err := h.Handle(r.Context(), event)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeProxyResponse(w, resp)
}

func writeProxyResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}

var newUUID = func() string {
	return uuid.NewString()
}
