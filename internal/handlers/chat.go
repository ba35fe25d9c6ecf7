package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"chat-relay/internal/llm"
	"chat-relay/pkg/logging"
)

// MsgNoMessage is returned with 400 whenever the body carries no usable message.
const MsgNoMessage = "No message found"

// MsgBodyTooLarge is returned with 413 when the body exceeds the configured cap.
const MsgBodyTooLarge = "request body too large"

var errBodyTooLarge = errors.New("request body too large")

// ChatHandler holds dependencies for the /api/chat endpoint.
type ChatHandler struct {
	Client llm.Client
}

func NewChatHandler(client llm.Client) *ChatHandler {
	return &ChatHandler{Client: client}
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	logger.Info("chat request received")

	req, err := decodeChatRequest(r.Body)
	switch {
	case errors.Is(err, errBodyTooLarge):
		logger.Warn("rejecting oversized chat request", zap.Error(err))
		writeError(w, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
		return
	case err != nil:
		logger.Warn("rejecting chat request", zap.Error(err))
		writeError(w, http.StatusBadRequest, MsgNoMessage)
		return
	}

	logger.Info("received message", zap.String("message", req.Message))

	text, err := h.Client.Generate(ctx, req.Message)
	if err != nil {
		fields := []zap.Field{
			zap.Error(err),
			zap.Duration("total_latency", time.Since(start)),
			zap.Stack("stack"),
		}
		var upErr *llm.UpstreamError
		if errors.As(err, &upErr) && upErr.StatusCode != 0 {
			fields = append(fields, zap.Int("upstream_status", upErr.StatusCode))
		}
		logger.Error("error in chat endpoint", fields...)

		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("generated response",
		zap.String("response", text),
		zap.Duration("total_latency", time.Since(start)),
	)

	writeJSON(w, http.StatusOK, ChatResponse{Response: text})
}

// Preflight handles OPTIONS /api/chat. CORS headers come from the middleware;
// the inference client is never touched.
func (h *ChatHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	logging.L(r.Context()).Info("chat preflight")
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// decodeChatRequest accepts exactly one JSON object whose "message" is a
// non-blank string. Hitting the MaxBytesReader cap yields errBodyTooLarge.
func decodeChatRequest(body io.Reader) (ChatRequest, error) {
	var req ChatRequest
	if body == nil {
		return req, errors.New("empty body")
	}

	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		if maxErr := new(http.MaxBytesError); errors.As(err, &maxErr) {
			return req, fmt.Errorf("%w: limit %d bytes", errBodyTooLarge, maxErr.Limit)
		}
		if errors.Is(err, io.EOF) {
			return req, errors.New("empty body")
		}
		return req, fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return req, errors.New("invalid JSON: trailing data after object")
	}

	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}
