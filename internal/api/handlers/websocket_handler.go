package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/relay-agent/backend/internal/pipeline"
	"github.com/relay-agent/backend/pkg/logger"
)

type WebSocketHandler struct {
	pipe *pipeline.Pipeline
}

func NewWebSocketHandler(pipe *pipeline.Pipeline) *WebSocketHandler {
	return &WebSocketHandler{
		pipe: pipe,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type    string `json:"type"`
			Content string `json:"content"`
			UserID  string `json:"user_id"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "query" || msg.Content == "" {
			continue
		}

		logger.Info("Processing WebSocket query", zap.String("query", msg.Content))

		err = h.streamResponse(c, msg.Content, msg.UserID)
		if err != nil {
			logger.Error("Failed to stream response", zap.Error(err))
			h.sendError(c, "Failed to process query")
		}
	}
}

func (h *WebSocketHandler) streamResponse(c *websocket.Conn, queryText, userID string) error {
	h.sendChunk(c, "status", "Processing query...")

	result := h.pipe.Process(context.Background(), pipeline.Request{
		Query:  queryText,
		UserID: userID,
	})

	if result.Err != nil {
		return c.WriteJSON(map[string]interface{}{
			"type":       "error",
			"message_id": result.ID,
			"error":      pipeline.ErrorCode(result.Err),
		})
	}

	words := splitIntoWords(result.Response)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}

		err := h.sendChunk(c, "chunk", chunk)
		if err != nil {
			return err
		}
	}

	return h.sendComplete(c, result)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	msg := map[string]interface{}{
		"type":    msgType,
		"content": content,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, result pipeline.Result) error {
	msg := map[string]interface{}{
		"type":           "complete",
		"message_id":     result.ID,
		"classification": result.Classification,
		"evaluation":     result.Evaluation,
		"stored":         result.Stored,
		"degradations":   result.Degradations,
		"latency_ms":     result.LatencyMS,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
