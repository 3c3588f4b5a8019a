package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/harun/agentgate/internal/tracing"
	"github.com/harun/agentgate/pkg/conversation"
	"github.com/xeipuuv/gojsonschema"
)

const (
	internalError   = "Internal server error"
	maxChatBodySize = 1 << 20
)

// chatRequestSchema validates POST /chat bodies
const chatRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["message"],
  "properties": {
    "message": {"type": "string", "minLength": 1}
  }
}`

var chatSchemaLoader = gojsonschema.NewStringLoader(chatRequestSchema)

type errorBody struct {
	Detail string `json:"detail"`
}

type chatRequest struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.agent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(r)
	if !ok {
		writeJSON(w, http.StatusOK, []conversation.Message{})
		return
	}

	ctx := tracing.WithSessionID(r.Context(), id)
	messages, err := s.chat.History(ctx, id)
	if err != nil {
		logger := tracing.LoggerFromContext(ctx, s.logger)
		logger.Error().Err(err).Msg("Failed to load chat history")
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: internalError})
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	logger := tracing.LoggerFromContext(r.Context(), s.logger)

	req, err := decodeChatRequest(w, r)
	if err != nil {
		logger.Debug().Err(err).Msg("Rejected chat request")
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: err.Error()})
		return
	}

	id, err := s.ensureSession(w, r)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to issue session")
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: internalError})
		return
	}

	ctx := tracing.WithAgentID(tracing.WithSessionID(r.Context(), id), s.agent.ID)
	logger = tracing.LoggerFromContext(ctx, s.logger)

	stream, err := s.chat.Send(ctx, s.agent.ID, id, req.Message)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to start chat")
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: internalError})
		return
	}
	defer stream.Close()

	// Pull the first chunk before committing to a 200
	more := stream.Next()
	if !more && stream.Err() != nil && ctx.Err() == nil {
		logger.Error().Err(stream.Err()).Msg("Chat stream failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: internalError})
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	_ = rc.Flush()

	for ; more; more = stream.Next() {
		if err := writeEvent(w, stream.Current()); err != nil {
			logger.Debug().Err(err).Msg("Client went away")
			return
		}
		_ = rc.Flush()
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			logger.Debug().Err(err).Msg("Chat stream cancelled by client")
			return
		}
		logger.Error().Err(err).Msg("Chat stream failed")
		_ = writeEvent(w, map[string]string{"error": internalError})
		_ = rc.Flush()
	}
}

// writeEvent writes one server-sent event carrying v as JSON
func writeEvent(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatRequest, error) {
	var req chatRequest

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChatBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return req, fmt.Errorf("failed to read request body: %w", err)
	}

	result, err := gojsonschema.Validate(chatSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return req, fmt.Errorf("invalid JSON body")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return req, fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
	}

	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("invalid JSON body")
	}
	return req, nil
}
