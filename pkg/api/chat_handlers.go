package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"scrivener/pkg/chat"
	"scrivener/pkg/llm"

	"github.com/google/uuid"
)

type chatSuggestRequest struct {
	Context string `json:"context"`
}

type chatSuggestResponse struct {
	Questions []string `json:"questions"`
}

func (s *Server) handleChatSuggest(w http.ResponseWriter, r *http.Request) {
	var req chatSuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	client := s.currentClient()
	chunks, err := client.StreamChat(ctx, []llm.Message{llm.NewUserMessage(chat.BuildSuggestPrompt(req.Context))})
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	var sb strings.Builder
	for c := range chunks {
		for _, b := range c.ContentBlocks {
			if b.Type == llm.BlockTypeText {
				sb.WriteString(b.Text)
			}
		}
	}

	writeJSON(w, http.StatusOK, chatSuggestResponse{Questions: chat.ParseSuggestions(sb.String())})
}

type chatInbound struct {
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	Context        string `json:"context,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// handleChatWS implements the chat websocket (spec §6): ping/pong
// keepalive and one streamed reply per chat_message.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	safe := newSafeConn(conn)
	defer safe.Close()

	systemPrompt := s.systemPrompt()

	for {
		var in chatInbound
		if err := conn.ReadJSON(&in); err != nil {
			return
		}

		switch in.Type {
		case "ping":
			_ = safe.WriteJSON(map[string]string{"type": "pong"})

		case "chat_message":
			s.streamChatReply(r.Context(), safe, systemPrompt, in)

		default:
			_ = safe.WriteJSON(map[string]string{"type": "chat_error", "error": "unknown message type"})
		}
	}
}

func (s *Server) systemPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.SystemPrompt
}

func (s *Server) streamChatReply(ctx context.Context, safe *safeConn, systemPrompt string, in chatInbound) {
	conversationID := in.ConversationID
	if conversationID == "" {
		// The client omitted a conversation id (first turn); mint one so
		// subsequent turns on this socket can correlate replies.
		conversationID = uuid.NewString()
	}

	client := s.currentClient()
	messages := chat.BuildMessages(systemPrompt, in.Context, in.Content)

	chunks, err := client.StreamChat(ctx, messages)
	if err != nil {
		_ = safe.WriteJSON(map[string]string{"type": "chat_error", "error": err.Error(), "conversationId": conversationID})
		return
	}

	for c := range chunks {
		for _, b := range c.ContentBlocks {
			if b.Type == llm.BlockTypeText && b.Text != "" {
				if err := safe.WriteJSON(map[string]string{"type": "chat_chunk", "content": b.Text, "conversationId": conversationID}); err != nil {
					return
				}
			}
		}
		if c.IsFinal {
			_ = safe.WriteJSON(map[string]string{"type": "chat_done", "conversationId": conversationID})
		}
	}
}
