package handler

import (
	"errors"
	"log"
	"net/http"

	"famly/internal/chat"
	"famly/internal/websocket"
)

type ChatHandler struct {
	controller *chat.Controller
	hub        *websocket.Hub
}

func NewChatHandler(c *chat.Controller, hub *websocket.Hub) *ChatHandler {
	return &ChatHandler{controller: c, hub: hub}
}

type chatSendRequest struct {
	Message      string `json:"message"`
	DocumentText string `json:"document_text"`
}

// Send runs one assistant turn. A turn already in flight for the family
// yields 409.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	familyID := r.PathValue("familyID")

	var req chatSendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := h.controller.Send(r.Context(), familyID, req.Message, req.DocumentText)
	if err != nil {
		if errors.Is(err, chat.ErrBusy) {
			writeErrorMsg(w, http.StatusConflict, "a message is already being processed")
			return
		}
		log.Printf("chat send failed: %v", err)
		writeError(w, err)
		return
	}
	if result == nil {
		// Session was reset while the turn was in flight.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if len(result.Applied) > 0 && h.hub != nil {
		h.hub.Broadcast(websocket.NewMessage(familyID, "calendar", "refreshed", "", map[string]any{
			"commands": len(result.Applied),
		}))
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ChatHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Transcript(r.PathValue("familyID")))
}

func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.controller.Reset(r.PathValue("familyID"))
	w.WriteHeader(http.StatusNoContent)
}
