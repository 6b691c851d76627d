package handler

import (
	"log"
	"net/http"
	"strings"

	"famly/internal/model"
	"famly/internal/store"
	"famly/internal/websocket"
)

type MemberHandler struct {
	memberStore *store.MemberStore
	hub         *websocket.Hub
}

func NewMemberHandler(ms *store.MemberStore, hub *websocket.Hub) *MemberHandler {
	return &MemberHandler{memberStore: ms, hub: hub}
}

func (h *MemberHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type memberRequest struct {
	Name    string `json:"name"`
	Avatar  string `json:"avatar"`
	Color   string `json:"color"`
	IsAdmin bool   `json:"is_admin"`
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID := r.PathValue("familyID")

	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeErrorMsg(w, http.StatusBadRequest, "name is required")
		return
	}

	member, err := h.memberStore.Create(familyID, req.Name, req.Avatar, req.Color, req.IsAdmin)
	if err != nil {
		log.Printf("failed to create member: %v", err)
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage(familyID, "member", "created", member.ID, nil))
	writeJSON(w, http.StatusCreated, member)
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.memberStore.ListByFamily(r.PathValue("familyID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	member, err := h.memberStore.GetByID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if member == nil {
		writeErrorMsg(w, http.StatusNotFound, "member not found")
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeErrorMsg(w, http.StatusBadRequest, "name is required")
		return
	}

	member, err := h.memberStore.Update(r.PathValue("id"), req.Name, req.Avatar, req.Color, req.IsAdmin)
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage(member.FamilyID, "member", "updated", member.ID, nil))
	writeJSON(w, http.StatusOK, member)
}

func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	member, err := h.memberStore.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if member == nil {
		writeErrorMsg(w, http.StatusNotFound, "member not found")
		return
	}

	if err := h.memberStore.Delete(id); err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage(member.FamilyID, "member", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

type pinRequest struct {
	PIN string `json:"pin"`
}

func (h *MemberHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.memberStore.SetPIN(r.PathValue("id"), req.PIN); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pin set"})
}

func (h *MemberHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ok, err := h.memberStore.VerifyPIN(r.PathValue("id"), req.PIN)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeErrorMsg(w, http.StatusForbidden, "incorrect PIN")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

func (h *MemberHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	if err := h.memberStore.ClearPIN(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pin cleared"})
}
