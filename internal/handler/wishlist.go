package handler

import (
	"log"
	"net/http"
	"strings"

	"famly/internal/model"
	"famly/internal/store"
	"famly/internal/websocket"
)

type WishListHandler struct {
	wishStore *store.WishListStore
	hub       *websocket.Hub
}

func NewWishListHandler(ws *store.WishListStore, hub *websocket.Hub) *WishListHandler {
	return &WishListHandler{wishStore: ws, hub: hub}
}

func (h *WishListHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type wishItemRequest struct {
	Name     string `json:"name"`
	Occasion string `json:"occasion"`
	Priority string `json:"priority"`
	OwnerID  string `json:"owner_id"`
	Link     string `json:"link"`
	Image    string `json:"image"`
	Comments string `json:"comments"`
}

func (h *WishListHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID := r.PathValue("familyID")

	var req wishItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	item, err := h.wishStore.Create(model.WishListItem{
		FamilyID: familyID,
		Name:     strings.TrimSpace(req.Name),
		Occasion: req.Occasion,
		Priority: model.Priority(strings.ToLower(strings.TrimSpace(req.Priority))),
		OwnerID:  req.OwnerID,
		Link:     req.Link,
		Image:    req.Image,
		Comments: req.Comments,
	})
	if err != nil {
		log.Printf("failed to create wish list item: %v", err)
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage(familyID, "wish_item", "created", item.ID, nil))
	writeJSON(w, http.StatusCreated, item)
}

func (h *WishListHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.wishStore.ListByFamily(r.PathValue("familyID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []model.WishListItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

type wishPatchRequest struct {
	Name     *string `json:"name"`
	Occasion *string `json:"occasion"`
	Priority *string `json:"priority"`
	Link     *string `json:"link"`
	Image    *string `json:"image"`
	Comments *string `json:"comments"`
}

func (h *WishListHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req wishPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	patch := store.WishPatch{
		Name:     req.Name,
		Occasion: req.Occasion,
		Link:     req.Link,
		Image:    req.Image,
		Comments: req.Comments,
	}
	if req.Priority != nil {
		priority := model.Priority(strings.ToLower(strings.TrimSpace(*req.Priority)))
		patch.Priority = &priority
	}

	item, err := h.wishStore.Update(r.PathValue("id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage(item.FamilyID, "wish_item", "updated", item.ID, nil))
	writeJSON(w, http.StatusOK, item)
}

func (h *WishListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	item, err := h.wishStore.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if item == nil {
		writeErrorMsg(w, http.StatusNotFound, "wish list item not found")
		return
	}

	if err := h.wishStore.Delete(id); err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage(item.FamilyID, "wish_item", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
