package handler

import (
	"log"
	"net/http"
	"strings"
	"time"

	"famly/internal/model"
	"famly/internal/push"
	"famly/internal/shopping"
	"famly/internal/store"
	"famly/internal/websocket"
)

type ShoppingHandler struct {
	shoppingStore *store.ShoppingStore
	hub           *websocket.Hub
	notifier      *push.Scheduler
}

func NewShoppingHandler(ss *store.ShoppingStore, hub *websocket.Hub, notifier *push.Scheduler) *ShoppingHandler {
	return &ShoppingHandler{shoppingStore: ss, hub: hub, notifier: notifier}
}

func (h *ShoppingHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type shoppingItemRequest struct {
	Name     string `json:"name"`
	Urgency  string `json:"urgency"`
	NeededBy string `json:"needed_by"`
	AddedBy  string `json:"added_by"`
	Link     string `json:"link"`
	Image    string `json:"image"`
	Comments string `json:"comments"`
}

func (h *ShoppingHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID := r.PathValue("familyID")

	var req shoppingItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var neededBy *time.Time
	if req.NeededBy != "" {
		parsed, err := parseFlexibleTime(req.NeededBy)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "needed_by must be RFC3339 or YYYY-MM-DD format")
			return
		}
		neededBy = &parsed
	}

	urgency := model.Urgency(strings.ToLower(strings.TrimSpace(req.Urgency)))
	if urgency == "" {
		// No caller preference: suggest from the item itself.
		urgency = shopping.SuggestUrgency(req.Name, neededBy, time.Now())
	}

	item, err := h.shoppingStore.Create(model.ShoppingItem{
		FamilyID: familyID,
		Name:     strings.TrimSpace(req.Name),
		Urgency:  urgency,
		NeededBy: neededBy,
		AddedBy:  req.AddedBy,
		Link:     req.Link,
		Image:    req.Image,
		Comments: req.Comments,
	})
	if err != nil {
		log.Printf("failed to create shopping item: %v", err)
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage(familyID, "shopping_item", "created", item.ID, map[string]any{
		"urgency": string(item.Urgency),
	}))
	if h.notifier != nil {
		go h.notifier.SendShoppingNotification(familyID, item.AddedBy, *item)
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *ShoppingHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.shoppingStore.ListByFamily(r.PathValue("familyID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []model.ShoppingItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

type shoppingPatchRequest struct {
	Name          *string `json:"name"`
	Urgency       *string `json:"urgency"`
	NeededBy      *string `json:"needed_by"`
	ClearNeededBy bool    `json:"clear_needed_by"`
	Link          *string `json:"link"`
	Image         *string `json:"image"`
	Comments      *string `json:"comments"`
}

func (h *ShoppingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req shoppingPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	patch := store.ShoppingPatch{
		Name:          req.Name,
		ClearNeededBy: req.ClearNeededBy,
		Link:          req.Link,
		Image:         req.Image,
		Comments:      req.Comments,
	}
	if req.Urgency != nil {
		urgency := model.Urgency(strings.ToLower(strings.TrimSpace(*req.Urgency)))
		patch.Urgency = &urgency
	}
	if req.NeededBy != nil {
		parsed, err := parseFlexibleTime(*req.NeededBy)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "needed_by must be RFC3339 or YYYY-MM-DD format")
			return
		}
		patch.NeededBy = &parsed
	}

	item, err := h.shoppingStore.Update(r.PathValue("id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage(item.FamilyID, "shopping_item", "updated", item.ID, nil))
	writeJSON(w, http.StatusOK, item)
}

func (h *ShoppingHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	item, err := h.shoppingStore.ToggleCompleted(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	action := "unchecked"
	if item.IsCompleted {
		action = "checked"
	}
	h.broadcast(websocket.NewMessage(item.FamilyID, "shopping_item", action, item.ID, nil))
	writeJSON(w, http.StatusOK, item)
}

func (h *ShoppingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	item, err := h.shoppingStore.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if item == nil {
		writeErrorMsg(w, http.StatusNotFound, "shopping item not found")
		return
	}

	if err := h.shoppingStore.Delete(id); err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage(item.FamilyID, "shopping_item", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// ClearCompleted removes every bought item from the family's list.
func (h *ShoppingHandler) ClearCompleted(w http.ResponseWriter, r *http.Request) {
	familyID := r.PathValue("familyID")

	n, err := h.shoppingStore.ClearCompleted(familyID)
	if err != nil {
		writeError(w, err)
		return
	}

	if n > 0 {
		h.broadcast(websocket.NewMessage(familyID, "shopping_item", "cleared", "", map[string]any{
			"count": n,
		}))
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}
