package handler

import (
	"log"
	"net/http"
	"strings"

	"famly/internal/store"
)

type FamilyHandler struct {
	familyStore *store.FamilyStore
	memberStore *store.MemberStore
}

func NewFamilyHandler(fs *store.FamilyStore, ms *store.MemberStore) *FamilyHandler {
	return &FamilyHandler{familyStore: fs, memberStore: ms}
}

type createFamilyRequest struct {
	Name       string `json:"name"`
	AdminName  string `json:"admin_name"`
	AdminColor string `json:"admin_color"`
}

// Create makes a new family together with its first (admin) member.
func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createFamilyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.AdminName = strings.TrimSpace(req.AdminName)
	if req.Name == "" || req.AdminName == "" {
		writeErrorMsg(w, http.StatusBadRequest, "name and admin_name are required")
		return
	}

	family, err := h.familyStore.Create(req.Name)
	if err != nil {
		log.Printf("failed to create family: %v", err)
		writeError(w, err)
		return
	}

	admin, err := h.memberStore.Create(family.ID, req.AdminName, "", req.AdminColor, true)
	if err != nil {
		log.Printf("failed to create admin member: %v", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"family": family,
		"member": admin,
	})
}

func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	family, err := h.familyStore.GetByID(r.PathValue("familyID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if family == nil {
		writeErrorMsg(w, http.StatusNotFound, "family not found")
		return
	}
	writeJSON(w, http.StatusOK, family)
}

type joinFamilyRequest struct {
	JoinCode string `json:"join_code"`
	Name     string `json:"name"`
	Color    string `json:"color"`
}

// Join attaches a new member to an existing family by join code.
func (h *FamilyHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinFamilyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.JoinCode == "" || req.Name == "" {
		writeErrorMsg(w, http.StatusBadRequest, "join_code and name are required")
		return
	}

	family, err := h.familyStore.GetByJoinCode(strings.ToUpper(strings.TrimSpace(req.JoinCode)))
	if err != nil {
		writeError(w, err)
		return
	}
	if family == nil {
		writeErrorMsg(w, http.StatusNotFound, "no family with that join code")
		return
	}

	member, err := h.memberStore.Create(family.ID, req.Name, "", req.Color, false)
	if err != nil {
		log.Printf("failed to join family: %v", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"family": family,
		"member": member,
	})
}

type renameFamilyRequest struct {
	Name string `json:"name"`
}

func (h *FamilyHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameFamilyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeErrorMsg(w, http.StatusBadRequest, "name is required")
		return
	}

	family, err := h.familyStore.Rename(r.PathValue("familyID"), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, family)
}
