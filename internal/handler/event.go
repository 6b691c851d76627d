package handler

import (
	"encoding/base64"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"famly/internal/agenda"
	"famly/internal/ics"
	"famly/internal/model"
	"famly/internal/store"
	"famly/internal/websocket"
)

type EventHandler struct {
	eventStore  *store.EventStore
	memberStore *store.MemberStore
	hub         *websocket.Hub
}

func NewEventHandler(es *store.EventStore, ms *store.MemberStore, hub *websocket.Hub) *EventHandler {
	return &EventHandler{eventStore: es, memberStore: ms, hub: hub}
}

func (h *EventHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type eventRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Category    string   `json:"category"`
	MemberIDs   []string `json:"member_ids"`
	CreatedBy   string   `json:"created_by"`
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID := r.PathValue("familyID")

	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeErrorMsg(w, http.StatusBadRequest, "title is required")
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "start must be RFC3339 format")
		return
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		end = start.Add(time.Hour)
	}
	if !start.Before(end) {
		end = start.Add(time.Hour)
	}

	event, err := h.eventStore.Create(model.CalendarEvent{
		FamilyID:    familyID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Start:       start,
		End:         end,
		Category:    model.ParseCategory(req.Category, model.CategoryFamily),
		MemberIDs:   req.MemberIDs,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		log.Printf("failed to create event: %v", err)
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage(familyID, "calendar_event", "created", event.ID, nil))
	writeJSON(w, http.StatusCreated, event)
}

// List returns the family's events, optionally narrowed by the filter
// query parameters: keyword, date, time, member_id.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.eventStore.ListByFamily(r.PathValue("familyID"))
	if err != nil {
		writeError(w, err)
		return
	}

	q := agenda.Query{
		Keyword:  r.URL.Query().Get("keyword"),
		Time:     r.URL.Query().Get("time"),
		MemberID: r.URL.Query().Get("member_id"),
	}
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		date, err := parseFlexibleTime(dateStr)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "date must be RFC3339 or YYYY-MM-DD format")
			return
		}
		q.Date = &date
	}

	events = agenda.Filter(events, q)
	if events == nil {
		events = []model.CalendarEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.eventStore.GetByID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if event == nil {
		writeErrorMsg(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

type eventPatchRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Location    *string  `json:"location"`
	Start       *string  `json:"start"`
	End         *string  `json:"end"`
	Category    *string  `json:"category"`
	MemberIDs   []string `json:"member_ids"`
	IsCompleted *bool    `json:"is_completed"`
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req eventPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	patch := model.EventPatch{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		MemberIDs:   req.MemberIDs,
		IsCompleted: req.IsCompleted,
	}
	if req.Start != nil {
		start, err := time.Parse(time.RFC3339, *req.Start)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "start must be RFC3339 format")
			return
		}
		patch.Start = &start
	}
	if req.End != nil {
		end, err := time.Parse(time.RFC3339, *req.End)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "end must be RFC3339 format")
			return
		}
		patch.End = &end
	}
	if req.Category != nil {
		category := model.ParseCategory(*req.Category, model.CategoryOther)
		patch.Category = &category
	}

	event, err := h.eventStore.Update(r.PathValue("id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage(event.FamilyID, "calendar_event", "updated", event.ID, nil))
	writeJSON(w, http.StatusOK, event)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	event, err := h.eventStore.GetByID(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if event == nil {
		writeErrorMsg(w, http.StatusNotFound, "event not found")
		return
	}

	if err := h.eventStore.Delete(id); err != nil {
		writeError(w, err)
		return
	}

	h.broadcast(websocket.NewMessage(event.FamilyID, "calendar_event", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

type toggleRequest struct {
	MemberID string `json:"member_id"`
}

// Toggle flips an event's completion on behalf of a member. Completing
// awards points, so the response carries the refreshed event.
func (h *EventHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.MemberID == "" {
		writeErrorMsg(w, http.StatusBadRequest, "member_id is required")
		return
	}

	event, awarded, err := h.eventStore.ToggleCompleted(r.PathValue("id"), req.MemberID)
	if err != nil {
		writeError(w, err)
		return
	}

	action := "reopened"
	if event.IsCompleted {
		action = "completed"
	}
	h.broadcast(websocket.NewMessage(event.FamilyID, "calendar_event", action, event.ID, nil))
	if awarded {
		h.broadcast(websocket.NewMessage(event.FamilyID, "member", "points_awarded", req.MemberID, nil))
	}
	writeJSON(w, http.StatusOK, event)
}

type voiceNoteRequest struct {
	Data     string  `json:"data"` // base64 audio payload
	Duration float64 `json:"duration"`
	AuthorID string  `json:"author_id"`
}

func (h *EventHandler) AddVoiceNote(w http.ResponseWriter, r *http.Request) {
	var req voiceNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "data must be base64")
		return
	}

	note, err := h.eventStore.AddVoiceNote(r.PathValue("id"), data, req.Duration, req.AuthorID)
	if err != nil {
		writeError(w, err)
		return
	}

	event, err := h.eventStore.GetByID(note.EventID)
	if err == nil && event != nil {
		h.broadcast(websocket.NewMessage(event.FamilyID, "calendar_event", "updated", event.ID, nil))
	}
	writeJSON(w, http.StatusCreated, note)
}

// Progress reports a member's completion stats for one day.
func (h *EventHandler) Progress(w http.ResponseWriter, r *http.Request) {
	memberID := r.URL.Query().Get("member_id")
	day := time.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := parseFlexibleTime(dateStr)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "date must be RFC3339 or YYYY-MM-DD format")
			return
		}
		day = parsed
	}

	events, err := h.eventStore.ListByFamily(r.PathValue("familyID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, agenda.DayProgress(events, memberID, day))
}

// ExportICS streams the family's calendar as an iCalendar document.
func (h *EventHandler) ExportICS(w http.ResponseWriter, r *http.Request) {
	events, err := h.eventStore.ListByFamily(r.PathValue("familyID"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="famly.ics"`)
	w.Write(ics.Export(events))
}

// ImportICS parses an uploaded iCalendar document and creates its
// events on the family calendar.
func (h *EventHandler) ImportICS(w http.ResponseWriter, r *http.Request) {
	familyID := r.PathValue("familyID")

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "failed to read body")
		return
	}

	imported, err := ics.Import(data)
	if err != nil {
		writeError(w, err)
		return
	}

	created := make([]model.CalendarEvent, 0, len(imported))
	for _, ie := range imported {
		event, err := h.eventStore.Create(model.CalendarEvent{
			FamilyID:    familyID,
			Title:       ie.Title,
			Description: ie.Description,
			Location:    ie.Location,
			Start:       ie.Start,
			End:         ie.End,
			Category:    ie.Category,
		})
		if err != nil {
			log.Printf("failed to import event %q: %v", ie.Title, err)
			continue
		}
		created = append(created, *event)
	}

	if len(created) > 0 {
		h.broadcast(websocket.NewMessage(familyID, "calendar_event", "imported", "", map[string]any{
			"count": len(created),
		}))
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"imported": len(created),
		"events":   created,
	})
}
