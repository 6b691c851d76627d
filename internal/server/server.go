// Package server wires the stores, handlers, and background services
// together and owns the HTTP route table.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"famly/internal/assistant"
	"famly/internal/backup"
	"famly/internal/chat"
	"famly/internal/handler"
	"famly/internal/middleware"
	"famly/internal/push"
	"famly/internal/store"
	ws "famly/internal/websocket"
)

// Config carries everything the server needs beyond the database: the
// completion service credentials, VAPID keys for web push, and the
// backup destination.
type Config struct {
	Assistant       assistant.Config
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Backup          backup.Config
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	familyH       *handler.FamilyHandler
	memberH       *handler.MemberHandler
	eventH        *handler.EventHandler
	shoppingH     *handler.ShoppingHandler
	wishListH     *handler.WishListHandler
	chatH         *handler.ChatHandler
	pushH         *handler.PushHandler
	backupH       *handler.BackupHandler
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	pushScheduler *push.Scheduler
	logger        *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	familyStore := store.NewFamilyStore(db)
	memberStore := store.NewMemberStore(db)
	eventStore := store.NewEventStore(db)
	shoppingStore := store.NewShoppingStore(db)
	wishListStore := store.NewWishListStore(db)
	pushStore := store.NewPushStore(db)

	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	pushSched := push.NewScheduler(pushSvc, pushStore, eventStore)

	completer := assistant.NewClient(cfg.Assistant)
	chatCtrl := chat.NewController(completer, eventStore, memberStore, logger.With("component", "chat"))

	backupMgr := backup.NewManager(cfg.Backup, db, func(s backup.Status) {
		hub.Broadcast(ws.Message{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(s.State),
			Extra: map[string]any{
				"in_progress": s.InProgress,
				"error":       s.Error,
			},
		})
	})

	return &Server{
		db:            db,
		hub:           hub,
		familyH:       handler.NewFamilyHandler(familyStore, memberStore),
		memberH:       handler.NewMemberHandler(memberStore, hub),
		eventH:        handler.NewEventHandler(eventStore, memberStore, hub),
		shoppingH:     handler.NewShoppingHandler(shoppingStore, hub, pushSched),
		wishListH:     handler.NewWishListHandler(wishListStore, hub),
		chatH:         handler.NewChatHandler(chatCtrl, hub),
		pushH:         handler.NewPushHandler(pushSvc, pushStore),
		backupH:       handler.NewBackupHandler(backupMgr),
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		pushScheduler: pushSched,
		logger:        logger,
	}
}

// BackupManager returns the backup manager so main can run its schedule loop.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// PushScheduler returns the event reminder scheduler.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

// RateLimiter returns the rate limiter for periodic cleanup.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Family lifecycle
	mux.HandleFunc("POST /api/families", s.familyH.Create)
	mux.HandleFunc("POST /api/families/join", s.familyH.Join)
	mux.HandleFunc("GET /api/families/{familyID}", s.familyH.Get)
	mux.HandleFunc("PATCH /api/families/{familyID}", s.familyH.Rename)

	// Members
	mux.HandleFunc("POST /api/families/{familyID}/members", s.memberH.Create)
	mux.HandleFunc("GET /api/families/{familyID}/members", s.memberH.List)
	mux.HandleFunc("GET /api/members/{id}", s.memberH.Get)
	mux.HandleFunc("PUT /api/members/{id}", s.memberH.Update)
	mux.HandleFunc("DELETE /api/members/{id}", s.memberH.Delete)
	mux.HandleFunc("POST /api/members/{id}/pin", s.memberH.SetPIN)
	mux.HandleFunc("POST /api/members/{id}/pin/verify", s.memberH.VerifyPIN)
	mux.HandleFunc("DELETE /api/members/{id}/pin", s.memberH.ClearPIN)

	// Calendar
	mux.HandleFunc("POST /api/families/{familyID}/events", s.eventH.Create)
	mux.HandleFunc("GET /api/families/{familyID}/events", s.eventH.List)
	mux.HandleFunc("GET /api/events/{id}", s.eventH.Get)
	mux.HandleFunc("PUT /api/events/{id}", s.eventH.Update)
	mux.HandleFunc("DELETE /api/events/{id}", s.eventH.Delete)
	mux.HandleFunc("POST /api/events/{id}/toggle", s.eventH.Toggle)
	mux.HandleFunc("POST /api/events/{id}/voice-notes", s.eventH.AddVoiceNote)
	mux.HandleFunc("GET /api/families/{familyID}/progress", s.eventH.Progress)
	mux.HandleFunc("GET /api/families/{familyID}/calendar.ics", s.eventH.ExportICS)
	mux.HandleFunc("POST /api/families/{familyID}/calendar/import", s.eventH.ImportICS)

	// Shopping list
	mux.HandleFunc("POST /api/families/{familyID}/shopping", s.shoppingH.Create)
	mux.HandleFunc("GET /api/families/{familyID}/shopping", s.shoppingH.List)
	mux.HandleFunc("POST /api/families/{familyID}/shopping/clear-completed", s.shoppingH.ClearCompleted)
	mux.HandleFunc("PUT /api/shopping/{id}", s.shoppingH.Update)
	mux.HandleFunc("POST /api/shopping/{id}/toggle", s.shoppingH.Toggle)
	mux.HandleFunc("DELETE /api/shopping/{id}", s.shoppingH.Delete)

	// Wish lists
	mux.HandleFunc("POST /api/families/{familyID}/wishlist", s.wishListH.Create)
	mux.HandleFunc("GET /api/families/{familyID}/wishlist", s.wishListH.List)
	mux.HandleFunc("PUT /api/wishlist/{id}", s.wishListH.Update)
	mux.HandleFunc("DELETE /api/wishlist/{id}", s.wishListH.Delete)

	// Chat assistant. Sends hit the completion service, so they are
	// rate limited per client IP.
	mux.HandleFunc("POST /api/families/{familyID}/chat", s.rateLimitedHandler(s.chatH.Send))
	mux.HandleFunc("GET /api/families/{familyID}/chat", s.chatH.Transcript)
	mux.HandleFunc("POST /api/families/{familyID}/chat/reset", s.chatH.Reset)

	// Push notifications
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	mux.HandleFunc("POST /api/families/{familyID}/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscribe", s.pushH.Unsubscribe)

	// Backups
	mux.HandleFunc("GET /api/backup/status", s.backupH.Status)
	mux.HandleFunc("POST /api/backup/run", s.backupH.RunNow)
	mux.HandleFunc("GET /api/backup", s.backupH.List)
	mux.HandleFunc("GET /api/backup/download", s.backupH.Download)
	mux.HandleFunc("POST /api/backup/restore", s.backupH.Restore)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
