package push

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"famly/internal/ident"
	"famly/internal/model"
	"famly/internal/store"
)

// reminderLead is how far ahead of an event's start the reminder goes
// out. Each event gets at most one reminder, to its involved members.
const reminderLead = 15 * time.Minute

// Scheduler periodically checks for event reminders to send.
type Scheduler struct {
	mu       sync.RWMutex
	service  *Service
	push     *store.PushStore
	events   *store.EventStore
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a reminder scheduler.
func NewScheduler(svc *Service, pushStore *store.PushStore, eventStore *store.EventStore) *Scheduler {
	return &Scheduler{
		service:  svc,
		push:     pushStore,
		events:   eventStore,
		interval: 60 * time.Second,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(time.Now())
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(now time.Time) {
	if !s.service.Configured() {
		return
	}

	events, err := s.events.ListStartingBetween(now.UTC(), now.UTC().Add(reminderLead))
	if err != nil {
		log.Printf("push scheduler: upcoming events: %v", err)
		return
	}

	for _, event := range events {
		s.remind(event)
	}
}

func (s *Scheduler) remind(event model.CalendarEvent) {
	refID := "reminder:" + event.ID

	sent, err := s.push.WasSent(event.FamilyID, refID)
	if err != nil {
		log.Printf("push scheduler: check sent: %v", err)
		return
	}
	if sent {
		return
	}

	// Reminders go to the people the event involves, not the whole
	// family.
	targets := event.MemberIDs
	if event.CreatedBy != "" {
		targets = append(targets, event.CreatedBy)
	}
	subs, err := s.push.ListByMembers(targets)
	if err != nil {
		log.Printf("push scheduler: list subs: %v", err)
		return
	}

	minutes := int(time.Until(event.Start).Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	payload := Payload{
		Title: "Upcoming Event",
		Body:  fmt.Sprintf("%s starts at %s (in %d min)", event.Title, ident.FormatTime(event.Start), minutes),
		URL:   "/calendar",
		Tag:   "calendar-" + event.ID,
	}

	for _, sub := range subs {
		if err := s.service.Send(&sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				s.push.DeleteByEndpoint(sub.Endpoint)
			} else {
				log.Printf("push scheduler: send reminder: %v", err)
			}
		}
	}

	if err := s.push.RecordSent(event.FamilyID, refID); err != nil {
		log.Printf("push scheduler: record sent: %v", err)
	}
}

// SendShoppingNotification tells the rest of the family about a newly
// added urgent shopping item. Called from the shopping handler, not
// from the scheduler.
func (s *Scheduler) SendShoppingNotification(familyID, excludeMemberID string, item model.ShoppingItem) {
	if !s.service.Configured() || item.Urgency == model.UrgencyNormal {
		return
	}

	subs, err := s.push.ListByFamily(familyID)
	if err != nil {
		log.Printf("push: shopping notification list subs: %v", err)
		return
	}

	payload := Payload{
		Title: "Shopping List Updated",
		Body:  fmt.Sprintf("%s was added to the shopping list (%s)", item.Name, item.Urgency),
		URL:   "/shopping",
		Tag:   "shopping-added",
	}

	for _, sub := range subs {
		if sub.MemberID == excludeMemberID {
			continue
		}
		if err := s.service.Send(&sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				s.push.DeleteByEndpoint(sub.Endpoint)
			} else {
				log.Printf("push: send shopping notification: %v", err)
			}
		}
	}
}
