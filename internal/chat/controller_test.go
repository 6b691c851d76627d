package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"famly/internal/apperr"
	"famly/internal/assistant"
	"famly/internal/database"
	"famly/internal/model"
	"famly/internal/store"
)

// fakeCompleter returns a scripted reply, optionally blocking until
// released so tests can hold a turn in flight.
type fakeCompleter struct {
	mu    sync.Mutex
	reply *assistant.Reply
	err   error
	block chan struct{}
	turns []assistant.Turn
}

func (f *fakeCompleter) Generate(_ context.Context, turn assistant.Turn) (*assistant.Reply, error) {
	f.mu.Lock()
	f.turns = append(f.turns, turn)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.reply, f.err
}

func (f *fakeCompleter) lastTurn(t *testing.T) assistant.Turn {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.turns) == 0 {
		t.Fatal("no turns recorded")
	}
	return f.turns[len(f.turns)-1]
}

type chatTestEnv struct {
	controller *Controller
	completer  *fakeCompleter
	events     *store.EventStore
	familyID   string
	mom        *model.Member
	mia        *model.Member
}

func setupChatTest(t *testing.T) *chatTestEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f, err := store.NewFamilyStore(db).Create("Test Family")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	ms := store.NewMemberStore(db)
	mom, err := ms.Create(f.ID, "Mom", "", "rose", true)
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	mia, err := ms.Create(f.ID, "Mia", "", "violet", false)
	if err != nil {
		t.Fatalf("create member: %v", err)
	}

	es := store.NewEventStore(db)
	fc := &fakeCompleter{reply: &assistant.Reply{Text: "Hello!"}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &chatTestEnv{
		controller: NewController(fc, es, ms, logger),
		completer:  fc,
		events:     es,
		familyID:   f.ID,
		mom:        mom,
		mia:        mia,
	}
}

func TestSendAppendsBothSides(t *testing.T) {
	env := setupChatTest(t)

	res, err := env.controller.Send(context.Background(), env.familyID, "What's on today?", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Message.Text != "Hello!" {
		t.Errorf("reply = %q, want %q", res.Message.Text, "Hello!")
	}
	if res.Message.Role != model.RoleModel {
		t.Errorf("role = %q, want %q", res.Message.Role, model.RoleModel)
	}

	transcript := env.controller.Transcript(env.familyID)
	if len(transcript) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(transcript))
	}
	if transcript[0].Role != model.RoleUser || transcript[0].Text != "What's on today?" {
		t.Errorf("transcript[0] = %+v, want user message", transcript[0])
	}
}

func TestSendCarriesScheduleContext(t *testing.T) {
	env := setupChatTest(t)

	if _, err := env.events.Create(model.CalendarEvent{
		FamilyID: env.familyID,
		Title:    "Soccer Practice",
		Start:    time.Now(),
		End:      time.Now().Add(time.Hour),
		Category: model.CategoryFun,
	}); err != nil {
		t.Fatalf("create event: %v", err)
	}

	if _, err := env.controller.Send(context.Background(), env.familyID, "hi", ""); err != nil {
		t.Fatalf("send: %v", err)
	}

	turn := env.completer.lastTurn(t)
	if len(turn.Events) != 1 || turn.Events[0].Title != "Soccer Practice" {
		t.Errorf("turn events = %v, want Soccer Practice", turn.Events)
	}
	if len(turn.Members) != 2 {
		t.Errorf("turn members = %d, want 2", len(turn.Members))
	}
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	env := setupChatTest(t)

	_, err := env.controller.Send(context.Background(), env.familyID, "   ", "")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestSendTruncatesDocument(t *testing.T) {
	env := setupChatTest(t)

	doc := strings.Repeat("x", maxDocumentChars+500)
	if _, err := env.controller.Send(context.Background(), env.familyID, "import this", doc); err != nil {
		t.Fatalf("send: %v", err)
	}
	turn := env.completer.lastTurn(t)
	if len(turn.DocumentText) != maxDocumentChars {
		t.Errorf("document length = %d, want %d", len(turn.DocumentText), maxDocumentChars)
	}
}

func TestSendAppliesAddCommand(t *testing.T) {
	env := setupChatTest(t)
	env.completer.reply = &assistant.Reply{
		Calls: []assistant.ToolCall{{
			Name: "addEvent",
			Args: map[string]any{
				"title":         "Piano Lesson",
				"start":         "2026-03-14T15:00:00",
				"end":           "2026-03-14T16:00:00",
				"category":      "Fun",
				"attendeeNames": []any{"Mia"},
			},
		}},
	}

	res, err := env.controller.Send(context.Background(), env.familyID, "book piano for Mia", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(res.Applied) != 1 {
		t.Fatalf("applied = %d commands, want 1", len(res.Applied))
	}
	// No prose from the model: fallback text names the event.
	if res.Message.Text != `I've added "Piano Lesson" to the calendar.` {
		t.Errorf("reply = %q", res.Message.Text)
	}

	events, _ := env.events.ListByFamily(env.familyID)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Title != "Piano Lesson" {
		t.Errorf("title = %q, want %q", events[0].Title, "Piano Lesson")
	}
	if events[0].FamilyID != env.familyID {
		t.Errorf("family = %q, want %q", events[0].FamilyID, env.familyID)
	}
	if len(events[0].MemberIDs) != 1 || events[0].MemberIDs[0] != env.mia.ID {
		t.Errorf("attendees = %v, want [%s]", events[0].MemberIDs, env.mia.ID)
	}
}

func TestSendAppliesUpdateAndDelete(t *testing.T) {
	env := setupChatTest(t)

	keep, _ := env.events.Create(model.CalendarEvent{
		FamilyID: env.familyID, Title: "Dentist",
		Start: time.Now(), End: time.Now().Add(time.Hour),
	})
	drop, _ := env.events.Create(model.CalendarEvent{
		FamilyID: env.familyID, Title: "Old Meeting",
		Start: time.Now(), End: time.Now().Add(time.Hour),
	})

	env.completer.reply = &assistant.Reply{
		Text: "Done.",
		Calls: []assistant.ToolCall{
			{Name: "updateEvent", Args: map[string]any{"id": keep.ID, "title": "Dentist (moved)"}},
			{Name: "deleteEvent", Args: map[string]any{"id": drop.ID}},
		},
	}

	res, err := env.controller.Send(context.Background(), env.familyID, "fix my schedule", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(res.Applied) != 2 {
		t.Fatalf("applied = %d commands, want 2", len(res.Applied))
	}

	events, _ := env.events.ListByFamily(env.familyID)
	if len(events) != 1 || events[0].Title != "Dentist (moved)" {
		t.Errorf("events = %v, want just the renamed dentist visit", events)
	}
}

func TestSendFailedCommandDoesNotAbortRest(t *testing.T) {
	env := setupChatTest(t)

	env.completer.reply = &assistant.Reply{
		Text: "Done.",
		Calls: []assistant.ToolCall{
			{Name: "deleteEvent", Args: map[string]any{"id": "no-such-event"}},
			{Name: "addEvent", Args: map[string]any{
				"title": "Movie Night", "start": "2026-03-14T19:00:00",
				"end": "2026-03-14T21:00:00", "category": "Fun",
			}},
		},
	}

	res, err := env.controller.Send(context.Background(), env.familyID, "movie night", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(res.Applied) != 1 || res.Applied[0].Kind != assistant.CommandAdd {
		t.Fatalf("applied = %v, want just the add", res.Applied)
	}

	events, _ := env.events.ListByFamily(env.familyID)
	if len(events) != 1 || events[0].Title != "Movie Night" {
		t.Errorf("events = %v, want Movie Night", events)
	}
}

func TestSendExternalServiceErrorBecomesReply(t *testing.T) {
	env := setupChatTest(t)
	env.completer.reply = nil
	env.completer.err = fmt.Errorf("%w: quota exceeded", apperr.ErrExternalService)

	res, err := env.controller.Send(context.Background(), env.familyID, "hello?", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Message.Text != errorReplyText {
		t.Errorf("reply = %q, want %q", res.Message.Text, errorReplyText)
	}

	transcript := env.controller.Transcript(env.familyID)
	if len(transcript) != 2 {
		t.Errorf("transcript length = %d, want user message plus error reply", len(transcript))
	}
}

func TestSendBusyRejectsConcurrentTurn(t *testing.T) {
	env := setupChatTest(t)
	block := make(chan struct{})
	env.completer.block = block

	done := make(chan error, 1)
	go func() {
		_, err := env.controller.Send(context.Background(), env.familyID, "first", "")
		done <- err
	}()

	// Wait for the first turn to enter the completion call.
	deadline := time.After(2 * time.Second)
	for {
		env.completer.mu.Lock()
		started := len(env.completer.turns) > 0
		env.completer.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first turn never reached the completer")
		case <-time.After(5 * time.Millisecond):
		}
	}

	_, err := env.controller.Send(context.Background(), env.familyID, "second", "")
	if !errors.Is(err, ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first send: %v", err)
	}
}

func TestResetDiscardsLateReply(t *testing.T) {
	env := setupChatTest(t)
	block := make(chan struct{})
	env.completer.block = block

	done := make(chan *Result, 1)
	go func() {
		res, _ := env.controller.Send(context.Background(), env.familyID, "slow question", "")
		done <- res
	}()

	deadline := time.After(2 * time.Second)
	for {
		env.completer.mu.Lock()
		started := len(env.completer.turns) > 0
		env.completer.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("turn never reached the completer")
		case <-time.After(5 * time.Millisecond):
		}
	}

	env.controller.Reset(env.familyID)
	close(block)

	if res := <-done; res != nil {
		t.Errorf("expected discarded reply, got %+v", res)
	}
	if transcript := env.controller.Transcript(env.familyID); len(transcript) != 0 {
		t.Errorf("transcript length = %d, want 0 after reset", len(transcript))
	}
}

func TestSpeechBufferLifecycle(t *testing.T) {
	b := NewSpeechBuffer()

	// Fragments before Start are dropped.
	b.Interim("hel")
	if b.Live() != "" {
		t.Errorf("live = %q, want empty before start", b.Live())
	}

	b.Start()
	b.Interim("add soc")
	b.Interim("add soccer prac")
	if b.Live() != "add soccer prac" {
		t.Errorf("live = %q, want latest fragment", b.Live())
	}

	b.Finalize("add soccer practice tomorrow")
	if b.Live() != "" {
		t.Errorf("live = %q, want cleared after finalize", b.Live())
	}
	if !b.Listening() {
		t.Error("finalize must not stop listening")
	}

	got, ok := b.Dequeue()
	if !ok || got != "add soccer practice tomorrow" {
		t.Errorf("dequeue = %q, %v", got, ok)
	}
	if _, ok := b.Dequeue(); ok {
		t.Error("second dequeue should report empty")
	}

	b.Interim("and also")
	b.Stop()
	if b.Live() != "" {
		t.Errorf("live = %q, want cleared after stop", b.Live())
	}
	if b.Listening() {
		t.Error("expected stopped")
	}
}
