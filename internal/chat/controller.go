// Package chat runs the family's assistant conversation: it keeps the
// per-family transcript, hands user turns to the completion service,
// and applies the calendar commands that come back.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"famly/internal/apperr"
	"famly/internal/assistant"
	"famly/internal/ident"
	"famly/internal/model"
	"famly/internal/store"
)

// ErrBusy is returned when a turn arrives while the previous one is
// still waiting on the completion service. One turn in flight per
// family, always.
var ErrBusy = errors.New("chat: a message is already being processed")

// errorReplyText is shown in the transcript when the completion
// service is unreachable or misbehaving. The underlying error is
// logged, never surfaced to the family.
const errorReplyText = "Error processing request."

// maxDocumentChars caps uploaded document text handed to the
// completion service. Longer documents are truncated, not rejected.
const maxDocumentChars = 20000

// Completer produces an assistant reply for one turn. Satisfied by
// *assistant.Client.
type Completer interface {
	Generate(ctx context.Context, turn assistant.Turn) (*assistant.Reply, error)
}

type Controller struct {
	completer Completer
	events    *store.EventStore
	members   *store.MemberStore
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// session is one family's conversation state.
type session struct {
	transcript []model.ChatMessage
	busy       bool
	epoch      int
}

func NewController(completer Completer, events *store.EventStore, members *store.MemberStore, logger *slog.Logger) *Controller {
	return &Controller{
		completer: completer,
		events:    events,
		members:   members,
		logger:    logger.With("component", "chat"),
		sessions:  make(map[string]*session),
	}
}

// Result is the outcome of one chat turn.
type Result struct {
	Message model.ChatMessage `json:"message"`
	// Applied lists the calendar commands that were executed, in
	// order. Callers broadcast a calendar refresh when it is non-empty;
	// clients only ever see the reply message.
	Applied []assistant.Command `json:"-"`
}

// Send runs one user turn for the family: records the user message,
// asks the completion service, applies any calendar commands it
// returns, and records the assistant's reply. Only one turn may be in
// flight per family; concurrent sends fail with ErrBusy. If the
// session is reset while the completion call is outstanding, the late
// reply is discarded and Send returns a nil Result.
func (c *Controller) Send(ctx context.Context, familyID, message, documentText string) (*Result, error) {
	if strings.TrimSpace(message) == "" && documentText == "" {
		return nil, fmt.Errorf("%w: message is empty", apperr.ErrValidation)
	}
	if len(documentText) > maxDocumentChars {
		documentText = documentText[:maxDocumentChars]
	}

	c.mu.Lock()
	sess := c.session(familyID)
	if sess.busy {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	sess.busy = true
	epoch := sess.epoch
	sess.transcript = append(sess.transcript, model.ChatMessage{
		ID:        ident.NewID(),
		Role:      model.RoleUser,
		Text:      message,
		Timestamp: time.Now(),
	})
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		sess.busy = false
		c.mu.Unlock()
	}()

	events, err := c.events.ListByFamily(familyID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	members, err := c.members.ListByFamily(familyID)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}

	reply, genErr := c.completer.Generate(ctx, assistant.Turn{
		Message:      message,
		DocumentText: documentText,
		Events:       events,
		Members:      members,
	})

	c.mu.Lock()
	stale := sess.epoch != epoch
	c.mu.Unlock()
	if stale {
		c.logger.Info("discarding reply for reset session", "family_id", familyID)
		return nil, nil
	}

	if genErr != nil {
		c.logger.Error("completion failed", "family_id", familyID, "error", genErr)
		if errors.Is(genErr, apperr.ErrExternalService) {
			return &Result{Message: c.appendModel(familyID, errorReplyText)}, nil
		}
		return nil, genErr
	}

	cmds := assistant.Translate(reply, members, time.Now())
	applied := c.apply(familyID, cmds)

	text := reply.Text
	if text == "" {
		text = assistant.FallbackText(cmds)
	}
	return &Result{
		Message: c.appendModel(familyID, text),
		Applied: applied,
	}, nil
}

// apply executes the translated commands in invocation order. A
// command that fails is logged and skipped; the rest still run.
func (c *Controller) apply(familyID string, cmds []assistant.Command) []assistant.Command {
	var applied []assistant.Command
	for _, cmd := range cmds {
		var err error
		switch cmd.Kind {
		case assistant.CommandAdd:
			event := cmd.Event
			event.FamilyID = familyID
			_, err = c.events.Create(event)
		case assistant.CommandUpdate:
			_, err = c.events.Update(cmd.EventID, cmd.Patch)
		case assistant.CommandDelete:
			err = c.events.Delete(cmd.EventID)
		}
		if err != nil {
			c.logger.Warn("assistant command failed",
				"family_id", familyID, "kind", string(cmd.Kind), "error", err)
			continue
		}
		applied = append(applied, cmd)
	}
	return applied
}

func (c *Controller) appendModel(familyID, text string) model.ChatMessage {
	msg := model.ChatMessage{
		ID:        ident.NewID(),
		Role:      model.RoleModel,
		Text:      text,
		Timestamp: time.Now(),
	}
	c.mu.Lock()
	c.session(familyID).transcript = append(c.session(familyID).transcript, msg)
	c.mu.Unlock()
	return msg
}

// Transcript returns a copy of the family's conversation so far.
func (c *Controller) Transcript(familyID string) []model.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess := c.session(familyID)
	out := make([]model.ChatMessage, len(sess.transcript))
	copy(out, sess.transcript)
	return out
}

// Reset clears the family's transcript. An in-flight completion call
// keeps running but its reply is discarded when it lands.
func (c *Controller) Reset(familyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess := c.session(familyID)
	sess.transcript = nil
	sess.epoch++
}

// session returns the family's session, creating it if needed. Callers
// must hold c.mu.
func (c *Controller) session(familyID string) *session {
	sess, ok := c.sessions[familyID]
	if !ok {
		sess = &session{}
		c.sessions[familyID] = sess
	}
	return sess
}
