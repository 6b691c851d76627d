package assistant

import (
	"strings"
	"time"

	"famly/internal/ident"
	"famly/internal/model"
	"famly/internal/roster"
)

// CommandKind tags a translated calendar mutation.
type CommandKind string

const (
	CommandAdd    CommandKind = "ADD"
	CommandUpdate CommandKind = "UPDATE"
	CommandDelete CommandKind = "DELETE"
)

// Command is one typed calendar mutation produced from a tool call.
type Command struct {
	Kind    CommandKind
	Event   model.CalendarEvent // set for ADD
	EventID string              // set for UPDATE and DELETE
	Patch   model.EventPatch    // set for UPDATE
}

// Translate converts the model's tool calls into typed commands, in
// invocation order. Attendee names are resolved against the roster, the
// category defaults to Family, and timestamps are coerced leniently: a
// malformed start becomes now, a malformed end becomes start plus one
// hour, and malformed update fields are simply omitted. An invocation
// missing its required id or title is dropped without disturbing the
// rest — a bad tool call should cost one action, not the whole turn.
func Translate(reply *Reply, members []model.Member, now time.Time) []Command {
	if reply == nil {
		return nil
	}

	var cmds []Command
	for _, call := range reply.Calls {
		switch call.Name {
		case toolAddEvent:
			if cmd, ok := translateAdd(call.Args, members, now); ok {
				cmds = append(cmds, cmd)
			}
		case toolUpdateEvent:
			if cmd, ok := translateUpdate(call.Args, members); ok {
				cmds = append(cmds, cmd)
			}
		case toolDeleteEvent:
			if id, ok := stringArg(call.Args, "id"); ok {
				cmds = append(cmds, Command{Kind: CommandDelete, EventID: id})
			}
		}
	}
	return cmds
}

// FirstCommand returns the first translated command, preserving the
// single-action behavior older callers rely on.
func FirstCommand(cmds []Command) (Command, bool) {
	if len(cmds) == 0 {
		return Command{}, false
	}
	return cmds[0], true
}

// FallbackText supplies a reply when the model invoked a tool but sent
// no prose alongside it.
func FallbackText(cmds []Command) string {
	first, ok := FirstCommand(cmds)
	if !ok {
		return "I didn't catch that."
	}
	switch first.Kind {
	case CommandAdd:
		return "I've added \"" + first.Event.Title + "\" to the calendar."
	case CommandUpdate:
		return "I've updated the event."
	default:
		return "Event deleted."
	}
}

func translateAdd(args map[string]any, members []model.Member, now time.Time) (Command, bool) {
	title, ok := stringArg(args, "title")
	if !ok {
		return Command{}, false
	}

	start, ok := parseWhen(argString(args, "start"))
	if !ok {
		start = now
	}
	end, ok := parseWhen(argString(args, "end"))
	if !ok || end.Before(start) {
		end = start.Add(time.Hour)
	}

	event := model.CalendarEvent{
		ID:          ident.NewID(),
		Title:       title,
		Description: argString(args, "description"),
		Location:    argString(args, "location"),
		Start:       start,
		End:         end,
		Category:    model.ParseCategory(argString(args, "category"), model.CategoryFamily),
		MemberIDs:   resolveAttendees(args, members),
		VoiceNotes:  []model.VoiceNote{},
	}
	return Command{Kind: CommandAdd, Event: event}, true
}

func translateUpdate(args map[string]any, members []model.Member) (Command, bool) {
	id, ok := stringArg(args, "id")
	if !ok {
		return Command{}, false
	}

	var patch model.EventPatch
	if v, ok := stringArg(args, "title"); ok {
		patch.Title = &v
	}
	if v, ok := stringArg(args, "description"); ok {
		patch.Description = &v
	}
	if v, ok := stringArg(args, "location"); ok {
		patch.Location = &v
	}
	if v, ok := stringArg(args, "category"); ok {
		c := model.ParseCategory(v, model.CategoryOther)
		patch.Category = &c
	}
	if t, ok := parseWhen(argString(args, "start")); ok {
		patch.Start = &t
	}
	if t, ok := parseWhen(argString(args, "end")); ok {
		patch.End = &t
	}
	if names, present := stringsArg(args, "attendeeNames"); present {
		patch.MemberIDs = resolveOrNil(names, members)
	}

	return Command{Kind: CommandUpdate, EventID: id, Patch: patch}, true
}

func resolveAttendees(args map[string]any, members []model.Member) []string {
	names, _ := stringsArg(args, "attendeeNames")
	return resolveOrNil(names, members)
}

func resolveOrNil(names []string, members []model.Member) []string {
	ids, err := roster.ResolveNames(names, members)
	if err != nil {
		// Empty roster: nothing to resolve against.
		return nil
	}
	return ids
}

// whenLayouts covers the ISO-like shapes the model emits. Layouts
// without a zone are taken as local time, matching user intent.
var whenLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseWhen(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// stringArg returns the trimmed string at key, reporting presence only
// for non-empty values.
func stringArg(args map[string]any, key string) (string, bool) {
	v := strings.TrimSpace(argString(args, key))
	return v, v != ""
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// stringsArg reads a string list argument. The second return reports
// whether the key was present at all, so callers can distinguish "clear
// to resolver fallback" from "leave attendees alone".
func stringsArg(args map[string]any, key string) ([]string, bool) {
	raw, present := args[key]
	if !present {
		return nil, false
	}
	list, ok := raw.([]any)
	if !ok {
		if typed, ok := raw.([]string); ok {
			return typed, true
		}
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}
