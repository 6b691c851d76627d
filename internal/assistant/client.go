// Package assistant talks to the language-model completion service and
// translates its structured tool calls into typed calendar commands.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"famly/internal/apperr"
	"famly/internal/model"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Config holds completion service configuration from environment variables.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Client issues completion requests. It is safe for concurrent use,
// though the chat controller keeps at most one request in flight per
// session.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a completion client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Turn is one user turn handed to the completion service, together with
// the context it needs to answer schedule questions and target events.
type Turn struct {
	Message      string
	DocumentText string
	Events       []model.CalendarEvent
	Members      []model.Member
}

// ToolCall is one structured invocation returned by the model.
type ToolCall struct {
	Name string
	Args map[string]any
}

// Reply is the completion service's answer to a turn.
type Reply struct {
	Text  string
	Calls []ToolCall
}

// --- wire types for the generateContent endpoint ---

type wirePart struct {
	Text         string        `json:"text,omitempty"`
	FunctionCall *wireFuncCall `json:"functionCall,omitempty"`
}

type wireFuncCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wireToolSet struct {
	FunctionDeclarations []FunctionDeclaration `json:"function_declarations"`
}

type wireRequest struct {
	SystemInstruction *wireContent  `json:"system_instruction,omitempty"`
	Contents          []wireContent `json:"contents"`
	Tools             []wireToolSet `json:"tools,omitempty"`
	GenerationConfig  struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type wireResponse struct {
	Candidates []struct {
		Content wireContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends one turn to the completion service and returns the
// reply text plus any tool invocations. Failures are reported as
// ErrExternalService; the caller downgrades them to a conversational
// message rather than surfacing them.
func (c *Client) Generate(ctx context.Context, turn Turn) (*Reply, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: completion service not configured", apperr.ErrExternalService)
	}

	req := wireRequest{
		SystemInstruction: &wireContent{
			Parts: []wirePart{{Text: systemPrompt(turn)}},
		},
		Contents: []wireContent{{
			Role:  "user",
			Parts: []wirePart{{Text: userPrompt(turn)}},
		}},
		Tools: []wireToolSet{{FunctionDeclarations: toolDeclarations()}},
	}
	req.GenerationConfig.Temperature = 0.7

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrExternalService, err)
	}
	defer resp.Body.Close()

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", apperr.ErrExternalService, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if wire.Error != nil && wire.Error.Message != "" {
			msg = wire.Error.Message
		}
		return nil, fmt.Errorf("%w: %s", apperr.ErrExternalService, msg)
	}

	reply := &Reply{}
	if len(wire.Candidates) > 0 {
		for _, p := range wire.Candidates[0].Content.Parts {
			if p.Text != "" {
				reply.Text += p.Text
			}
			if p.FunctionCall != nil {
				reply.Calls = append(reply.Calls, ToolCall{
					Name: p.FunctionCall.Name,
					Args: p.FunctionCall.Args,
				})
			}
		}
	}
	return reply, nil
}

// scheduleEntry is the serialized event shape shown to the model.
type scheduleEntry struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Category  string `json:"category"`
	Location  string `json:"location,omitempty"`
	Attendees string `json:"attendees"`
}

func systemPrompt(turn Turn) string {
	names := make([]string, len(turn.Members))
	byID := make(map[string]string, len(turn.Members))
	for i, m := range turn.Members {
		names[i] = m.Name
		byID[m.ID] = m.Name
	}

	schedule := make([]scheduleEntry, len(turn.Events))
	for i, e := range turn.Events {
		attendees := make([]string, len(e.MemberIDs))
		for j, id := range e.MemberIDs {
			if name, ok := byID[id]; ok {
				attendees[j] = name
			} else {
				attendees[j] = id
			}
		}
		schedule[i] = scheduleEntry{
			ID:        e.ID,
			Title:     e.Title,
			Start:     e.Start.Format(time.RFC3339),
			End:       e.End.Format(time.RFC3339),
			Category:  string(e.Category),
			Location:  e.Location,
			Attendees: strings.Join(attendees, ", "),
		}
	}
	scheduleJSON, _ := json.MarshalIndent(schedule, "", "  ")

	var b strings.Builder
	b.WriteString("You are famly, a family calendar assistant.\n")
	fmt.Fprintf(&b, "Current Date/Time: %s\n\n", time.Now().Format("Monday, January 2, 2006 3:04 PM"))
	fmt.Fprintf(&b, "Family Members: %s\n\n", strings.Join(names, ", "))
	fmt.Fprintf(&b, "Current Schedule:\n%s\n\n", scheduleJSON)
	b.WriteString("Capabilities:\n")
	b.WriteString("1. Answer questions about the schedule.\n")
	b.WriteString("2. Handle specific search queries like \"When is Mia's practice?\" or \"What's happening on Monday?\".\n")
	b.WriteString("3. Identify events by attendee names, times (e.g., \"at 10am\"), or dates.\n")
	b.WriteString("4. ADD, EDIT, or DELETE events using the provided tools.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- If adding an event, infer the end time (1 hour duration) if not specified.\n")
	b.WriteString("- If modifying/deleting, find the event ID from the Current Schedule JSON.\n")
	b.WriteString("- If the user provides a document, create one addEvent call per event found in it.\n")
	b.WriteString("- If the user asks for a specific person's schedule, list their events clearly.\n")
	b.WriteString("- Be friendly, concise, and helpful.\n")
	return b.String()
}

func userPrompt(turn Turn) string {
	if turn.DocumentText == "" {
		return turn.Message
	}
	return fmt.Sprintf("%s\n\n--- Uploaded document ---\n%s", turn.Message, turn.DocumentText)
}
