package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"famly/internal/apperr"
	"famly/internal/model"
)

func stubServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("path = %s, want generateContent", r.URL.Path)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testTurn() Turn {
	return Turn{
		Message: "Add piano for Mia tomorrow at 3pm",
		Events: []model.CalendarEvent{{
			ID:        "e1",
			Title:     "Soccer Practice",
			Start:     time.Date(2024, 3, 1, 16, 30, 0, 0, time.UTC),
			End:       time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC),
			Category:  model.CategoryFun,
			MemberIDs: []string{"m4"},
		}},
		Members: []model.Member{
			{ID: "m3", Name: "Mia"},
			{ID: "m4", Name: "Leo"},
		},
	}
}

func TestGenerateParsesTextAndCalls(t *testing.T) {
	body := `{
		"candidates": [{
			"content": {
				"parts": [
					{"text": "On it!"},
					{"functionCall": {"name": "addEvent", "args": {"title": "Piano", "start": "2024-03-02T15:00", "end": "2024-03-02T16:00", "category": "School", "attendeeNames": ["Mia"]}}}
				]
			}
		}]
	}`
	srv := stubServer(t, http.StatusOK, body)

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})
	reply, err := c.Generate(context.Background(), testTurn())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply.Text != "On it!" {
		t.Errorf("text = %q, want %q", reply.Text, "On it!")
	}
	if len(reply.Calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(reply.Calls))
	}
	call := reply.Calls[0]
	if call.Name != "addEvent" {
		t.Errorf("call name = %q, want addEvent", call.Name)
	}
	if call.Args["title"] != "Piano" {
		t.Errorf("title arg = %v, want Piano", call.Args["title"])
	}
}

func TestGenerateSendsScheduleAndRoster(t *testing.T) {
	var captured wireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})
	if _, err := c.Generate(context.Background(), testTurn()); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if captured.SystemInstruction == nil || len(captured.SystemInstruction.Parts) == 0 {
		t.Fatal("missing system instruction")
	}
	prompt := captured.SystemInstruction.Parts[0].Text
	for _, want := range []string{"Soccer Practice", "Mia, Leo", "Current Schedule"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	if len(captured.Tools) != 1 || len(captured.Tools[0].FunctionDeclarations) != 3 {
		t.Errorf("tools = %+v, want 3 declarations", captured.Tools)
	}
}

func TestGenerateIncludesDocumentText(t *testing.T) {
	var captured wireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	t.Cleanup(srv.Close)

	turn := testTurn()
	turn.DocumentText = "School newsletter: spring concert May 3 at 6pm"

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})
	if _, err := c.Generate(context.Background(), turn); err != nil {
		t.Fatalf("generate: %v", err)
	}

	userText := captured.Contents[0].Parts[0].Text
	if !strings.Contains(userText, "spring concert") {
		t.Errorf("user prompt missing document text: %q", userText)
	}
}

func TestGenerateServerError(t *testing.T) {
	srv := stubServer(t, http.StatusInternalServerError, `{"error":{"message":"quota exceeded"}}`)

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL})
	_, err := c.Generate(context.Background(), testTurn())
	if !errors.Is(err, apperr.ErrExternalService) {
		t.Fatalf("err = %v, want ErrExternalService", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("err should carry service message, got %v", err)
	}
}

func TestGenerateUnconfigured(t *testing.T) {
	c := NewClient(Config{})
	_, err := c.Generate(context.Background(), testTurn())
	if !errors.Is(err, apperr.ErrExternalService) {
		t.Errorf("err = %v, want ErrExternalService", err)
	}
}
