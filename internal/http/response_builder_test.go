package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilderDefaults(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHTMXResponse().Write(rec)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("HX-Trigger") != "" {
		t.Error("no triggers were added, HX-Trigger should be absent")
	}
}

func TestHTMXResponseBuilderTriggers(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHTMXResponse().
		TriggerExpenseCreated(42).
		TriggerPageRefresh().
		TriggerSuccessNotification("Expense saved").
		BodyHTML(`<div class="success">ok</div>`).
		Write(rec)

	raw := rec.Header().Get("HX-Trigger")
	if raw == "" {
		t.Fatal("HX-Trigger header missing")
	}

	var triggers map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not valid JSON: %v", err)
	}

	created, ok := triggers["expense:created"].(map[string]interface{})
	if !ok || created["id"].(float64) != 42 {
		t.Errorf("expense:created = %v", triggers["expense:created"])
	}
	if _, ok := triggers["page:refresh"]; !ok {
		t.Error("page:refresh trigger missing")
	}
	notif, ok := triggers["show-notification"].(map[string]interface{})
	if !ok || notif["type"] != "success" || notif["message"] != "Expense saved" {
		t.Errorf("show-notification = %v", triggers["show-notification"])
	}
	if notif["duration"].(float64) != 3000 {
		t.Errorf("success notification duration = %v, want 3000", notif["duration"])
	}

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "success") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestErrorResponsesEscapeHTML(t *testing.T) {
	rec := httptest.NewRecorder()
	UnprocessableEntityError(`<script>alert(1)</script>`).Write(rec)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("message was not HTML-escaped")
	}
	if !strings.Contains(body, `class="error"`) {
		t.Errorf("body = %q", body)
	}
}

func TestErrorResponseStatusCodes(t *testing.T) {
	tests := []struct {
		name    string
		builder *HTMXResponseBuilder
		want    int
	}{
		{"bad request", BadRequestError("x"), http.StatusBadRequest},
		{"not found", NotFoundError("x"), http.StatusNotFound},
		{"conflict", ConflictError("x"), http.StatusConflict},
		{"internal", InternalServerError("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.builder.Write(rec)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestMethodNotAllowedSetsAllowHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	MethodNotAllowedError("DELETE, POST").Write(rec)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "DELETE, POST" {
		t.Errorf("Allow = %q", allow)
	}
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0%"},
		{75, "75%"},
		{92.5, "92.5%"},
		{120, "120%"},
	}
	for _, tt := range tests {
		if got := formatPercent(tt.in); got != tt.want {
			t.Errorf("formatPercent(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
