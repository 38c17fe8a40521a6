package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebFetchTool_Definition(t *testing.T) {
	tool := NewWebFetchTool()

	if tool.Name() != "webfetch" {
		t.Errorf("Name() = %q, want 'webfetch'", tool.Name())
	}

	def := tool.Definition()
	if !strings.Contains(def.Description, "URL") {
		t.Error("description should mention 'URL'")
	}

	var schema map[string]any
	if err := json.Unmarshal(def.Schema, &schema); err != nil {
		t.Errorf("schema should be valid JSON: %v", err)
	}
	props := schema["properties"].(map[string]any)
	if _, ok := props["url"]; !ok {
		t.Error("schema should have url property")
	}
	if _, ok := props["timeout"]; !ok {
		t.Error("schema should have timeout property")
	}
}

func TestWebFetchTool_URLValidation(t *testing.T) {
	tool := NewWebFetchTool()
	tc := testContext()

	tests := []struct {
		name    string
		url     string
		wantErr bool
		errMsg  string
	}{
		{"missing protocol", "example.com", true, "http:// or https://"},
		{"ftp protocol", "ftp://example.com", true, "http:// or https://"},
		{"file protocol", "file:///etc/passwd", true, "http:// or https://"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := json.RawMessage(`{"url": "` + tt.url + `"}`)
			_, err := tool.Call(context.Background(), input, tc)
			if err == nil {
				t.Errorf("expected error for URL %q", tt.url)
			} else if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error should contain %q, got: %v", tt.errMsg, err)
			}
		})
	}
}

func TestWebFetchTool_RawBodyPassthrough(t *testing.T) {
	tool := NewWebFetchTool()
	tc := testContext()

	htmlContent := `<html><body><h1>Test</h1></body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(htmlContent))
	}))
	defer server.Close()

	input := json.RawMessage(`{"url": "` + server.URL + `"}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if out != htmlContent {
		t.Errorf("expected raw body passthrough, got %q", out)
	}
}

func TestWebFetchTool_Truncation(t *testing.T) {
	tool := NewWebFetchTool()
	tc := testContext()

	big := strings.Repeat("x", maxResponseSize+1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(big))
	}))
	defer server.Close()

	input := json.RawMessage(`{"url": "` + server.URL + `"}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, fmt.Sprintf("truncated at %d bytes", maxResponseSize)) {
		t.Error("output should contain a truncation marker")
	}
}

func TestWebFetchTool_HTTPError(t *testing.T) {
	tool := NewWebFetchTool()
	tc := testContext()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	input := json.RawMessage(`{"url": "` + server.URL + `"}`)
	_, err := tool.Call(context.Background(), input, tc)
	if err == nil {
		t.Error("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error should mention status code, got: %v", err)
	}
}

func TestWebFetchTool_InvalidInput(t *testing.T) {
	tool := NewWebFetchTool()
	tc := testContext()

	input := json.RawMessage(`{invalid json}`)
	if _, err := tool.Call(context.Background(), input, tc); err == nil {
		t.Error("expected error for invalid JSON input")
	}
}

func TestWebFetchTool_Timeout(t *testing.T) {
	tool := NewWebFetchTool()
	tc := testContext()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fast response"))
	}))
	defer server.Close()

	input := json.RawMessage(`{"url": "` + server.URL + `", "timeout": 5}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if out != "fast response" {
		t.Errorf("expected 'fast response', got %q", out)
	}
}

func TestWebFetchTool_PlainTextPassthrough(t *testing.T) {
	tool := NewWebFetchTool()
	tc := testContext()

	plainContent := "This is plain text content."
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(plainContent))
	}))
	defer server.Close()

	input := json.RawMessage(`{"url": "` + server.URL + `"}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if out != plainContent {
		t.Errorf("expected plain text passthrough, got %q", out)
	}
}
