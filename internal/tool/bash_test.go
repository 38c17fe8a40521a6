package tool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestBashTool_Call(t *testing.T) {
	tool := NewBashTool()
	tc := testContext()

	input := json.RawMessage(`{"command": "echo hello", "description": "print hello"}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("output should contain 'hello', got %q", out)
	}
}

func TestBashTool_NonZeroExit(t *testing.T) {
	tool := NewBashTool()
	tc := testContext()

	input := json.RawMessage(`{"command": "exit 1", "description": "fail"}`)
	if _, err := tool.Call(context.Background(), input, tc); err != nil {
		t.Fatalf("Call should not itself error on a nonzero exit status: %v", err)
	}
}

func TestBashTool_Timeout(t *testing.T) {
	tool := NewBashTool()
	tc := testContext()

	input := json.RawMessage(`{"command": "sleep 5", "description": "sleep", "timeout": 50}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, "timed out") {
		t.Errorf("output should mention the timeout, got %q", out)
	}
}

func TestBashTool_WorkingDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	tool := NewBashTool()
	tc := testContext()
	tc.CWD = tmpDir

	input := json.RawMessage(`{"command": "pwd", "description": "print cwd"}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, tmpDir) {
		t.Errorf("output should contain working directory %q, got %q", tmpDir, out)
	}
}

func TestBashTool_OutputTruncation(t *testing.T) {
	tool := NewBashTool()
	tc := testContext()

	input := json.RawMessage(`{"command": "yes x | head -c 40000", "description": "big output"}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, "truncated") {
		t.Errorf("output should be marked as truncated, got length %d", len(out))
	}
}

func TestBashTool_Definition(t *testing.T) {
	tool := NewBashTool()

	if tool.Name() != "bash" {
		t.Errorf("Name() = %q, want 'bash'", tool.Name())
	}

	def := tool.Definition()
	var schema map[string]any
	if err := json.Unmarshal(def.Schema, &schema); err != nil {
		t.Errorf("schema should be valid JSON: %v", err)
	}
	props := schema["properties"].(map[string]any)
	for _, name := range []string{"command", "timeout", "description"} {
		if _, ok := props[name]; !ok {
			t.Errorf("schema should have %s property", name)
		}
	}
}

func TestBashTool_InvalidInput(t *testing.T) {
	tool := NewBashTool()
	tc := testContext()

	input := json.RawMessage(`{invalid json}`)
	if _, err := tool.Call(context.Background(), input, tc); err == nil {
		t.Error("expected error for invalid JSON input")
	}
}

func TestDetectShell(t *testing.T) {
	shell := detectShell()
	if shell == "" {
		t.Error("detectShell() should never return empty string")
	}
}
