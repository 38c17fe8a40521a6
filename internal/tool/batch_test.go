package tool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBatchTool_Definition(t *testing.T) {
	registry := NewRegistry()
	tool := NewBatchTool(registry)

	if tool.Name() != "batch" {
		t.Errorf("Name() = %q, want 'batch'", tool.Name())
	}

	def := tool.Definition()
	if !strings.Contains(def.Description, "parallel") {
		t.Error("description should mention 'parallel'")
	}

	var schema map[string]any
	if err := json.Unmarshal(def.Schema, &schema); err != nil {
		t.Errorf("schema should be valid JSON: %v", err)
	}
	props := schema["properties"].(map[string]any)
	if _, ok := props["tool_calls"]; !ok {
		t.Error("schema should have tool_calls property")
	}
}

func TestBatchTool_SingleToolCall(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("Hello World"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	registry := NewRegistry()
	registry.Register(NewReadTool())
	batchTool := NewBatchTool(registry)
	tc := testContext()
	tc.CWD = tmpDir

	input := json.RawMessage(`{
		"tool_calls": [
			{"tool": "read", "parameters": {"filePath": "` + testFile + `"}}
		]
	}`)

	out, err := batchTool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, "All 1 tools executed successfully") {
		t.Errorf("output should report all calls successful, got %q", out)
	}
	if !strings.Contains(out, "Hello World") {
		t.Error("output should contain file content")
	}
}

func TestBatchTool_MultipleToolCalls(t *testing.T) {
	tmpDir := t.TempDir()
	file1 := filepath.Join(tmpDir, "file1.txt")
	file2 := filepath.Join(tmpDir, "file2.txt")
	os.WriteFile(file1, []byte("Content 1"), 0644)
	os.WriteFile(file2, []byte("Content 2"), 0644)

	registry := NewRegistry()
	registry.Register(NewReadTool())
	batchTool := NewBatchTool(registry)
	tc := testContext()
	tc.CWD = tmpDir

	input := json.RawMessage(`{
		"tool_calls": [
			{"tool": "read", "parameters": {"filePath": "` + file1 + `"}},
			{"tool": "read", "parameters": {"filePath": "` + file2 + `"}}
		]
	}`)

	out, err := batchTool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, "All 2 tools executed successfully") {
		t.Errorf("output should report all calls successful, got %q", out)
	}
	if !strings.Contains(out, "Content 1") || !strings.Contains(out, "Content 2") {
		t.Error("output should contain both files' content")
	}
}

func TestBatchTool_DisallowedTool_Batch(t *testing.T) {
	registry := NewRegistry()
	batchTool := NewBatchTool(registry)
	registry.Register(batchTool)
	tc := testContext()

	input := json.RawMessage(`{
		"tool_calls": [
			{"tool": "batch", "parameters": {}}
		]
	}`)

	out, err := batchTool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call should not fail, got: %v", err)
	}
	if !strings.Contains(out, "not allowed inside batch") {
		t.Error("output should mention batch is not allowed")
	}
}

func TestBatchTool_DisallowedTool_Edit(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewEditTool())
	batchTool := NewBatchTool(registry)
	tc := testContext()

	input := json.RawMessage(`{
		"tool_calls": [
			{"tool": "edit", "parameters": {"filePath": "test.txt", "oldString": "a", "newString": "b"}}
		]
	}`)

	out, err := batchTool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call should not fail, got: %v", err)
	}
	if !strings.Contains(out, "not allowed inside batch") {
		t.Error("output should mention edit is not allowed")
	}
}

func TestBatchTool_ToolNotFound(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewReadTool())
	batchTool := NewBatchTool(registry)
	tc := testContext()

	input := json.RawMessage(`{
		"tool_calls": [
			{"tool": "nonexistent", "parameters": {}}
		]
	}`)

	out, err := batchTool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call should not fail, got: %v", err)
	}
	if !strings.Contains(out, "unknown tool") {
		t.Error("output should mention the unknown tool")
	}
}

func TestBatchTool_PartialFailure(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "exists.txt")
	os.WriteFile(testFile, []byte("Content"), 0644)

	registry := NewRegistry()
	registry.Register(NewReadTool())
	batchTool := NewBatchTool(registry)
	tc := testContext()
	tc.CWD = tmpDir

	input := json.RawMessage(`{
		"tool_calls": [
			{"tool": "read", "parameters": {"filePath": "` + testFile + `"}},
			{"tool": "read", "parameters": {"filePath": "/nonexistent/file.txt"}}
		]
	}`)

	out, err := batchTool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call should not fail with a partial failure: %v", err)
	}
	if !strings.Contains(out, "1/2") {
		t.Errorf("output should indicate 1/2 successful, got %q", out)
	}
}

func TestBatchTool_MaxBatchSize(t *testing.T) {
	tmpDir := t.TempDir()
	for i := 0; i < 15; i++ {
		file := filepath.Join(tmpDir, "file"+string(rune('A'+i))+".txt")
		os.WriteFile(file, []byte("Content"), 0644)
	}

	registry := NewRegistry()
	registry.Register(NewReadTool())
	batchTool := NewBatchTool(registry)
	tc := testContext()
	tc.CWD = tmpDir

	var calls []string
	for i := 0; i < 15; i++ {
		file := filepath.Join(tmpDir, "file"+string(rune('A'+i))+".txt")
		calls = append(calls, `{"tool": "read", "parameters": {"filePath": "`+file+`"}}`)
	}
	input := json.RawMessage(`{"tool_calls": [` + strings.Join(calls, ",") + `]}`)

	out, err := batchTool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, "10/15") {
		t.Errorf("output should indicate 10/15 successful, got %q", out)
	}
	if !strings.Contains(out, "maximum of 10 tool calls") {
		t.Error("output should mention the max batch size for discarded calls")
	}
}

func TestBatchTool_EmptyToolCalls(t *testing.T) {
	registry := NewRegistry()
	batchTool := NewBatchTool(registry)
	tc := testContext()

	input := json.RawMessage(`{"tool_calls": []}`)
	if _, err := batchTool.Call(context.Background(), input, tc); err == nil {
		t.Error("expected error for empty tool_calls")
	}
}

func TestBatchTool_InvalidInput(t *testing.T) {
	registry := NewRegistry()
	batchTool := NewBatchTool(registry)
	tc := testContext()

	input := json.RawMessage(`{invalid json}`)
	if _, err := batchTool.Call(context.Background(), input, tc); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestBatchTool_MissingToolCalls(t *testing.T) {
	registry := NewRegistry()
	batchTool := NewBatchTool(registry)
	tc := testContext()

	input := json.RawMessage(`{}`)
	if _, err := batchTool.Call(context.Background(), input, tc); err == nil {
		t.Error("expected error for missing tool_calls")
	}
}

func TestBatchTool_MixedTools(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "mixed.txt")
	os.WriteFile(testFile, []byte("Test content for grep"), 0644)

	registry := NewRegistry()
	registry.Register(NewReadTool())
	registry.Register(NewGlobTool())
	batchTool := NewBatchTool(registry)
	tc := testContext()
	tc.CWD = tmpDir

	input := json.RawMessage(`{
		"tool_calls": [
			{"tool": "read", "parameters": {"filePath": "` + testFile + `"}},
			{"tool": "glob", "parameters": {"pattern": "*.txt", "path": "` + tmpDir + `"}}
		]
	}`)

	out, err := batchTool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, "All 2 tools executed successfully") {
		t.Errorf("output should report all calls successful, got %q", out)
	}
}

func TestBatchTool_ResultOrdering(t *testing.T) {
	tmpDir := t.TempDir()
	for i := 0; i < 5; i++ {
		file := filepath.Join(tmpDir, "order"+string(rune('0'+i))+".txt")
		os.WriteFile(file, []byte("File "+string(rune('0'+i))), 0644)
	}

	registry := NewRegistry()
	registry.Register(NewReadTool())
	batchTool := NewBatchTool(registry)
	tc := testContext()
	tc.CWD = tmpDir

	var calls []string
	for i := 0; i < 5; i++ {
		file := filepath.Join(tmpDir, "order"+string(rune('0'+i))+".txt")
		calls = append(calls, `{"tool": "read", "parameters": {"filePath": "`+file+`"}}`)
	}
	input := json.RawMessage(`{"tool_calls": [` + strings.Join(calls, ",") + `]}`)

	out, err := batchTool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, "All 5 tools executed successfully") {
		t.Errorf("output should report all calls successful, got %q", out)
	}
	for i := 0; i < 5; i++ {
		if !strings.Contains(out, "File "+string(rune('0'+i))) {
			t.Errorf("output should contain content from file %d", i)
		}
	}
}
