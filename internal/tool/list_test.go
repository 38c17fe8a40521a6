package tool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestListTool_Call(t *testing.T) {
	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "file1.txt"), []byte(""), 0644)
	os.WriteFile(filepath.Join(tmpDir, "file2.txt"), []byte("content"), 0644)
	os.Mkdir(filepath.Join(tmpDir, "subdir"), 0755)

	tool := NewListTool()
	tc := testContext()
	tc.CWD = tmpDir

	input := json.RawMessage(`{"path": "` + tmpDir + `"}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, "file1.txt") {
		t.Error("output should contain 'file1.txt'")
	}
	if !strings.Contains(out, "subdir") {
		t.Error("output should contain 'subdir'")
	}
}

func TestListTool_DirectoryNotFound(t *testing.T) {
	tool := NewListTool()
	tc := testContext()
	tc.CWD = "/tmp"

	input := json.RawMessage(`{"path": "/nonexistent/directory"}`)
	if _, err := tool.Call(context.Background(), input, tc); err == nil {
		t.Error("expected error for nonexistent directory")
	}
}

func TestListTool_DefaultPath(t *testing.T) {
	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "default.txt"), []byte(""), 0644)

	tool := NewListTool()
	tc := testContext()
	tc.CWD = tmpDir

	input := json.RawMessage(`{}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, "default.txt") {
		t.Error("output should contain 'default.txt'")
	}
}

func TestListTool_RelativePath(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	os.Mkdir(subDir, 0755)
	os.WriteFile(filepath.Join(subDir, "nested.txt"), []byte(""), 0644)

	tool := NewListTool()
	tc := testContext()
	tc.CWD = tmpDir

	input := json.RawMessage(`{"path": "subdir"}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, "nested.txt") {
		t.Error("output should contain 'nested.txt'")
	}
}

func TestListTool_EmptyDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	tool := NewListTool()
	tc := testContext()
	tc.CWD = tmpDir

	input := json.RawMessage(`{"path": "` + tmpDir + `"}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if out != "" {
		t.Errorf("expected empty output for empty directory, got %q", out)
	}
}

func TestListTool_Definition(t *testing.T) {
	tool := NewListTool()

	if tool.Name() != "list" {
		t.Errorf("Name() = %q, want 'list'", tool.Name())
	}

	def := tool.Definition()
	if !strings.Contains(def.Description, "files") || !strings.Contains(def.Description, "directories") {
		t.Error("description should mention 'files' and 'directories'")
	}

	var schema map[string]any
	if err := json.Unmarshal(def.Schema, &schema); err != nil {
		t.Errorf("schema should be valid JSON: %v", err)
	}
	props := schema["properties"].(map[string]any)
	if _, ok := props["path"]; !ok {
		t.Error("schema should have path property")
	}
}

func TestListTool_InvalidInput(t *testing.T) {
	tool := NewListTool()
	tc := testContext()
	tc.CWD = "/tmp"

	input := json.RawMessage(`{invalid json}`)
	if _, err := tool.Call(context.Background(), input, tc); err == nil {
		t.Error("expected error for invalid JSON input")
	}
}

func TestListTool_FileTypes(t *testing.T) {
	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "file.txt"), []byte("content"), 0644)
	os.Mkdir(filepath.Join(tmpDir, "directory"), 0755)

	tool := NewListTool()
	tc := testContext()
	tc.CWD = tmpDir

	input := json.RawMessage(`{"path": "` + tmpDir + `"}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, "[file]") {
		t.Error("output should indicate file type")
	}
	if !strings.Contains(out, "[dir") {
		t.Error("output should indicate directory type")
	}
}

func TestListTool_FileSize(t *testing.T) {
	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "sized.txt"), []byte("Hello, World!"), 0644)

	tool := NewListTool()
	tc := testContext()
	tc.CWD = tmpDir

	input := json.RawMessage(`{"path": "` + tmpDir + `"}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, "bytes") {
		t.Error("output should show file size in bytes")
	}
}

func TestListTool_IgnorePatterns(t *testing.T) {
	tmpDir := t.TempDir()
	os.Mkdir(filepath.Join(tmpDir, "node_modules"), 0755)
	os.WriteFile(filepath.Join(tmpDir, "visible.txt"), []byte(""), 0644)

	tool := NewListTool()
	tc := testContext()
	tc.CWD = tmpDir

	input := json.RawMessage(`{"path": "` + tmpDir + `"}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if strings.Contains(out, "node_modules") {
		t.Error("output should not contain node_modules by default")
	}
	if !strings.Contains(out, "visible.txt") {
		t.Error("output should contain visible.txt")
	}
}

func TestListTool_CustomIgnore(t *testing.T) {
	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "skip.txt"), []byte(""), 0644)
	os.WriteFile(filepath.Join(tmpDir, "keep.txt"), []byte(""), 0644)

	tool := NewListTool()
	tc := testContext()
	tc.CWD = tmpDir

	input := json.RawMessage(`{"path": "` + tmpDir + `", "ignore": ["skip.txt"]}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if strings.Contains(out, "skip.txt") {
		t.Error("output should not contain skip.txt")
	}
	if !strings.Contains(out, "keep.txt") {
		t.Error("output should contain keep.txt")
	}
}
