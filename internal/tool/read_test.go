package tool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadTool_Call(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	content := "Line 1\nLine 2\nLine 3\n"
	if err := os.WriteFile(testFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	tool := NewReadTool()
	tc := testContext()

	input := json.RawMessage(`{"filePath": "` + testFile + `"}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, "Line 1") || !strings.Contains(out, "Line 2") {
		t.Errorf("output missing expected lines: %q", out)
	}
}

func TestReadTool_FileNotFound(t *testing.T) {
	tool := NewReadTool()
	tc := testContext()

	input := json.RawMessage(`{"filePath": "/nonexistent/file.txt"}`)
	if _, err := tool.Call(context.Background(), input, tc); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestReadTool_WithOffsetAndLimit(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "lines.txt")
	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, "Line "+string(rune('0'+i)))
	}
	if err := os.WriteFile(testFile, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	tool := NewReadTool()
	tc := testContext()

	input := json.RawMessage(`{"filePath": "` + testFile + `", "offset": 3, "limit": 3}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, "Line 3") {
		t.Error("output should contain 'Line 3'")
	}
}

func TestReadTool_Definition(t *testing.T) {
	tool := NewReadTool()

	if tool.Name() != "read" {
		t.Errorf("Name() = %q, want 'read'", tool.Name())
	}

	def := tool.Definition()
	var schema map[string]any
	if err := json.Unmarshal(def.Schema, &schema); err != nil {
		t.Errorf("schema should be valid JSON: %v", err)
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatal("schema should have properties")
	}
	if _, ok := props["filePath"]; !ok {
		t.Error("schema should have filePath property")
	}
}

func TestReadTool_EnvFileBlocked(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")
	if err := os.WriteFile(envFile, []byte("SECRET=value"), 0644); err != nil {
		t.Fatalf("failed to create .env file: %v", err)
	}

	tool := NewReadTool()
	tc := testContext()

	input := json.RawMessage(`{"filePath": "` + envFile + `"}`)
	_, err := tool.Call(context.Background(), input, tc)
	if err == nil {
		t.Error("expected error when reading .env file")
	}
}

func TestReadTool_DirectoryError(t *testing.T) {
	tmpDir := t.TempDir()
	tool := NewReadTool()
	tc := testContext()

	input := json.RawMessage(`{"filePath": "` + tmpDir + `"}`)
	_, err := tool.Call(context.Background(), input, tc)
	if err == nil {
		t.Error("expected error when reading a directory")
	}
}

func TestReadTool_ImageFile(t *testing.T) {
	tmpDir := t.TempDir()
	imgFile := filepath.Join(tmpDir, "test.png")

	pngSignature := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	if err := os.WriteFile(imgFile, pngSignature, 0644); err != nil {
		t.Fatalf("failed to create PNG file: %v", err)
	}

	tool := NewReadTool()
	tc := testContext()

	input := json.RawMessage(`{"filePath": "` + imgFile + `"}`)
	out, err := tool.Call(context.Background(), input, tc)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if !strings.Contains(out, "image/png") && !strings.HasPrefix(out, "data:image/png;base64,") {
		t.Errorf("expected an image reference in output, got %q", out)
	}
}

func TestReadTool_BinaryFile(t *testing.T) {
	tmpDir := t.TempDir()
	binFile := filepath.Join(tmpDir, "binary.dat")

	content := []byte{0x00, 0x01, 0x02, 0x00, 0x03, 0x04, 0x00}
	if err := os.WriteFile(binFile, content, 0644); err != nil {
		t.Fatalf("failed to create binary file: %v", err)
	}

	tool := NewReadTool()
	tc := testContext()

	input := json.RawMessage(`{"filePath": "` + binFile + `"}`)
	_, err := tool.Call(context.Background(), input, tc)
	if err == nil {
		t.Error("expected error when reading binary file")
	}
}

func TestReadTool_InvalidInput(t *testing.T) {
	tool := NewReadTool()
	tc := testContext()

	input := json.RawMessage(`{invalid json}`)
	if _, err := tool.Call(context.Background(), input, tc); err == nil {
		t.Error("expected error for invalid JSON input")
	}
}

func TestReadTool_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	emptyFile := filepath.Join(tmpDir, "empty.txt")
	if err := os.WriteFile(emptyFile, []byte{}, 0644); err != nil {
		t.Fatalf("failed to create empty file: %v", err)
	}

	tool := NewReadTool()
	tc := testContext()

	input := json.RawMessage(`{"filePath": "` + emptyFile + `"}`)
	if _, err := tool.Call(context.Background(), input, tc); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
}
