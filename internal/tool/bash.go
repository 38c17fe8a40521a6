package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/toolpolicy"
)

const (
	DefaultBashTimeout = 120 * time.Second
	MaxBashTimeout     = 10 * time.Minute
	MaxOutputLength    = 30000
	SigkillTimeout     = 200 * time.Millisecond
)

const bashDescription = `Executes a shell command in the session's working directory.

Usage:
- command is required
- Optional timeout in milliseconds (max 600000)
- Provide a brief description of what the command does
- Output is captured from stdout and stderr combined
- Commands run in their own process group so a timeout kills the whole tree

Permission for a given command pattern is decided before this tool ever runs, per the engine's tool-call policy; this tool only executes.`

// BashTool implements shell command execution. Permission gating (allow /
// deny / ask, doom-loop detection) happens in the engine via toolpolicy
// before Call is reached; this tool is the execution half only.
type BashTool struct {
	shell string
}

func NewBashTool() *BashTool {
	return &BashTool{shell: detectShell()}
}

func detectShell() string {
	if s := os.Getenv("SHELL"); s != "" {
		if s != "/bin/fish" && s != "/usr/bin/fish" && s != "/bin/nu" && s != "/usr/bin/nu" {
			return s
		}
	}
	if runtime.GOOS == "darwin" {
		return "/bin/zsh"
	}
	if runtime.GOOS == "windows" {
		if comspec := os.Getenv("COMSPEC"); comspec != "" {
			return comspec
		}
		return "cmd.exe"
	}
	if bash, err := exec.LookPath("bash"); err == nil {
		return bash
	}
	return "/bin/sh"
}

var bashSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"command": {"type": "string", "description": "The command to execute"},
		"timeout": {"type": "integer", "description": "Optional timeout in milliseconds (max 600000)"},
		"description": {"type": "string", "description": "Brief description of what this command does"}
	},
	"required": ["command", "description"]
}`)

func (t *BashTool) Name() string { return "bash" }

func (t *BashTool) Definition() Definition {
	return Definition{Description: bashDescription, Schema: bashSchema}
}

func (t *BashTool) RequiredCapabilities() []toolpolicy.Capability {
	return []toolpolicy.Capability{toolpolicy.CapabilityFilesystem}
}

type bashInput struct {
	Command     string `json:"command"`
	Timeout     int    `json:"timeout,omitempty"`
	Description string `json:"description"`
}

func (t *BashTool) Call(ctx context.Context, argsJSON json.RawMessage, tc *Context) (string, error) {
	var params bashInput
	if err := json.Unmarshal(argsJSON, &params); err != nil {
		return "", apperr.InvalidRequestf("invalid bash arguments: %v", err)
	}

	timeout := DefaultBashTimeout
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Millisecond
		if timeout > MaxBashTimeout {
			timeout = MaxBashTimeout
		}
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(cmdCtx, t.shell, "/c", params.Command)
	} else {
		cmd = exec.CommandContext(cmdCtx, t.shell, "-c", params.Command)
	}
	if tc.HasCWD() {
		cmd.Dir = tc.CWD
	}
	cmd.Env = os.Environ()
	if runtime.GOOS != "windows" {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	output, err := cmd.CombinedOutput()
	timedOut := cmdCtx.Err() == context.DeadlineExceeded

	result := string(output)
	if len(result) > MaxOutputLength {
		result = result[:MaxOutputLength] + "\n\n(Output truncated)"
	}
	if timedOut {
		killProcessGroup(cmd)
		result += fmt.Sprintf("\n\n(Command timed out after %v)", timeout)
	}

	if err != nil && !timedOut {
		if _, ok := err.(*exec.ExitError); !ok {
			result += fmt.Sprintf("\n\nError: %v", err)
		}
	}

	return result, nil
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if runtime.GOOS == "windows" {
		exec.Command("taskkill", "/pid", fmt.Sprint(pid), "/f", "/t").Run()
		return
	}
	syscall.Kill(-pid, syscall.SIGTERM)
	time.Sleep(SigkillTimeout)
	if cmd.ProcessState == nil {
		syscall.Kill(-pid, syscall.SIGKILL)
	}
}
