package toolpolicy

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Command is one parsed shell command word with its arguments, the unit
// bash-pattern permissions are matched against.
type Command struct {
	Name       string
	Subcommand string // first non-flag argument, e.g. "commit" in "git commit"
	Args       []string
}

// ParseCommand splits a bash tool call's command string into the
// top-level commands it invokes (pipelines, `&&`/`;` chains, and command
// substitutions each contribute their own CallExpr).
func ParseCommand(command string) ([]Command, error) {
	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)

	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, fmt.Errorf("parse bash command: %w", err)
	}

	var out []Command
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok {
			if cmd := extractCommand(call); cmd != nil {
				out = append(out, *cmd)
			}
		}
		return true
	})
	return out, nil
}

func extractCommand(call *syntax.CallExpr) *Command {
	if len(call.Args) == 0 {
		return nil
	}

	cmd := &Command{Name: wordToString(call.Args[0])}
	if cmd.Name == "" {
		return nil
	}

	for _, arg := range call.Args[1:] {
		s := wordToString(arg)
		cmd.Args = append(cmd.Args, s)
		if cmd.Subcommand == "" && !strings.HasPrefix(s, "-") {
			cmd.Subcommand = s
		}
	}
	return cmd
}

func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				if lit, ok := qp.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		case *syntax.ParamExp:
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			sb.WriteString("$()")
		}
	}
	return sb.String()
}

// BuildPattern renders a command as its most-specific bash permission
// pattern, e.g. Command{Name: "git", Subcommand: "commit"} -> "git commit *".
func BuildPattern(cmd Command) string {
	if cmd.Subcommand == "" {
		return cmd.Name
	}
	return cmd.Name + " " + cmd.Subcommand + " *"
}

// BuildPatterns renders the deduplicated set of patterns for a batch of
// commands, skipping "cd", so a directory change never needs a bash
// permission of its own.
func BuildPatterns(commands []Command) []string {
	seen := make(map[string]bool, len(commands))
	var out []string
	for _, cmd := range commands {
		if cmd.Name == "cd" {
			continue
		}
		pattern := BuildPattern(cmd)
		if !seen[pattern] {
			seen[pattern] = true
			out = append(out, pattern)
		}
	}
	return out
}

// MatchBashPermission looks up the action for cmd, trying patterns from
// most to least specific: "name subcommand *", "name *", "name", "*".
// Unmatched commands fall back to ActionAsk.
func MatchBashPermission(cmd Command, perms BashPermissions) Action {
	candidates := []string{
		cmd.Name + " " + cmd.Subcommand + " *",
		cmd.Name + " *",
		cmd.Name,
		"*",
	}
	for _, pattern := range candidates {
		if action, ok := perms[pattern]; ok {
			return action
		}
	}
	return ActionAsk
}
