package tool

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/toolpolicy"
)

const questionDescription = `Asks the user a clarifying question and waits for their answer, per the engine's WaitingForEvent state.

Usage:
- Provide a short header and the question text
- options lists the choices to present; multiple allows selecting more than one
- When options is empty, the answer is freeform text`

var questionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"header": {"type": "string", "description": "Short label for the question"},
		"text": {"type": "string", "description": "The question to ask"},
		"options": {"type": "array", "items": {"type": "string"}, "description": "Choices to present; empty means freeform"},
		"multiple": {"type": "boolean", "description": "Allow selecting more than one option"}
	},
	"required": ["text"]
}`)

// QuestionTool suspends the turn to ask the user something, via
// Context.AskQuestion (stdin/stdout in headless mode, a client round trip
// in server mode).
type QuestionTool struct{}

func NewQuestionTool() *QuestionTool { return &QuestionTool{} }

func (t *QuestionTool) Name() string { return "question" }

func (t *QuestionTool) Definition() Definition {
	return Definition{Description: questionDescription, Schema: questionSchema}
}

func (t *QuestionTool) RequiredCapabilities() []toolpolicy.Capability { return nil }

type questionInput struct {
	Header   string   `json:"header,omitempty"`
	Text     string   `json:"text"`
	Options  []string `json:"options,omitempty"`
	Multiple bool     `json:"multiple,omitempty"`
}

func (t *QuestionTool) Call(ctx context.Context, argsJSON json.RawMessage, tc *Context) (string, error) {
	var params questionInput
	if err := json.Unmarshal(argsJSON, &params); err != nil {
		return "", apperr.InvalidRequestf("invalid question arguments: %v", err)
	}
	if tc == nil || tc.AskQuestion == nil {
		return "", apperr.InvalidRequestf("no question channel configured for this session")
	}

	id := tc.SessionID + "-question"
	answers, err := tc.AskQuestion(ctx, id, params.Text, params.Header, params.Options, params.Multiple)
	if err != nil {
		return "", err
	}
	return strings.Join(answers, ", "), nil
}
