package toolkit

import (
	"context"
	"fmt"
	"strings"

	toolrelay "github.com/armatrix/toolrelay-go"
)

// EchoInput is the typed input for the echo tool.
type EchoInput struct {
	Message string `json:"message" jsonschema:"required,description=Text to echo back"`
	Repeat  int    `json:"repeat,omitempty" jsonschema:"description=Number of copies to return (1-100)"`
}

// EchoTool returns its message, optionally repeated one copy per line.
type EchoTool struct{}

var _ toolrelay.Tool[EchoInput] = (*EchoTool)(nil)

const maxEchoRepeat = 100

func (t *EchoTool) Name() string        { return "echo" }
func (t *EchoTool) Description() string { return "Echo a message back to the caller" }

func (t *EchoTool) Execute(_ context.Context, input EchoInput) (*toolrelay.ToolResult, error) {
	repeat := input.Repeat
	if repeat == 0 {
		repeat = 1
	}
	if repeat < 1 || repeat > maxEchoRepeat {
		return toolrelay.ErrorResult(fmt.Sprintf("repeat must be between 1 and %d", maxEchoRepeat)), nil
	}
	if repeat == 1 {
		return toolrelay.TextResult(input.Message), nil
	}
	parts := make([]string, repeat)
	for i := range parts {
		parts[i] = input.Message
	}
	return toolrelay.TextResult(strings.Join(parts, "\n")), nil
}
