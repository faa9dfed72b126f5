package toolkit

import (
	"context"
	"fmt"
	"time"

	toolrelay "github.com/armatrix/toolrelay-go"
)

// SleepInput is the typed input for the sleep tool.
type SleepInput struct {
	Duration string `json:"duration" jsonschema:"required,description=How long to sleep, e.g. 250ms or 2s"`
}

// SleepTool waits out a duration or the call's context, whichever ends
// first. It exists for timeout and cancellation drills against a live
// relay.
type SleepTool struct{}

var _ toolrelay.Tool[SleepInput] = (*SleepTool)(nil)

const maxSleep = 10 * time.Minute

func (t *SleepTool) Name() string        { return "sleep" }
func (t *SleepTool) Description() string { return "Sleep for a duration, honoring cancellation" }

func (t *SleepTool) Execute(ctx context.Context, input SleepInput) (*toolrelay.ToolResult, error) {
	d, err := time.ParseDuration(input.Duration)
	if err != nil {
		return toolrelay.ErrorResult(fmt.Sprintf("bad duration: %s", err.Error())), nil
	}
	if d < 0 || d > maxSleep {
		return toolrelay.ErrorResult(fmt.Sprintf("duration must be between 0 and %s", maxSleep)), nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return toolrelay.TextResult(fmt.Sprintf("slept %s", d)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
