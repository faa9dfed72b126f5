package toolkit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	toolrelay "github.com/armatrix/toolrelay-go"
)

// GlobInput defines the input for the glob tool.
type GlobInput struct {
	Pattern string `json:"pattern" jsonschema:"required,description=The glob pattern to match files against"`
}

// GlobTool matches files under a fixed root directory using doublestar
// patterns. The root is set at registration time; patterns are evaluated
// against a filesystem rooted there and cannot escape it.
type GlobTool struct {
	Root string
}

var _ toolrelay.Tool[GlobInput] = (*GlobTool)(nil)

func (t *GlobTool) Name() string        { return "glob" }
func (t *GlobTool) Description() string { return "Fast file pattern matching under the configured root" }

func (t *GlobTool) Execute(_ context.Context, input GlobInput) (*toolrelay.ToolResult, error) {
	if input.Pattern == "" {
		return toolrelay.ErrorResult("pattern is required"), nil
	}

	root, err := filepath.Abs(t.Root)
	if err != nil {
		return toolrelay.ErrorResult(fmt.Sprintf("invalid root: %s", err.Error())), nil
	}

	fsys := os.DirFS(root)
	matches, err := doublestar.Glob(fsys, input.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		return toolrelay.ErrorResult(fmt.Sprintf("glob error: %s", err.Error())), nil
	}
	if len(matches) == 0 {
		return toolrelay.TextResult("No files matched the pattern."), nil
	}

	sort.Strings(matches)
	return toolrelay.TextResult(strings.Join(matches, "\n")), nil
}
