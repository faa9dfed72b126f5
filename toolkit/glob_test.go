package toolkit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func globFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg", "sub"), 0o755))
	for _, name := range []string{"main.go", "readme.md", "pkg/util.go", "pkg/sub/deep.go"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644))
	}
	return root
}

func TestGlobMatchesRecursively(t *testing.T) {
	tool := &GlobTool{Root: globFixture(t)}

	result, err := tool.Execute(context.Background(), GlobInput{Pattern: "**/*.go"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "main.go\npkg/sub/deep.go\npkg/util.go", result.Content)
}

func TestGlobNoMatches(t *testing.T) {
	tool := &GlobTool{Root: globFixture(t)}

	result, err := tool.Execute(context.Background(), GlobInput{Pattern: "*.rs"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "No files matched the pattern.", result.Content)
}

func TestGlobEmptyPattern(t *testing.T) {
	tool := &GlobTool{Root: globFixture(t)}

	result, err := tool.Execute(context.Background(), GlobInput{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestRegisterConfigurable(t *testing.T) {
	// Core set only.
	srv := newRegistryNames(t, Options{})
	assert.Equal(t, []string{"get_weather", "echo", "sleep"}, srv)

	// Glob joins when a root is configured.
	withGlob := newRegistryNames(t, Options{GlobRoot: t.TempDir()})
	assert.Contains(t, withGlob, "glob")
}
