package toolrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/armatrix/toolrelay-go/internal/schema"
)

// Tool is the generic interface for relay tools. The type parameter T
// defines the input struct that call arguments are deserialized into;
// its json and jsonschema struct tags drive the generated input schema.
type Tool[T any] interface {
	Name() string
	Description() string
	Execute(ctx context.Context, input T) (*ToolResult, error)
}

// ToolResult is the output of a tool execution. IsError marks a failure
// in the tool's own domain (unknown city, file not found); the server
// reports it as a tool_execution_failed response while the session stays
// healthy. A Go error from Execute means the same on the wire but is
// also logged server-side.
type ToolResult struct {
	Content string
	IsError bool
}

// TextResult is a convenience constructor for a successful text result.
func TextResult(text string) *ToolResult {
	return &ToolResult{Content: text}
}

// ErrorResult is a convenience constructor for a failed tool result.
func ErrorResult(text string) *ToolResult {
	return &ToolResult{Content: text, IsError: true}
}

// toolEntry is the type-erased wrapper stored in the registry.
type toolEntry struct {
	name        string
	description string
	schema      json.RawMessage
	compiled    *gojsonschema.Schema
	execute     func(ctx context.Context, raw json.RawMessage) (*ToolResult, error)
}

func (e *toolEntry) info() ToolInfo {
	return ToolInfo{Name: e.name, Description: e.description, InputSchema: e.schema}
}

// Registry manages registered tools. It is concurrent-safe; dispatch
// never holds the lock while a handler runs.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*toolEntry
	order []string // preserve registration order
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*toolEntry),
	}
}

// RegisterTool registers a generic tool into the registry.
// The input type T is used to auto-generate a JSON Schema, which call
// arguments are validated against before Execute runs. Registering a
// name twice replaces the earlier entry.
func RegisterTool[T any](r *Registry, tool Tool[T]) {
	raw, err := schema.GenerateJSON[T]()
	if err != nil {
		raw = json.RawMessage(`{"type":"object"}`)
	}
	entry := &toolEntry{
		name:        tool.Name(),
		description: tool.Description(),
		schema:      raw,
		compiled:    compileSchema(raw),
		execute: func(ctx context.Context, raw json.RawMessage) (*ToolResult, error) {
			var input T
			if err := json.Unmarshal(raw, &input); err != nil {
				return ErrorResult(fmt.Sprintf("invalid input: %s", err.Error())), nil
			}
			return tool.Execute(ctx, input)
		},
	}
	r.add(entry)
}

// RegisterFunc registers a plain function as a tool, deriving the input
// schema from T the same way RegisterTool does.
func RegisterFunc[T any](r *Registry, name, description string, fn func(ctx context.Context, input T) (*ToolResult, error)) {
	RegisterTool[T](r, &funcTool[T]{name: name, description: description, fn: fn})
}

type funcTool[T any] struct {
	name        string
	description string
	fn          func(ctx context.Context, input T) (*ToolResult, error)
}

func (t *funcTool[T]) Name() string        { return t.name }
func (t *funcTool[T]) Description() string { return t.description }

func (t *funcTool[T]) Execute(ctx context.Context, input T) (*ToolResult, error) {
	return t.fn(ctx, input)
}

// RegisterRaw registers a tool with a pre-built JSON Schema and execute
// function. Dynamic tool sources that cannot use the generic Tool[T]
// interface go through here. A nil schema skips argument validation.
func (r *Registry) RegisterRaw(
	name, description string,
	inputSchema json.RawMessage,
	execute func(ctx context.Context, raw json.RawMessage) (*ToolResult, error),
) error {
	entry := &toolEntry{
		name:        name,
		description: description,
		schema:      inputSchema,
		execute:     execute,
	}
	if len(inputSchema) > 0 {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(inputSchema))
		if err != nil {
			return fmt.Errorf("toolrelay: compile schema for %q: %w", name, err)
		}
		entry.compiled = compiled
	}
	r.add(entry)
	return nil
}

func compileSchema(raw json.RawMessage) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil
	}
	return compiled
}

func (r *Registry) add(entry *toolEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[entry.name]; !exists {
		r.order = append(r.order, entry.name)
	}
	r.tools[entry.name] = entry
}

// Lookup returns the ToolInfo for a registered name.
func (r *Registry) Lookup(name string) (ToolInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tools[name]
	if !ok {
		return ToolInfo{}, false
	}
	return entry.info(), true
}

// List returns all registered tools in registration order.
func (r *Registry) List() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.tools[name].info())
	}
	return infos
}

// Names returns the names of all registered tools in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Search finds tools whose name or description contains the query
// (case-insensitive), in registration order.
func (r *Registry) Search(query string) []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q := strings.ToLower(query)
	var matches []ToolInfo
	for _, name := range r.order {
		entry := r.tools[name]
		if strings.Contains(strings.ToLower(entry.name), q) ||
			strings.Contains(strings.ToLower(entry.description), q) {
			matches = append(matches, entry.info())
		}
	}
	return matches
}

func (r *Registry) get(name string) (*toolEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tools[name]
	return entry, ok
}

// dispatch runs one call end to end: lookup, argument validation,
// execution, result encoding. The returned RelayError carries the wire
// taxonomy; transport and session concerns stay with the caller.
func (r *Registry) dispatch(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, *RelayError) {
	entry, ok := r.get(name)
	if !ok {
		return nil, relayErrorf(ErrorKindUnknownTool, "tool not found: %s", name)
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if entry.compiled != nil {
		res, err := entry.compiled.Validate(gojsonschema.NewBytesLoader(args))
		if err != nil {
			return nil, relayErrorf(ErrorKindInvalidArguments, "arguments are not valid JSON: %v", err)
		}
		if !res.Valid() {
			return nil, relayErrorf(ErrorKindInvalidArguments, "%s", joinValidationErrors(res))
		}
	}
	out, err := entry.execute(ctx, args)
	if err != nil {
		return nil, relayErrorf(ErrorKindToolExecutionFailed, "%s", err.Error())
	}
	if out == nil {
		out = TextResult("")
	}
	if out.IsError {
		return nil, relayErrorf(ErrorKindToolExecutionFailed, "%s", out.Content)
	}
	encoded, err := json.Marshal(out.Content)
	if err != nil {
		return nil, relayErrorf(ErrorKindToolExecutionFailed, "encode result: %v", err)
	}
	return encoded, nil
}

// joinValidationErrors flattens schema violations into one message.
func joinValidationErrors(res *gojsonschema.Result) string {
	parts := make([]string, 0, len(res.Errors()))
	for _, resultError := range res.Errors() {
		parts = append(parts, resultError.String())
	}
	return strings.Join(parts, "; ")
}
