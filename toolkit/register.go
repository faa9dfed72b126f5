package toolkit

import (
	toolrelay "github.com/armatrix/toolrelay-go"
)

// RegisterAll registers the core demo tools: weather, echo and sleep.
func RegisterAll(registry *toolrelay.Registry) {
	toolrelay.RegisterTool(registry, &WeatherTool{})
	toolrelay.RegisterTool(registry, &EchoTool{})
	toolrelay.RegisterTool(registry, &SleepTool{})
}

// Options configures the optional tools.
type Options struct {
	// GlobRoot enables the glob tool, rooted at this directory.
	GlobRoot string
}

// RegisterConfigurable registers the core set plus the optional tools
// enabled by opts.
func RegisterConfigurable(registry *toolrelay.Registry, opts Options) {
	RegisterAll(registry)
	if opts.GlobRoot != "" {
		toolrelay.RegisterTool(registry, &GlobTool{Root: opts.GlobRoot})
	}
}
