package toolkit

import (
	"context"
	"fmt"
	"strings"

	toolrelay "github.com/armatrix/toolrelay-go"
)

// WeatherInput is the typed input for the weather tool.
type WeatherInput struct {
	Location string `json:"location" jsonschema:"required,description=City name to get weather for"`
}

// WeatherTool serves canned weather reports for a handful of cities.
// Unknown locations are a normal result, not an error; the relay's error
// taxonomy is reserved for calls that could not run at all.
type WeatherTool struct{}

var _ toolrelay.Tool[WeatherInput] = (*WeatherTool)(nil)

func (t *WeatherTool) Name() string        { return "get_weather" }
func (t *WeatherTool) Description() string { return "Get current weather for a location" }

var weatherByCity = map[string]string{
	"london":   "Rainy with a temperature of 15°C",
	"tokyo":    "Sunny with a temperature of 22°C",
	"new york": "Cloudy with a temperature of 18°C",
	"berlin":   "Windy with a temperature of 12°C",
}

func (t *WeatherTool) Execute(_ context.Context, input WeatherInput) (*toolrelay.ToolResult, error) {
	if input.Location == "" {
		return toolrelay.ErrorResult("location is required"), nil
	}
	if report, ok := weatherByCity[strings.ToLower(input.Location)]; ok {
		return toolrelay.TextResult(report), nil
	}
	return toolrelay.TextResult(fmt.Sprintf("Weather data for %s is not available", input.Location)), nil
}
