package toolkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeatherKnownCity(t *testing.T) {
	tool := &WeatherTool{}

	result, err := tool.Execute(context.Background(), WeatherInput{Location: "London"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Rainy with a temperature of 15°C", result.Content)
}

func TestWeatherCaseInsensitive(t *testing.T) {
	tool := &WeatherTool{}

	result, err := tool.Execute(context.Background(), WeatherInput{Location: "TOKYO"})
	require.NoError(t, err)
	assert.Equal(t, "Sunny with a temperature of 22°C", result.Content)
}

func TestWeatherUnknownCity(t *testing.T) {
	// Unmapped cities are a normal result, not a failure.
	tool := &WeatherTool{}

	result, err := tool.Execute(context.Background(), WeatherInput{Location: "Atlantis"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Weather data for Atlantis is not available", result.Content)
}

func TestWeatherMissingLocation(t *testing.T) {
	tool := &WeatherTool{}

	result, err := tool.Execute(context.Background(), WeatherInput{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
