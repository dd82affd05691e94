// Package weather provides a demo weather tool with simulated readings.
// It exists to exercise the tool-calling contract end to end without an
// external API key.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"

	mask "github.com/maskagent/mask"
)

var (
	temps      = []int{20, 22, 18, 25, 30, 15}
	conditions = []string{"Sunny", "Cloudy", "Rainy", "Partly Cloudy"}
)

// Tool reports simulated current weather for a named location.
type Tool struct {
	// pick chooses an index in [0, n); overridable for deterministic tests.
	pick func(n int) int
}

// New creates the weather tool.
func New() *Tool {
	return &Tool{pick: rand.Intn}
}

func (t *Tool) Definitions() []mask.ToolDefinition {
	return []mask.ToolDefinition{{
		Name:        "get_weather",
		Description: "Fetches the current weather for a specific location. Takes a city name, never a URL.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"location":{"type":"string","description":"The city and state, e.g. San Francisco, CA"}},"required":["location"]}`),
	}}
}

func (t *Tool) Execute(ctx context.Context, _ string, args json.RawMessage) (mask.ToolResult, error) {
	var params struct {
		Location string `json:"location"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return mask.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}
	if params.Location == "" {
		params.Location = "Unknown Location"
	}

	temp := temps[t.pick(len(temps))]
	condition := conditions[t.pick(len(conditions))]
	return mask.ToolResult{
		Content: fmt.Sprintf("The current weather in %s is %d°C and %s.", params.Location, temp, condition),
	}, nil
}

var _ mask.Tool = (*Tool)(nil)
