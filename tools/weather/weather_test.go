package weather

import (
	"context"
	"encoding/json"
	"testing"
)

func TestExecute(t *testing.T) {
	tool := New()
	tool.pick = func(int) int { return 0 }

	result, err := tool.Execute(context.Background(), "get_weather",
		json.RawMessage(`{"location": "Jakarta"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Error != "" {
		t.Fatalf("result.Error = %q", result.Error)
	}
	want := "The current weather in Jakarta is 20°C and Sunny."
	if result.Content != want {
		t.Errorf("Content = %q, want %q", result.Content, want)
	}
}

func TestExecuteMissingLocation(t *testing.T) {
	tool := New()
	tool.pick = func(int) int { return 1 }

	result, err := tool.Execute(context.Background(), "get_weather", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := "The current weather in Unknown Location is 22°C and Cloudy."
	if result.Content != want {
		t.Errorf("Content = %q, want %q", result.Content, want)
	}
}

func TestExecuteBadArgs(t *testing.T) {
	result, err := New().Execute(context.Background(), "get_weather", json.RawMessage(`not json`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Error == "" {
		t.Error("expected args error in result")
	}
}

func TestDefinitions(t *testing.T) {
	defs := New().Definitions()
	if len(defs) != 1 || defs[0].Name != "get_weather" {
		t.Fatalf("Definitions = %+v", defs)
	}
	var schema map[string]any
	if err := json.Unmarshal(defs[0].InputSchema, &schema); err != nil {
		t.Fatalf("InputSchema is not valid JSON: %v", err)
	}
}
