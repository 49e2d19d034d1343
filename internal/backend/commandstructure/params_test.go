package commandstructure

import (
	"testing"
)

func TestGetStringParam(t *testing.T) {
	params := map[string]any{
		"key1": "value1",
		"key2": 123,
	}

	if val := GetStringParam(params, "key1", "default"); val != "value1" {
		t.Errorf("Expected 'value1', got '%s'", val)
	}
	if val := GetStringParam(params, "key2", "default"); val != "default" {
		t.Errorf("Expected 'default', got '%s'", val)
	}
	if val := GetStringParam(params, "key3", "default"); val != "default" {
		t.Errorf("Expected 'default', got '%s'", val)
	}
}

func TestGetIntParam(t *testing.T) {
	params := map[string]any{
		"int":     123,
		"int64":   int64(456),
		"float":   float64(789),
		"numeric": " 42 ",
		"text":    "not-an-int",
	}

	tests := []struct {
		key  string
		want int
	}{
		{"int", 123},
		{"int64", 456},
		{"float", 789},
		{"numeric", 42},
		{"text", 999},
		{"missing", 999},
	}
	for _, tt := range tests {
		if val := GetIntParam(params, tt.key, 999); val != tt.want {
			t.Errorf("GetIntParam(%q) = %d, expected %d", tt.key, val, tt.want)
		}
	}
}

func TestGetOptionalPositiveIntParam(t *testing.T) {
	params := map[string]any{"width": 640, "height": 0}

	width, err := GetOptionalPositiveIntParam(params, "width")
	if err != nil || width == nil || *width != 640 {
		t.Errorf("Expected width 640, got %v (err %v)", width, err)
	}

	if _, err := GetOptionalPositiveIntParam(params, "height"); err == nil {
		t.Error("Expected error for non-positive value")
	}

	missing, err := GetOptionalPositiveIntParam(params, "depth")
	if err != nil || missing != nil {
		t.Errorf("Expected nil for missing key, got %v (err %v)", missing, err)
	}
}
