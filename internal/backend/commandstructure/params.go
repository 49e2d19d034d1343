package commandstructure

import (
	"fmt"
	"strconv"
	"strings"
)

// GetStringParam safely extracts a string parameter from the params map
func GetStringParam(params map[string]any, key string, defaultValue string) string {
	if val, ok := params[key]; ok {
		if strVal, ok := val.(string); ok {
			return strVal
		}
	}
	return defaultValue
}

// GetIntParam safely extracts an int parameter from the params map.
// Numeric strings are accepted since values may come from expanded environment variables.
func GetIntParam(params map[string]any, key string, defaultValue int) int {
	if val, ok := params[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return i
			}
		}
	}
	return defaultValue
}

// GetOptionalPositiveIntParam returns nil when the key is absent and an error
// when it is present but not a positive integer.
func GetOptionalPositiveIntParam(params map[string]any, key string) (*int, error) {
	if _, ok := params[key]; !ok {
		return nil, nil
	}
	v := GetIntParam(params, key, 0)
	if v <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %v", key, params[key])
	}
	return &v, nil
}
