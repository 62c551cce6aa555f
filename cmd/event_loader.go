package cmd

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadEventPayload reads a YAML or JSON event file into a generic object.
func loadEventPayload(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("event file %s is empty", path)
	}
	var payload map[string]interface{}
	if err := yaml.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, fmt.Errorf("parse event file: %w", err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("event file %s produced empty payload", path)
	}
	return payload, nil
}
