package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

func printJSON(value interface{}) error {
	return writeJSON(os.Stdout, value)
}

func writeJSON(w io.Writer, value interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return fmt.Errorf("encode json output: %w", err)
	}
	return nil
}

func printStdoutf(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	if err != nil {
		return fmt.Errorf("write stdout: %w", err)
	}
	return nil
}

func requireNonEmpty(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}
