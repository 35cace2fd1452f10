package cmd

import (
	"encoding/json"
	"fmt"
	"os"
)

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "-"
	}
	return name
}
