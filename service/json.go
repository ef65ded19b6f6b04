package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ToJSON writes v, indented, to the file path (its directory is created if needed)
func ToJSON(v interface{}, path string) error {
	vb, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("ToJSON.Marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("ToJSON.MkdirAll: %w", err)
	}
	if err := os.WriteFile(path, vb, 0644); err != nil {
		return fmt.Errorf("ToJSON.WriteFile: %w", err)
	}
	return nil
}
