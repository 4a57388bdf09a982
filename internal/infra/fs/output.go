package fs

import (
	"os"
	"path/filepath"

	"holders-snapshot/internal/infra/apperr"
)

// CreateOutput creates (or truncates) path, making parent directories as needed.
func CreateOutput(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, apperr.IO("create output directory", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, apperr.IO("create output", err)
	}
	return f, nil
}
