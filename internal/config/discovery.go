package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Files returns the configuration fragments for source in merge order.
// A file source yields itself; a directory yields its regular files
// (following symlinks, not recursing) sorted by name.
func Files(source string) ([]string, error) {
	absPath, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", source, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config source not found: %s: %w", absPath, err)
	}
	if !info.IsDir() {
		return []string{absPath}, nil
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config dir %s: %w", absPath, err)
	}

	var files []string
	for _, entry := range entries {
		path := filepath.Join(absPath, entry.Name())
		if fileExists(path) {
			files = append(files, path)
		}
	}
	return files, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
