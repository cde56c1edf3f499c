package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/codeworkout/nbfix/internal/config"
)

// CheckExisting returns an error if dir already contains nbfix.yml
func CheckExisting(dir string) error {
	path := filepath.Join(dir, config.DefaultPath)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration already exists: %s\n\nUse 'nbfix init --force' to overwrite it", path)
	}
	return nil
}
