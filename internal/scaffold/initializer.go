package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codeworkout/nbfix/internal/config"
	"github.com/codeworkout/nbfix/internal/printer"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*
var templatesFS embed.FS

// Initialize writes a starter nbfix.yml into dir with root_dir pointing at
// rootDir. If force is true an existing nbfix.yml is replaced.
// The content is validated before anything on disk changes.
// Returns the path of the written file.
func Initialize(dir, rootDir string, force bool) (string, error) {
	path := filepath.Join(dir, config.DefaultPath)

	content, err := renderTemplate(rootDir)
	if err != nil {
		return "", err
	}

	if _, err := config.Parse(content); err != nil {
		return "", fmt.Errorf("generated %s is not a valid configuration: %w", config.DefaultPath, err)
	}

	if force {
		announceReplace(path)
	}

	if err := writeFile(path, content); err != nil {
		return "", err
	}

	return path, nil
}

// announceReplace warns when an existing configuration is about to be replaced
func announceReplace(path string) {
	if _, err := os.Stat(path); err == nil {
		printer.Warning("Replacing existing %s...\n", filepath.Base(path))
	}
}

// writeFile writes content next to path and renames it into place, so a
// failed write never leaves a partial configuration behind
func writeFile(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".nbfix-*.yml")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// renderTemplate fills the root_dir entry into the embedded template. The
// entry is emitted by the YAML encoder with a double-quoted value, so any
// path reads back unchanged.
func renderTemplate(rootDir string) ([]byte, error) {
	tmpl, err := templatesFS.ReadFile("templates/nbfix.yml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read nbfix.yml template: %w", err)
	}
	if rootDir == "" {
		rootDir = config.DefaultRootDir
	}

	entry, err := yaml.Marshal(&yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "root_dir"},
			{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: rootDir},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("invalid root directory %q: %w", rootDir, err)
	}

	return bytes.ReplaceAll(tmpl, []byte("{{ROOT_DIR_ENTRY}}"), bytes.TrimRight(entry, "\n")), nil
}

// PrintSuccess prints the success message for a created configuration
func PrintSuccess(path string) {
	printer.Success("Created %s\n", path)
	printer.Println("\nNext steps:")
	printer.Println("  1. Adjust root_dir and files in nbfix.yml")
	printer.Println("  2. Run 'nbfix check' to see which notebooks need repair")
	printer.Println("  3. Run 'nbfix' to repair them")
}
