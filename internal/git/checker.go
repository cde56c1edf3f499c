package git

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Checker inspects the Git state of a notebook directory
type Checker struct {
	dir string
}

// NewChecker creates a checker that runs git from dir
func NewChecker(dir string) *Checker {
	return &Checker{dir: dir}
}

// IsGitRepository checks if the checker's directory is within a Git repository
func (c *Checker) IsGitRepository() (bool, error) {
	cmd := exec.Command("git", "-C", c.dir, "rev-parse", "--git-dir")
	err := cmd.Run()
	if err != nil {
		// Check if error is because git command not found
		if _, ok := err.(*exec.Error); ok {
			return false, fmt.Errorf("git not found in PATH\nThe uncommitted-changes guard requires Git.\nInstall Git: https://git-scm.com/downloads")
		}
		// Not in a Git repository
		return false, nil
	}
	return true, nil
}

// GetGitRoot returns the absolute path to the Git repository root
func (c *Checker) GetGitRoot() (string, error) {
	cmd := exec.Command("git", "-C", c.dir, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get Git root: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// DirtyFiles returns the porcelain status lines for paths that have
// uncommitted or untracked changes. An empty result means all are clean.
func (c *Checker) DirtyFiles(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	args := []string{"-C", c.dir, "status", "--porcelain", "--"}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		args = append(args, abs)
	}

	output, err := exec.Command("git", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to check Git status: %w", err)
	}

	var dirty []string
	for _, line := range strings.Split(string(output), "\n") {
		if len(strings.TrimSpace(line)) < 3 {
			continue
		}
		dirty = append(dirty, line)
	}
	return dirty, nil
}

// DirtyError lists notebooks that would be overwritten while holding
// uncommitted work.
type DirtyError struct {
	Files []string
}

func (e *DirtyError) Error() string {
	return fmt.Sprintf("%d notebook(s) have uncommitted changes", len(e.Files))
}

// Details formats the dirty files for error messages, grouping modified and
// untracked entries.
func (e *DirtyError) Details() string {
	var modified, untracked []string
	for _, line := range e.Files {
		status := line[:2]
		file := strings.TrimSpace(line[2:])

		if strings.HasPrefix(status, "??") {
			untracked = append(untracked, file)
		} else {
			modified = append(modified, file)
		}
	}

	var parts []string
	if len(modified) > 0 {
		parts = append(parts, "Uncommitted changes:")
		for _, file := range modified {
			parts = append(parts, fmt.Sprintf(" M %s", file))
		}
	}
	if len(untracked) > 0 {
		if len(parts) > 0 {
			parts = append(parts, "")
		}
		parts = append(parts, "Untracked files:")
		for _, file := range untracked {
			parts = append(parts, fmt.Sprintf("?? %s", file))
		}
	}

	return strings.Join(parts, "\n")
}

// EnsureClean fails when the directory is not a Git repository or when any
// of paths has uncommitted changes. Returns *DirtyError in the latter case.
func (c *Checker) EnsureClean(paths []string) error {
	isRepo, err := c.IsGitRepository()
	if err != nil {
		return err
	}
	if !isRepo {
		return fmt.Errorf("not a Git repository: %s\n\nThe uncommitted-changes guard needs the notebooks under version control", c.dir)
	}

	dirty, err := c.DirtyFiles(paths)
	if err != nil {
		return err
	}
	if len(dirty) > 0 {
		return &DirtyError{Files: dirty}
	}

	return nil
}
