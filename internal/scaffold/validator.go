package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CheckExisting returns an error naming the starter files already present in dir.
func CheckExisting(dir string) error {
	var existingFiles []string
	for _, f := range Files {
		if _, err := os.Stat(filepath.Join(dir, f.Path)); err == nil {
			existingFiles = append(existingFiles, f.Path)
		}
	}

	if len(existingFiles) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("already initialized\n\nFound existing")
	if len(existingFiles) == 1 {
		fmt.Fprintf(&b, ": %s\n", existingFiles[0])
	} else {
		b.WriteString(" files:\n")
		for _, file := range existingFiles {
			fmt.Fprintf(&b, "  - %s\n", file)
		}
	}
	b.WriteString("\nUse 'nestctl init --force' to overwrite them")
	return fmt.Errorf("%s", b.String())
}
