// Package scaffold writes the starter files of a marketplace deployment:
// nest.yml, a development catalog.yml and .env.example.
package scaffold

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/config"
	"github.com/ronak-kumar-sing/student-nest-new-sub000/internal/directory"
)

//go:embed templates/*
var templatesFS embed.FS

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Template    string
	Permissions os.FileMode
}

// Files lists what Initialize writes, relative to the target directory.
var Files = []FileInfo{
	{Path: "nest.yml", Template: "templates/nest.yml.tmpl", Permissions: 0644},
	{Path: "catalog.yml", Template: "templates/catalog.yml.tmpl", Permissions: 0644},
	{Path: ".env.example", Template: "templates/env.tmpl", Permissions: 0600},
}

// Initialize writes the starter files into dir and checks that they load.
// If force is true, existing files are overwritten.
func Initialize(dir string, force bool) error {
	if !force {
		if err := CheckExisting(dir); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	for _, f := range Files {
		content, err := templatesFS.ReadFile(f.Template)
		if err != nil {
			return fmt.Errorf("failed to read %s template: %w", f.Path, err)
		}
		path := filepath.Join(dir, f.Path)
		if err := os.WriteFile(path, content, f.Permissions); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	return validateCreatedFiles(dir)
}

// validateCreatedFiles loads the written files the way nestd and nestctl will.
func validateCreatedFiles(dir string) error {
	if _, err := config.Load(filepath.Join(dir, "nest.yml")); err != nil {
		return fmt.Errorf("created nest.yml does not load: %w", err)
	}
	if _, err := directory.LoadSeed(filepath.Join(dir, "catalog.yml")); err != nil {
		return fmt.Errorf("created catalog.yml does not load: %w", err)
	}
	return nil
}

// PrintSuccess prints the created files and next steps
func PrintSuccess(w io.Writer, dir string) {
	fmt.Fprintln(w, "\n✅ Successfully initialized StudentNest configuration!")
	fmt.Fprintln(w, "\nCreated:")
	for _, f := range Files {
		fmt.Fprintf(w, "  ✓ %s\n", filepath.Join(dir, f.Path))
	}
	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintln(w, "  1. Copy .env.example to .env and set real secrets")
	fmt.Fprintln(w, "  2. Load the development catalog: nestctl seed -f catalog.yml")
	fmt.Fprintln(w, "  3. Start the server: nestd --config nest.yml")
}
