// Package haconfig provides guarded read/write access to Home Assistant
// YAML configuration files. Writes are validated with the HA CLI and
// rolled back when validation fails.
package haconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotAllowed is returned for filenames outside the editable set.
var ErrNotAllowed = errors.New("file not allowed")

// allowedFiles is the closed set of editable configuration files.
var allowedFiles = map[string]bool{
	"automations.yaml":   true,
	"configuration.yaml": true,
	"scripts.yaml":       true,
	"scenes.yaml":        true,
	"sensors.yaml":       true,
}

// AllowedFiles returns the editable filenames, sorted, for error messages
// and tool descriptions.
func AllowedFiles() []string {
	names := make([]string, 0, len(allowedFiles))
	for name := range allowedFiles {
		names = append(names, name)
	}
	// Small fixed set; insertion-sort keeps it dependency-free.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
	return names
}

// Editor reads and writes HA config files under the configuration
// directory, validating writes with the configured command.
type Editor struct {
	dir             string
	validateCommand []string
	logger          *slog.Logger
}

// NewEditor creates a config editor. validateCommand is the full argv of
// the validator (typically ["ha", "core", "check"]); empty disables
// validation and writes are flagged as unvalidated.
func NewEditor(dir string, validateCommand []string, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{
		dir:             dir,
		validateCommand: validateCommand,
		logger:          logger.With("component", "haconfig"),
	}
}

// Read returns the content of an allowed config file.
func (e *Editor) Read(filename string) (string, error) {
	if !allowedFiles[filename] {
		return "", fmt.Errorf("%w: %s (permitted: %s)", ErrNotAllowed, filename, strings.Join(AllowedFiles(), ", "))
	}
	data, err := os.ReadFile(filepath.Join(e.dir, filename))
	if os.IsNotExist(err) {
		return "", fmt.Errorf("file not found: %s", filename)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filename, err)
	}
	return string(data), nil
}

// WriteResult reports the outcome of a validated write.
type WriteResult struct {
	// Restored is true when validation failed and the previous content
	// was put back.
	Restored bool
	// Unvalidated is set when the file was written but the validator
	// could not run (missing binary, timeout). The write is kept.
	Unvalidated string
	// ValidationError holds the validator output when validation failed.
	ValidationError string
}

// Write replaces an allowed config file with new content. The previous
// content is kept as a backup; if the validator rejects the new config,
// the backup is restored and the result carries the validator output.
// If the validator cannot run at all, the write is kept but flagged.
func (e *Editor) Write(ctx context.Context, filename, content string) (*WriteResult, error) {
	if !allowedFiles[filename] {
		return nil, fmt.Errorf("%w: %s", ErrNotAllowed, filename)
	}

	path := filepath.Join(e.dir, filename)
	backup, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read backup of %s: %w", filename, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", filename, err)
	}
	e.logger.Info("config file written", "file", filename, "bytes", len(content))

	if len(e.validateCommand) == 0 {
		return &WriteResult{Unvalidated: "no validator configured"}, nil
	}

	output, err := e.validate(ctx)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Config is bad. Put the old content back.
			if restoreErr := os.WriteFile(path, backup, 0o644); restoreErr != nil {
				return nil, fmt.Errorf("validation failed and restore failed: %v (validator: %s)", restoreErr, output)
			}
			e.logger.Warn("validation failed, previous config restored", "file", filename, "output", output)
			return &WriteResult{Restored: true, ValidationError: output}, nil
		}
		// Validator itself could not run. Keep the write but say so.
		e.logger.Warn("validator unavailable, write kept unvalidated", "file", filename, "error", err)
		return &WriteResult{Unvalidated: err.Error()}, nil
	}

	return &WriteResult{}, nil
}

// validate runs the configured validation command with a 30s cap.
func (e *Editor) validate(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.validateCommand[0], e.validateCommand[1:]...)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}
