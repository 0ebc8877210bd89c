package haconfig

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRead(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "automations.yaml"), []byte("- alias: test\n"), 0644)

	e := NewEditor(dir, nil, nil)
	got, err := e.Read("automations.yaml")
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if got != "- alias: test\n" {
		t.Errorf("content = %q", got)
	}
}

func TestRead_NotAllowed(t *testing.T) {
	e := NewEditor(t.TempDir(), nil, nil)
	_, err := e.Read("secrets.yaml")
	if !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("err = %v, want ErrNotAllowed", err)
	}
}

func TestRead_Missing(t *testing.T) {
	e := NewEditor(t.TempDir(), nil, nil)
	if _, err := e.Read("scenes.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWrite_ValidationPasses(t *testing.T) {
	dir := t.TempDir()
	e := NewEditor(dir, []string{"true"}, nil)

	result, err := e.Write(context.Background(), "scripts.yaml", "new: content\n")
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if result.Restored || result.Unvalidated != "" {
		t.Errorf("result = %+v, want clean write", result)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "scripts.yaml"))
	if string(data) != "new: content\n" {
		t.Errorf("file content = %q", data)
	}
}

func TestWrite_ValidationFailsRestoresBackup(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "configuration.yaml"), []byte("old: good\n"), 0644)

	e := NewEditor(dir, []string{"false"}, nil)
	result, err := e.Write(context.Background(), "configuration.yaml", "new: broken\n")
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if !result.Restored {
		t.Fatalf("result = %+v, want Restored", result)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "configuration.yaml"))
	if string(data) != "old: good\n" {
		t.Errorf("file content = %q, want backup restored", data)
	}
}

func TestWrite_ValidatorMissingKeepsWrite(t *testing.T) {
	dir := t.TempDir()
	e := NewEditor(dir, []string{"/nonexistent/validator-binary"}, nil)

	result, err := e.Write(context.Background(), "sensors.yaml", "sensor: data\n")
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if result.Unvalidated == "" {
		t.Fatalf("result = %+v, want Unvalidated flag", result)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "sensors.yaml"))
	if string(data) != "sensor: data\n" {
		t.Errorf("file content = %q, want write kept", data)
	}
}

func TestWrite_NoValidatorConfigured(t *testing.T) {
	e := NewEditor(t.TempDir(), nil, nil)
	result, err := e.Write(context.Background(), "scenes.yaml", "x: 1\n")
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if result.Unvalidated == "" {
		t.Errorf("result = %+v, want Unvalidated when no validator configured", result)
	}
}

func TestWrite_NotAllowed(t *testing.T) {
	e := NewEditor(t.TempDir(), nil, nil)
	_, err := e.Write(context.Background(), "../../../etc/passwd", "x")
	if !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("err = %v, want ErrNotAllowed", err)
	}
}

func TestAllowedFiles_Sorted(t *testing.T) {
	files := AllowedFiles()
	if len(files) != 5 {
		t.Fatalf("got %d files, want 5", len(files))
	}
	for i := 1; i < len(files); i++ {
		if files[i] < files[i-1] {
			t.Errorf("files not sorted: %v", files)
		}
	}
}
