package atomicfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"courtline/internal/atomicfile"
)

func TestWriteReplacesWithoutLeavingTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")
	if err := atomicfile.WriteJSON(path, map[string]int{"a": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := atomicfile.WriteJSON(path, map[string]int{"a": 2}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{\n  \"a\": 2\n}" {
		t.Fatalf("contents = %q", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestQuarantine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.json")
	moved, err := atomicfile.Quarantine(path, "x")
	if err != nil || moved != "" {
		t.Fatalf("missing file: %q %v", moved, err)
	}
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	moved, err = atomicfile.Quarantine(path, "20240101")
	if err != nil {
		t.Fatalf("quarantine: %v", err)
	}
	if moved != path+".corrupt-20240101" {
		t.Fatalf("moved to %s", moved)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("original should be gone")
	}
}
