package notices

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("notices.New: %v", err)
	}

	out := c.Render("move-rejected", "cell occupied")
	if !strings.Contains(out, "cell occupied") {
		t.Fatalf("expected detail in rendered notice, got %q", out)
	}
	if out == "cell occupied" {
		t.Fatalf("template not applied: %q", out)
	}

	if got := c.Render("room-deleted", ""); got == "" {
		t.Fatalf("expected non-empty default notice")
	}
}

func TestRenderUnknownKeyFallsBack(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("notices.New: %v", err)
	}
	if got := c.Render("no-such-key", "raw detail"); got != "raw detail" {
		t.Fatalf("expected raw fallback, got %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := "notice:\n  room-deleted: \"Phong da bi dong.\"\n"
	if err := os.WriteFile(filepath.Join(dir, "messages.vi.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("notices.New with overrides: %v", err)
	}
	if got := c.Render("room-deleted", ""); got != "Phong da bi dong." {
		t.Fatalf("override not applied, got %q", got)
	}
	// keys absent from the override keep their defaults
	if got := c.Render("undo-approved", ""); !strings.Contains(got, "rolled back") {
		t.Fatalf("default lost after override, got %q", got)
	}
}
