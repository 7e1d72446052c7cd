package roster

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	r, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	avatar, controller := r.Pick("easy")
	if avatar != "robot-rookie" || controller != "ai" {
		t.Fatalf("unexpected pick: %s/%s", avatar, controller)
	}
	if a2, _ := r.Pick("EASY"); a2 != avatar {
		t.Fatalf("pick should be deterministic and case-insensitive")
	}
	if got := len(r.Avatars("intermediate")); got != 2 {
		t.Fatalf("expected 2 intermediate avatars, got %d", got)
	}
	if a, _ := r.Pick("unknown"); a != "robot" {
		t.Fatalf("expected fallback avatar, got %s", a)
	}
}

func TestOverrideDirReplacesTier(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "10-easy.yaml"), []byte("controller: bot\ntiers:\n  easy: [custom-droid]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	avatar, controller := r.Pick("easy")
	if avatar != "custom-droid" || controller != "bot" {
		t.Fatalf("override not applied: %s/%s", avatar, controller)
	}
	if a, _ := r.Pick("expert"); a != "robot-grandmaster" {
		t.Fatalf("untouched tier changed: %s", a)
	}
}

func TestOverrideRejectsEmptyTier(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yml"), []byte("tiers:\n  easy: []\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected error for empty tier")
	}
}
