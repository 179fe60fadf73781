package oracle

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSessionDayDir(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, time.March, 7, 10, 0, 0, 0, time.UTC)
	got := SessionDayDir("/home/u/.codex/sessions", ts)
	want := filepath.Join("/home/u/.codex/sessions", "2025", "03", "07")
	if got != want {
		t.Fatalf("SessionDayDir: got %q want %q", got, want)
	}
}

func TestListSessionFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	day := SessionDayDir(root, time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC))
	if err := os.MkdirAll(day, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"b.jsonl", "a.jsonl"} {
		if err := os.WriteFile(filepath.Join(day, name), []byte("{}\n"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	files, err := ListSessionFiles(root)
	if err != nil {
		t.Fatalf("ListSessionFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files want 2", len(files))
	}
	if files[0].Path != "2025/01/02/a.jsonl" || files[1].Path != "2025/01/02/b.jsonl" {
		t.Fatalf("paths: got %q, %q", files[0].Path, files[1].Path)
	}
	if files[0].Modified.IsZero() {
		t.Fatalf("Modified: zero")
	}
}

func TestListSessionFilesMissingRoot(t *testing.T) {
	t.Parallel()

	files, err := ListSessionFiles(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("ListSessionFiles: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("got %d files want 0", len(files))
	}
}

func TestResolveSessionFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	day := filepath.Join(root, "2025", "01", "02")
	if err := os.MkdirAll(day, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	target := filepath.Join(day, "s.jsonl")
	if err := os.WriteFile(target, []byte("{}"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ResolveSessionFile(root, "2025/01/02/s.jsonl")
	if err != nil {
		t.Fatalf("ResolveSessionFile: %v", err)
	}
	if got != target {
		t.Fatalf("got %q want %q", got, target)
	}
}

func TestResolveSessionFileRejectsTraversal(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if _, err := ResolveSessionFile(root, "../../etc/passwd"); err == nil {
		t.Fatalf("expected traversal error")
	}
}

func TestResolveSessionFileMissing(t *testing.T) {
	t.Parallel()

	if _, err := ResolveSessionFile(t.TempDir(), "2025/01/02/missing.jsonl"); err == nil {
		t.Fatalf("expected missing file error")
	}
}
