package oracle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SessionFile describes one artifact under the session tree.
type SessionFile struct {
	Path     string    `json:"path"` // relative to the session root
	Modified time.Time `json:"modified"`
}

// DefaultSessionRoot returns the date-partitioned tree the codex CLI
// writes session transcripts under.
func DefaultSessionRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".codex", "sessions")
}

// SessionDayDir returns the <root>/<YYYY>/<MM>/<DD> directory for t.
func SessionDayDir(root string, t time.Time) string {
	return filepath.Join(root,
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", int(t.Month())),
		fmt.Sprintf("%02d", t.Day()),
	)
}

// ListSessionFiles enumerates session artifacts under root, sorted by
// relative path. A missing root is an empty listing, not an error.
func ListSessionFiles(root string) ([]SessionFile, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("oracle: empty session root")
	}
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("oracle: stat session root: %w", err)
	}

	var out []SessionFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, SessionFile{
			Path:     filepath.ToSlash(rel),
			Modified: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("oracle: walk session root: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// ResolveSessionFile maps a relative artifact path to an absolute path
// inside root, rejecting traversal outside the tree. Download is a raw
// byte passthrough; callers serve the file as-is.
func ResolveSessionFile(root, rel string) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return "", errors.New("oracle: empty session root")
	}
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", errors.New("oracle: empty session path")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("oracle: resolve session root: %w", err)
	}
	resolved := filepath.Join(absRoot, filepath.FromSlash(rel))
	if resolved != absRoot && !strings.HasPrefix(resolved, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("oracle: session path %q escapes root", rel)
	}

	if _, err := os.Stat(resolved); err != nil {
		return "", fmt.Errorf("oracle: session file %q: %w", rel, err)
	}
	return resolved, nil
}
