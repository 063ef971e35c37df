// Package vtree implements an in-memory, nested-map working tree that can be
// read, mutated, and committed directly to a repository's object store
// without ever touching a working directory on disk.
package vtree

import (
	"fmt"
	"path"
	"strings"
)

// validatePath rejects path shapes that could escape the virtual tree root,
// the same set of rules internal/server's HTTP path handler applies to
// on-disk paths: no NUL bytes, no absolute paths, no ".." components.
func validatePath(p string) error {
	if p == "" {
		return fmt.Errorf("vtree: empty path")
	}
	if strings.Contains(p, "\x00") {
		return fmt.Errorf("vtree: path contains null byte")
	}
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("vtree: absolute paths not allowed")
	}
	if len(p) >= 2 && p[1] == ':' {
		return fmt.Errorf("vtree: absolute paths not allowed")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return fmt.Errorf("vtree: path %q contains '..' component", p)
		}
	}
	return nil
}

// sanitizePath validates p and returns it in canonical slash-separated,
// ".". / "./"-stripped form.
func sanitizePath(p string) (string, error) {
	if err := validatePath(p); err != nil {
		return "", err
	}
	normalized := strings.ReplaceAll(p, "\\", "/")
	cleaned := path.Clean(normalized)
	cleaned = strings.TrimPrefix(cleaned, "./")
	if cleaned == "." {
		return "", fmt.Errorf("vtree: path resolves to root")
	}
	if strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("vtree: path %q attempts traversal", p)
	}
	return cleaned, nil
}

// splitPath validates and splits a path into its slash-separated components.
func splitPath(p string) ([]string, error) {
	clean, err := sanitizePath(p)
	if err != nil {
		return nil, err
	}
	return strings.Split(clean, "/"), nil
}
