// Package filex holds small filesystem helpers for the client.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDBDir creates the directory that will hold the SQLite database at
// dsn. In-memory and URI-style DSNs are left alone. It returns the directory
// it ensured, or "" when there was nothing to do.
func EnsureDBDir(dsn string) (string, error) {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return "", nil
	}

	dir := filepath.Dir(dsn)
	if dir == "." {
		return "", nil
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}
