package repl

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed bootstrap.py
var embeddedBootstrap []byte

// extractEmbeddedBootstrap writes the embedded bootstrap script to a fresh
// temp file, for deployments that only ship the compiled binary.
func extractEmbeddedBootstrap() (string, error) {
	if len(embeddedBootstrap) == 0 {
		return "", fmt.Errorf("embedded bootstrap.py is empty")
	}

	tmpDir, err := os.MkdirTemp("", "rlm-repl-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	bootstrapPath := filepath.Join(tmpDir, "bootstrap.py")
	if err := os.WriteFile(bootstrapPath, embeddedBootstrap, 0o644); err != nil {
		os.RemoveAll(tmpDir)
		return "", fmt.Errorf("write bootstrap.py: %w", err)
	}
	return bootstrapPath, nil
}
