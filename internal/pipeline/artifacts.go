package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jobintel-labs/jobintel-go/internal/domain"
)

// CollectArtifacts walks the staging directory and hashes every regular
// file into an artifact list. WalkDir visits entries in lexical order, so
// the list is deterministic for a given tree.
func CollectArtifacts(root string) ([]domain.Artifact, error) {
	var artifacts []domain.Artifact
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
		hash, err := hashFile(path)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, domain.Artifact{
			RelativePath: filepath.ToSlash(rel),
			ContentHash:  hash,
			SizeBytes:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect artifacts from %s: %w", root, err)
	}
	return artifacts, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
