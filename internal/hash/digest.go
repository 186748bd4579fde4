package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DigestFile returns the sha256 digest and size of a single file, used
// to fingerprint dataset inputs for the manifest.
func DigestFile(path string) (digest string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open file %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash file %s: %w", path, err)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), n, nil
}

// DigestBytes returns the sha256 digest of raw bytes.
func DigestBytes(raw []byte) string {
	h := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(h[:])
}

// DigestDir fingerprints a directory (an adapter checkpoint, typically)
// by hashing a sorted listing of relative path, file digest, and size.
func DigestDir(root string) (string, error) {
	lines := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		fileDigest, size, err := DigestFile(path)
		if err != nil {
			return err
		}
		lines = append(lines, fmt.Sprintf("%s\x00%s\x00%d\n", filepath.ToSlash(rel), fileDigest, size))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk dir %s: %w", root, err)
	}

	sort.Strings(lines)
	return DigestBytes([]byte(strings.Join(lines, ""))), nil
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
