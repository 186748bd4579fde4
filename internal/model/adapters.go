package model

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"alignstudio/internal/hash"
)

const adapterMarker = "adapter_config.json"

// Adapter is one saved adapter checkpoint on disk.
type Adapter struct {
	Path   string `json:"path"`
	Digest string `json:"digest"`
}

// AdapterStore finds and fingerprints saved adapter directories under
// an output root. A directory counts as an adapter when it holds an
// adapter_config.json.
type AdapterStore struct {
	root string
}

func NewAdapterStore(root string) *AdapterStore {
	return &AdapterStore{root: root}
}

// List returns the adapters under the root, sorted by path. A missing
// root lists as empty.
func (s *AdapterStore) List() ([]Adapter, error) {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return nil, nil
	}

	var adapters []Adapter
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != adapterMarker {
			return nil
		}
		dir := filepath.Dir(path)
		digest, err := hash.DigestDir(dir)
		if err != nil {
			return fmt.Errorf("digest adapter %s: %w", dir, err)
		}
		adapters = append(adapters, Adapter{Path: dir, Digest: digest})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list adapters under %s: %w", s.root, err)
	}
	sort.Slice(adapters, func(i, j int) bool { return adapters[i].Path < adapters[j].Path })
	return adapters, nil
}

// Resolve returns the adapter at dir, verifying the marker file.
func (s *AdapterStore) Resolve(dir string) (Adapter, error) {
	marker := filepath.Join(dir, adapterMarker)
	if _, err := os.Stat(marker); err != nil {
		return Adapter{}, fmt.Errorf("no adapter at %s: %w", dir, err)
	}
	digest, err := hash.DigestDir(dir)
	if err != nil {
		return Adapter{}, fmt.Errorf("digest adapter %s: %w", dir, err)
	}
	return Adapter{Path: dir, Digest: digest}, nil
}
