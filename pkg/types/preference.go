package types

import "fmt"

// PreferenceRecord is a single preference pair for alignment training:
// given a prompt, the chosen response was preferred over the rejected one.
type PreferenceRecord struct {
	ID       string            `json:"id"`
	Prompt   string            `json:"prompt"`
	Chosen   string            `json:"chosen"`
	Rejected string            `json:"rejected"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (r PreferenceRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record id is required")
	}
	if r.Prompt == "" {
		return fmt.Errorf("record %s: prompt is empty", r.ID)
	}
	if r.Chosen == "" {
		return fmt.Errorf("record %s: chosen response is empty", r.ID)
	}
	if r.Rejected == "" {
		return fmt.Errorf("record %s: rejected response is empty", r.ID)
	}
	return nil
}

// DatasetManifest describes a processed preference dataset snapshot.
// The checksum covers the canonical serialization of every record, so
// two pipelines producing the same records produce the same manifest.
type DatasetManifest struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	NumRecords    int    `json:"num_records"`
	SchemaVersion string `json:"schema_version"`
	Checksum      string `json:"checksum"`
}

func (m DatasetManifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest name is required")
	}
	if m.NumRecords < 0 {
		return fmt.Errorf("manifest %s: num_records %d is negative", m.Name, m.NumRecords)
	}
	if m.Checksum == "" {
		return fmt.Errorf("manifest %s: checksum is required", m.Name)
	}
	return nil
}
