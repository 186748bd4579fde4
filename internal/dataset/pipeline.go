package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"alignstudio/internal/hash"
	"alignstudio/pkg/schema"
	"alignstudio/pkg/types"
)

const manifestSchemaVersion = "1.0"

// Limit on per-row warnings so a badly broken file does not flood logs.
const maxWarnedRows = 5

// Pipeline handles the preference-data lifecycle: load raw rows from
// disk, validate and normalize them into PreferenceRecords, format them
// for the trainer, and emit a manifest for provenance.
type Pipeline struct {
	maxSamples int
	strict     bool
	log        *zap.Logger
}

type PipelineOptions struct {
	// MaxSamples truncates the loaded rows when > 0.
	MaxSamples int
	// Strict additionally validates every raw row against the bundled
	// JSON Schema before extraction.
	Strict bool
	Logger *zap.Logger
}

func NewPipeline(opts PipelineOptions) *Pipeline {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{maxSamples: opts.MaxSamples, strict: opts.Strict, log: log}
}

// Load reads raw rows from a local JSON array or JSONL file.
func (p *Pipeline) Load(path string) ([]map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}

	var rows []map[string]any
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("parse dataset %s: %w", path, err)
		}
	} else {
		scanner := bufio.NewScanner(bytes.NewReader(raw))
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var row map[string]any
			if err := json.Unmarshal([]byte(line), &row); err != nil {
				return nil, fmt.Errorf("parse dataset %s line %d: %w", path, lineNo, err)
			}
			rows = append(rows, row)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("scan dataset %s: %w", path, err)
		}
	}

	if p.maxSamples > 0 && len(rows) > p.maxSamples {
		rows = rows[:p.maxSamples]
		p.log.Info("truncated dataset", zap.Int("max_samples", p.maxSamples))
	}
	p.log.Info("loaded dataset", zap.String("path", path), zap.Int("rows", len(rows)))
	return rows, nil
}

// Validate normalizes raw rows into PreferenceRecords. Rows that fail
// extraction or validation are skipped with a warning; an error is
// returned only when no valid record survives.
func (p *Pipeline) Validate(rows []map[string]any) ([]types.PreferenceRecord, error) {
	return p.collect(rows, p.extractRecord)
}

// Normalize converts raw rows using the given formatter, with the same
// skip-invalid policy as Validate.
func (p *Pipeline) Normalize(rows []map[string]any, f Formatter) ([]types.PreferenceRecord, error) {
	return p.collect(rows, func(row map[string]any, recordID string) (types.PreferenceRecord, error) {
		if err := p.checkStrict(row); err != nil {
			return types.PreferenceRecord{}, err
		}
		record, err := f.Format(row, recordID)
		if err != nil {
			return types.PreferenceRecord{}, err
		}
		if err := record.Validate(); err != nil {
			return types.PreferenceRecord{}, err
		}
		return record, nil
	})
}

func (p *Pipeline) collect(rows []map[string]any, extract func(map[string]any, string) (types.PreferenceRecord, error)) ([]types.PreferenceRecord, error) {
	valid := make([]types.PreferenceRecord, 0, len(rows))
	skipped := 0

	for idx, row := range rows {
		record, err := extract(row, strconv.Itoa(idx))
		if err != nil {
			skipped++
			if skipped <= maxWarnedRows {
				p.log.Warn("skipping invalid record", zap.Int("index", idx), zap.Error(err))
			}
			continue
		}
		valid = append(valid, record)
	}

	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid records found, %d rows failed validation", skipped)
	}
	if skipped > 0 {
		p.log.Warn("validation complete", zap.Int("valid", len(valid)), zap.Int("skipped", skipped))
	} else {
		p.log.Info("all records valid", zap.Int("count", len(valid)))
	}
	return valid, nil
}

func (p *Pipeline) checkStrict(row map[string]any) error {
	if !p.strict {
		return nil
	}
	violations, err := schema.ValidatePreferenceRow(row)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return fmt.Errorf("schema violations: %s", strings.Join(violations, "; "))
	}
	return nil
}

func (p *Pipeline) extractRecord(row map[string]any, recordID string) (types.PreferenceRecord, error) {
	if err := p.checkStrict(row); err != nil {
		return types.PreferenceRecord{}, err
	}

	prompt := stringField(row, "prompt")
	if prompt == "" {
		// Anthropic HH rows embed the prompt in the chosen transcript.
		prompt = lastHumanTurn(stringField(row, "chosen"))
	}
	chosen := lastAssistantTurn(stringField(row, "chosen"))
	rejected := lastAssistantTurn(stringField(row, "rejected"))

	record := types.PreferenceRecord{
		ID:       recordID,
		Prompt:   prompt,
		Chosen:   chosen,
		Rejected: rejected,
		Source:   "pipeline",
	}
	if err := record.Validate(); err != nil {
		return types.PreferenceRecord{}, err
	}
	return record, nil
}

// DPORow is one training example in the shape the DPO trainer expects.
type DPORow struct {
	Prompt   string `json:"prompt"`
	Chosen   string `json:"chosen"`
	Rejected string `json:"rejected"`
}

// FormatForDPO projects validated records onto prompt/chosen/rejected
// rows for the trainer.
func (p *Pipeline) FormatForDPO(records []types.PreferenceRecord) []DPORow {
	rows := make([]DPORow, 0, len(records))
	for _, r := range records {
		rows = append(rows, DPORow{Prompt: r.Prompt, Chosen: r.Chosen, Rejected: r.Rejected})
	}
	return rows
}

// CreateManifest builds a manifest whose checksum is deterministic over
// the canonical serialization of the records.
func (p *Pipeline) CreateManifest(name string, records []types.PreferenceRecord, version string) (types.DatasetManifest, error) {
	if version == "" {
		version = "1.0"
	}
	checksum, err := hash.Checksum(records)
	if err != nil {
		return types.DatasetManifest{}, fmt.Errorf("checksum records: %w", err)
	}
	return types.DatasetManifest{
		Name:          name,
		Version:       version,
		NumRecords:    len(records),
		SchemaVersion: manifestSchemaVersion,
		Checksum:      checksum,
	}, nil
}

// WriteManifest persists a manifest as <name>_manifest.json under outDir.
func (p *Pipeline) WriteManifest(manifest types.DatasetManifest, outDir string) (string, error) {
	if err := manifest.Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	path := filepath.Join(outDir, manifest.Name+"_manifest.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	p.log.Info("saved manifest", zap.String("path", path))
	return path, nil
}

// WriteRecords persists processed records as <name>_data.jsonl under
// outDir, one JSON object per line.
func (p *Pipeline) WriteRecords(name string, records []types.PreferenceRecord, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outDir, name+"_data.jsonl")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create records file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return "", fmt.Errorf("encode record %s: %w", r.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("flush records file: %w", err)
	}
	p.log.Info("saved records", zap.String("path", path), zap.Int("count", len(records)))
	return path, nil
}
