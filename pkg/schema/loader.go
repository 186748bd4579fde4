package schema

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed preference_record.schema.json
var preferenceRecordSchema []byte

// ValidateRaw checks a document against a JSON Schema given as raw bytes.
// It returns the list of violation messages; an empty list means valid.
func ValidateRaw(schemaJSON []byte, doc any) ([]string, error) {
	schemaLoader := gojsonschema.NewBytesLoader(schemaJSON)
	docLoader := gojsonschema.NewGoLoader(doc)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("validate document: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return errs, nil
}

// ValidatePreferenceRow checks a raw dataset row against the bundled
// preference-pair schema. Rows in Anthropic HH form carry transcripts in
// chosen/rejected; rows in standard form carry an explicit prompt.
func ValidatePreferenceRow(row map[string]any) ([]string, error) {
	return ValidateRaw(preferenceRecordSchema, row)
}
