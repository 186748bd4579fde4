package dataset

import (
	"fmt"
	"sort"
	"strings"

	"alignstudio/pkg/types"
)

// Anthropic HH transcripts delimit turns with these markers. The shared
// prompt is the last human turn; each response is the text after the
// last assistant marker.
const (
	humanTurn     = "\n\nHuman: "
	assistantTurn = "\n\nAssistant: "
)

// Formatter normalizes one raw dataset row into a PreferenceRecord.
type Formatter interface {
	Name() string
	Format(row map[string]any, recordID string) (types.PreferenceRecord, error)
}

// AnthropicHHFormatter extracts preference pairs from Anthropic HH-RLHF
// rows, where chosen and rejected hold full conversation transcripts
// sharing the same prompt prefix.
type AnthropicHHFormatter struct{}

func (AnthropicHHFormatter) Name() string { return "anthropic_hh" }

func (AnthropicHHFormatter) Format(row map[string]any, recordID string) (types.PreferenceRecord, error) {
	chosenText := stringField(row, "chosen")
	rejectedText := stringField(row, "rejected")

	prompt := lastHumanTurn(chosenText)
	chosen := lastAssistantTurn(chosenText)
	rejected := lastAssistantTurn(rejectedText)

	if chosen == "" || rejected == "" {
		return types.PreferenceRecord{}, fmt.Errorf("record %s: could not extract responses", recordID)
	}

	return types.PreferenceRecord{
		ID:       recordID,
		Prompt:   prompt,
		Chosen:   chosen,
		Rejected: rejected,
		Source:   "anthropic_hh",
	}, nil
}

// StandardFormatter handles rows that already carry explicit
// prompt/chosen/rejected fields.
type StandardFormatter struct{}

func (StandardFormatter) Name() string { return "standard" }

func (StandardFormatter) Format(row map[string]any, recordID string) (types.PreferenceRecord, error) {
	for _, field := range []string{"prompt", "chosen", "rejected"} {
		if stringField(row, field) == "" {
			return types.PreferenceRecord{}, fmt.Errorf("record %s: missing %s field", recordID, field)
		}
	}
	source := stringField(row, "source")
	if source == "" {
		source = "standard"
	}
	return types.PreferenceRecord{
		ID:       recordID,
		Prompt:   stringField(row, "prompt"),
		Chosen:   stringField(row, "chosen"),
		Rejected: stringField(row, "rejected"),
		Source:   source,
	}, nil
}

var formatters = map[string]Formatter{
	"anthropic_hh": AnthropicHHFormatter{},
	"standard":     StandardFormatter{},
}

// GetFormatter looks up a formatter by name.
func GetFormatter(name string) (Formatter, error) {
	f, ok := formatters[name]
	if !ok {
		available := make([]string, 0, len(formatters))
		for k := range formatters {
			available = append(available, k)
		}
		sort.Strings(available)
		return nil, fmt.Errorf("unknown formatter %q, available: %s", name, strings.Join(available, ", "))
	}
	return f, nil
}

// lastHumanTurn extracts the final human message from a transcript.
// A string with no human marker is returned trimmed as-is.
func lastHumanTurn(conversation string) string {
	parts := strings.Split(conversation, humanTurn)
	if len(parts) < 2 {
		return strings.TrimSpace(conversation)
	}
	last := parts[len(parts)-1]
	if idx := strings.Index(last, assistantTurn); idx != -1 {
		last = last[:idx]
	}
	return strings.TrimSpace(last)
}

// lastAssistantTurn extracts the final assistant response from a
// transcript. A string with no assistant marker is returned trimmed.
func lastAssistantTurn(text string) string {
	parts := strings.Split(text, assistantTurn)
	if len(parts) < 2 {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(parts[len(parts)-1])
}

func stringField(row map[string]any, key string) string {
	s, _ := row[key].(string)
	return s
}
