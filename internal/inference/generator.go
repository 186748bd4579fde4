// Package inference generates responses from a base model with an
// optional adapter attached. Generation runs in an external runner
// process; this package shapes the request and reads the result.
package inference

import (
	"context"
	"fmt"
)

// GenerationParams mirror the sampling knobs the runner accepts.
type GenerationParams struct {
	MaxNewTokens      int     `json:"max_new_tokens"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	DoSample          bool    `json:"do_sample"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
}

// DefaultGenerationParams returns the sampling defaults used by the
// arena and evaluate command.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		MaxNewTokens:      256,
		Temperature:       0.7,
		TopP:              0.9,
		DoSample:          true,
		RepetitionPenalty: 1.1,
	}
}

func (p GenerationParams) Validate() error {
	if p.MaxNewTokens < 1 {
		return fmt.Errorf("max_new_tokens %d must be >= 1", p.MaxNewTokens)
	}
	if p.Temperature <= 0 {
		return fmt.Errorf("temperature %g must be > 0", p.Temperature)
	}
	if p.TopP <= 0 || p.TopP > 1 {
		return fmt.Errorf("top_p %g out of range (0,1]", p.TopP)
	}
	if p.RepetitionPenalty < 1 {
		return fmt.Errorf("repetition_penalty %g must be >= 1", p.RepetitionPenalty)
	}
	return nil
}

// Request asks for one generation. An empty AdapterPath means the
// bare base model.
type Request struct {
	ModelName   string           `json:"model_name"`
	AdapterPath string           `json:"adapter_path,omitempty"`
	Prompt      string           `json:"prompt"`
	Params      GenerationParams `json:"params"`
}

func (r Request) Validate() error {
	if r.ModelName == "" {
		return fmt.Errorf("model_name is required")
	}
	if r.Prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	return r.Params.Validate()
}

// Response is one generation result.
type Response struct {
	Text string `json:"text"`
	// TokensGenerated is reported by the runner when available.
	TokensGenerated int `json:"tokens_generated,omitempty"`
}

// Generator produces a response for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}
